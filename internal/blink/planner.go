package blink

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidFrequency = errors.New("frequency must be a positive number of hertz not above 1000")
	ErrInvalidDuty      = errors.New("duty fraction is not a number")
	ErrEmptyPattern     = errors.New("pattern has no steps")
	ErrNegativeDuration = errors.New("duration is negative")
	ErrNegativeCount    = errors.New("count is negative")
	ErrUnsupportedRune  = errors.New("character has no morse encoding")
)

// maxPeriodMs bounds the period derived from a frequency so the
// conversion to time.Duration cannot overflow.
const maxPeriodMs = float64(math.MaxInt32)

// truncMs truncates d to whole milliseconds.
func truncMs(d time.Duration) time.Duration {
	return d.Truncate(time.Millisecond)
}

// FromDutyCycle plans cycles of a period split by the duty fraction.
// duty is clamped to [0,1]. The on time is truncated to whole milliseconds
// and off takes the remainder, so on+off always equals the period.
// Zero cycles yields an empty plan.
func FromDutyCycle(period time.Duration, duty float64, cycles int) (Plan, error) {
	if period < 0 {
		return Plan{}, fmt.Errorf("period %v: %w", period, ErrNegativeDuration)
	}
	if cycles < 0 {
		return Plan{}, fmt.Errorf("cycles %d: %w", cycles, ErrNegativeCount)
	}
	if math.IsNaN(duty) {
		return Plan{}, ErrInvalidDuty
	}
	if duty < 0 {
		duty = 0
	}
	if duty > 1 {
		duty = 1
	}

	period = truncMs(period)
	on := time.Duration(float64(period.Milliseconds())*duty) * time.Millisecond
	return Plan{
		kind:   KindUniform,
		on:     on,
		off:    period - on,
		cycles: cycles,
	}, nil
}

// FromExplicitTiming plans cycles with explicit on and off times.
func FromExplicitTiming(on, off time.Duration, cycles int) (Plan, error) {
	if on < 0 {
		return Plan{}, fmt.Errorf("on %v: %w", on, ErrNegativeDuration)
	}
	if off < 0 {
		return Plan{}, fmt.Errorf("off %v: %w", off, ErrNegativeDuration)
	}
	if cycles < 0 {
		return Plan{}, fmt.Errorf("cycles %d: %w", cycles, ErrNegativeCount)
	}
	return Plan{
		kind:   KindUniform,
		on:     truncMs(on),
		off:    truncMs(off),
		cycles: cycles,
	}, nil
}

// FromSimple plans a 50% blink where on and off both last halfPeriod.
func FromSimple(halfPeriod time.Duration, cycles int) (Plan, error) {
	return FromExplicitTiming(halfPeriod, halfPeriod, cycles)
}

// FromFrequency plans as many whole periods of hz as fit in total.
// The period is 1000/hz milliseconds, truncated. If the period is longer
// than total the plan is empty; that is not an error.
func FromFrequency(hz, duty float64, total time.Duration) (Plan, error) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return Plan{}, fmt.Errorf("%v Hz: %w", hz, ErrInvalidFrequency)
	}
	if total < 0 {
		return Plan{}, fmt.Errorf("duration %v: %w", total, ErrNegativeDuration)
	}

	periodMs := 1000 / hz
	if periodMs > maxPeriodMs {
		return Plan{}, fmt.Errorf("%v Hz: %w", hz, ErrInvalidFrequency)
	}
	period := time.Duration(periodMs) * time.Millisecond
	if period == 0 {
		return Plan{}, fmt.Errorf("%v Hz: %w", hz, ErrInvalidFrequency)
	}

	cycles := int(total / period)
	return FromDutyCycle(period, duty, cycles)
}

// FromPattern plans an arbitrary step list played repeat times.
// The steps are copied; later changes to the caller's slice do not affect the plan.
// A zero repeat yields an empty plan.
func FromPattern(steps []Step, repeat int) (Plan, error) {
	if repeat < 0 {
		return Plan{}, fmt.Errorf("repeat %d: %w", repeat, ErrNegativeCount)
	}
	if repeat > 0 && len(steps) == 0 {
		return Plan{}, ErrEmptyPattern
	}

	owned := make([]Step, len(steps))
	for i, s := range steps {
		if s.Duration < 0 {
			return Plan{}, fmt.Errorf("step %d duration %v: %w", i, s.Duration, ErrNegativeDuration)
		}
		owned[i] = Step{On: s.On, Duration: truncMs(s.Duration)}
	}

	return Plan{
		kind:   KindPattern,
		steps:  owned,
		repeat: repeat,
	}, nil
}

// sosSteps is ...---... followed by a one second pause.
var sosSteps = []Step{
	{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 200 * time.Millisecond}, {false, 300 * time.Millisecond},
	{false, 300 * time.Millisecond},
	{true, 600 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 600 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 600 * time.Millisecond}, {false, 300 * time.Millisecond},
	{false, 300 * time.Millisecond},
	{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
	{true, 200 * time.Millisecond}, {false, 1000 * time.Millisecond},
}

// SOS plans a single distress signal.
func SOS() Plan {
	p, _ := FromPattern(sosSteps, 1)
	return p
}

var morseCode = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// Morse plans text as morse code with the given dot length.
// Dash is 3 units, gaps are 1 unit between symbols, 3 between letters
// and 7 between words and at the end of the message.
func Morse(text string, unit time.Duration, repeat int) (Plan, error) {
	if unit < 0 {
		return Plan{}, fmt.Errorf("unit %v: %w", unit, ErrNegativeDuration)
	}

	var steps []Step
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		for _, r := range word {
			code, ok := morseCode[r]
			if !ok {
				return Plan{}, fmt.Errorf("%q: %w", r, ErrUnsupportedRune)
			}
			for _, sym := range code {
				d := unit
				if sym == '-' {
					d = 3 * unit
				}
				steps = append(steps, Step{On: true, Duration: d}, Step{On: false, Duration: unit})
			}
			// widen the last symbol gap to a letter gap
			steps[len(steps)-1].Duration = 3 * unit
		}
		steps[len(steps)-1].Duration = 7 * unit
	}
	return FromPattern(steps, repeat)
}
