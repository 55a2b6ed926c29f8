// Package blink contains the pure blink sequencing logic for a single indicator.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package blink

import (
	"fmt"
	"strings"
	"time"
)

// Indicator is the output the state machine drives.
// Implementations must not block; failures are handled (logged) by the implementation.
type Indicator interface {
	TurnOn()
	TurnOff()
}

// Color is an 8-bit RGB value for multi-colour indicators.
type Color struct {
	R, G, B uint8
}

// ColorIndicator is an Indicator that can also change colour.
// Colour is orthogonal to blink timing: the machine never calls SetColor.
type ColorIndicator interface {
	Indicator
	SetColor(c Color)
}

// Kind is the shape of a Plan.
type Kind int

const (
	KindUniform Kind = iota
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindUniform:
		return "uniform"
	case KindPattern:
		return "pattern"
	}
	return "unknown"
}

// Phase is the state machine's run phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUniform
	PhasePattern
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseUniform:
		return "RUNNING_UNIFORM"
	case PhasePattern:
		return "RUNNING_PATTERN"
	}
	return "UNKNOWN"
}

// Step is one entry of a pattern: hold the indicator On (or off) for Duration.
type Step struct {
	On       bool
	Duration time.Duration
}

// Plan is a normalized, immutable blink sequence. Plans are only built by
// the From* planner functions, so a Plan is always valid.
type Plan struct {
	kind   Kind
	on     time.Duration
	off    time.Duration
	cycles int
	steps  []Step
	repeat int
}

// Kind returns the plan shape.
func (p Plan) Kind() Kind { return p.kind }

// OnDuration returns the on time of a uniform plan.
func (p Plan) OnDuration() time.Duration { return p.on }

// OffDuration returns the off time of a uniform plan.
func (p Plan) OffDuration() time.Duration { return p.off }

// Cycles returns the number of on/off cycles of a uniform plan.
func (p Plan) Cycles() int { return p.cycles }

// Repeat returns the repeat count of a pattern plan.
func (p Plan) Repeat() int { return p.repeat }

// Steps returns a copy of the pattern steps.
func (p Plan) Steps() []Step {
	if p.steps == nil {
		return nil
	}
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Empty reports whether the plan produces no output at all
// (zero cycles or zero repeats).
func (p Plan) Empty() bool {
	if p.kind == KindPattern {
		return p.repeat == 0 || len(p.steps) == 0
	}
	return p.cycles == 0
}

// Total returns the nominal time the sequence stays active.
// A uniform plan ends on its last off transition, so the final off
// duration is not counted.
func (p Plan) Total() time.Duration {
	if p.Empty() {
		return 0
	}
	if p.kind == KindPattern {
		var sum time.Duration
		for _, s := range p.steps {
			sum += s.Duration
		}
		return sum * time.Duration(p.repeat)
	}
	return time.Duration(p.cycles)*(p.on+p.off) - p.off
}

func (p Plan) String() string {
	if p.kind == KindPattern {
		var b strings.Builder
		for i, s := range p.steps {
			if i > 0 {
				b.WriteByte(',')
			}
			state := "off"
			if s.On {
				state = "on"
			}
			fmt.Fprintf(&b, "%s:%d", state, s.Duration.Milliseconds())
		}
		return fmt.Sprintf("pattern[%s]x%d", b.String(), p.repeat)
	}
	return fmt.Sprintf("uniform on=%dms off=%dms x%d", p.on.Milliseconds(), p.off.Milliseconds(), p.cycles)
}

// RunState is a read-only view of the machine's progress.
type RunState struct {
	Phase            Phase
	IndicatorOn      bool
	NextDeadline     time.Time // meaningful only when Phase != PhaseIdle
	CyclesCompleted  int
	StepIndex        int
	RepeatsCompleted int
	Plan             Plan
}
