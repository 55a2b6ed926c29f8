// Package command decodes remote blink requests shared by the MQTT and
// HTTP surfaces.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/indicator"
)

// Mode selects what a request does.
type Mode string

const (
	ModeBlink   Mode = "blink"
	ModeDuty    Mode = "duty"
	ModeTiming  Mode = "timing"
	ModeFreq    Mode = "freq"
	ModePattern Mode = "pattern"
	ModeSOS     Mode = "sos"
	ModeMorse   Mode = "morse"
	ModeStop    Mode = "stop"
	ModeOn      Mode = "on"
	ModeOff     Mode = "off"
	ModeToggle  Mode = "toggle"
)

// Modes lists every accepted mode.
var Modes = []Mode{
	ModeBlink, ModeDuty, ModeTiming, ModeFreq, ModePattern, ModeSOS,
	ModeMorse, ModeStop, ModeOn, ModeOff, ModeToggle,
}

// DefaultMorseUnit is the dot length when a morse request leaves it out.
const DefaultMorseUnit = 200 * time.Millisecond

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrMissingMode = errors.New("missing mode")
	ErrNotSequence = errors.New("mode does not start a sequence")
	ErrBadColor    = errors.New("invalid colour")
)

// Step is one pattern entry on the wire.
type Step struct {
	On bool  `json:"on"`
	Ms int64 `json:"ms"`
}

// Request is a remote command. Which fields matter depends on Mode.
type Request struct {
	Mode     Mode    `json:"mode"`
	PeriodMs int64   `json:"period_ms,omitempty"`
	OnMs     int64   `json:"on_ms,omitempty"`
	OffMs    int64   `json:"off_ms,omitempty"`
	Duty     float64 `json:"duty,omitempty"`
	Hz       float64 `json:"hz,omitempty"`
	TotalMs  int64   `json:"total_ms,omitempty"`
	Cycles   int     `json:"cycles,omitempty"`
	Steps    []Step  `json:"steps,omitempty"`
	Repeat   int     `json:"repeat,omitempty"`
	Text     string  `json:"text,omitempty"`
	UnitMs   int64   `json:"unit_ms,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// Decode parses a JSON request and checks its mode.
func Decode(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	r.Mode = Mode(strings.ToLower(strings.TrimSpace(string(r.Mode))))
	if r.Mode == "" {
		return Request{}, ErrMissingMode
	}
	if !r.Mode.Valid() {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode)
	}
	return r, nil
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// StartsSequence reports whether the mode produces a plan.
// stop, on, off and toggle act on the machine directly.
func (m Mode) StartsSequence() bool {
	switch m {
	case ModeStop, ModeOn, ModeOff, ModeToggle:
		return false
	}
	return m.Valid()
}

func ms(n int64) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Plan builds the sequence the request asks for. Planner errors are
// returned unchanged so callers can match them with errors.Is.
func (r Request) Plan() (blink.Plan, error) {
	switch r.Mode {
	case ModeBlink:
		return blink.FromSimple(ms(r.PeriodMs), r.cycles())
	case ModeDuty:
		return blink.FromDutyCycle(ms(r.PeriodMs), r.Duty, r.cycles())
	case ModeTiming:
		return blink.FromExplicitTiming(ms(r.OnMs), ms(r.OffMs), r.cycles())
	case ModeFreq:
		return blink.FromFrequency(r.Hz, r.Duty, ms(r.TotalMs))
	case ModePattern:
		steps := make([]blink.Step, len(r.Steps))
		for i, s := range r.Steps {
			steps[i] = blink.Step{On: s.On, Duration: ms(s.Ms)}
		}
		return blink.FromPattern(steps, r.repeat())
	case ModeSOS:
		sos := blink.SOS()
		if r.repeat() == 1 {
			return sos, nil
		}
		return blink.FromPattern(sos.Steps(), r.Repeat)
	case ModeMorse:
		unit := DefaultMorseUnit
		if r.UnitMs != 0 {
			unit = ms(r.UnitMs)
		}
		return blink.Morse(r.Text, unit, r.repeat())
	case ModeStop, ModeOn, ModeOff, ModeToggle:
		return blink.Plan{}, fmt.Errorf("%w: %s", ErrNotSequence, r.Mode)
	}
	return blink.Plan{}, fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode)
}

// cycles defaults an omitted cycle count to one.
func (r Request) cycles() int {
	if r.Cycles == 0 {
		return 1
	}
	return r.Cycles
}

// repeat defaults an omitted repeat count to one pass.
func (r Request) repeat() int {
	if r.Repeat == 0 {
		return 1
	}
	return r.Repeat
}

// Reason maps an error from Decode or Plan to a short metrics label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrMissingMode):
		return "mode"
	case errors.Is(err, ErrNotSequence):
		return "not_sequence"
	case errors.Is(err, ErrBadColor):
		return "color"
	case errors.Is(err, blink.ErrInvalidFrequency):
		return "frequency"
	case errors.Is(err, blink.ErrInvalidDuty):
		return "duty"
	case errors.Is(err, blink.ErrEmptyPattern):
		return "empty_pattern"
	case errors.Is(err, blink.ErrNegativeDuration):
		return "negative_duration"
	case errors.Is(err, blink.ErrNegativeCount):
		return "negative_count"
	case errors.Is(err, blink.ErrUnsupportedRune):
		return "unsupported_rune"
	}
	return "decode"
}

// Submission carries a request from a transport to the run loop.
// Err is set when the payload could not be decoded or planned; the loop
// reports it as a rejection instead of touching the machine.
type Submission struct {
	Source  string
	Request Request
	Err     error
}

// Parse decodes data and checks that a sequence request plans cleanly.
// The result is always safe to send to the run loop.
func Parse(source string, data []byte) Submission {
	req, err := Decode(data)
	if err == nil && req.Mode.StartsSequence() {
		_, err = req.Plan()
	}
	if err == nil && req.Color != "" {
		_, err = req.ParseColor()
	}
	return Submission{Source: source, Request: req, Err: err}
}

// ParseColor returns the requested colour.
func (r Request) ParseColor() (blink.Color, error) {
	c, err := indicator.ParseColor(r.Color)
	if err != nil {
		return blink.Color{}, fmt.Errorf("%w: %v", ErrBadColor, err)
	}
	return c, nil
}
