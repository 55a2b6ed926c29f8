package indicator

import "github.com/sweeney/blinker/internal/blink"

// Observed forwards commands to an Output and reports state changes to a
// callback. Every command reaches the output; repeated offs are not
// reported. The callback runs synchronously on the caller's goroutine.
type Observed struct {
	Output
	notify func(on bool)
	on     bool
}

// Observe wraps out so that notify sees every change of state. The output
// is assumed to start off.
func Observe(out Output, notify func(on bool)) *Observed {
	return &Observed{Output: out, notify: notify}
}

// TurnOn forwards and notifies.
func (o *Observed) TurnOn() {
	o.Output.TurnOn()
	o.changed(true)
}

// TurnOff forwards and notifies.
func (o *Observed) TurnOff() {
	o.Output.TurnOff()
	o.changed(false)
}

func (o *Observed) changed(on bool) {
	if on == o.on {
		return
	}
	o.on = on
	if o.notify != nil {
		o.notify(on)
	}
}

// ApplyColor forwards to the wrapped output if it supports colour.
// Returns false when the output is single-colour.
func (o *Observed) ApplyColor(c blink.Color) bool {
	ci, ok := o.Output.(blink.ColorIndicator)
	if !ok {
		return false
	}
	if mc, ok := o.Output.(interface{ Multicolor() bool }); ok && !mc.Multicolor() {
		return false
	}
	ci.SetColor(c)
	return true
}
