package indicator

import (
	"sync"

	"github.com/sweeney/blinker/internal/blink"
)

// Fake is a test double that records every command it receives.
type Fake struct {
	mu sync.Mutex

	// Commands contains every TurnOn (true) / TurnOff (false) in order.
	Commands []bool

	// Colors contains every SetColor call in order.
	Colors []blink.Color

	// Closed tracks if Close was called.
	Closed bool

	// WriteError, if set, is reported by Err.
	WriteError error
}

var _ blink.ColorIndicator = (*Fake)(nil)

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// TurnOn records an on command.
func (f *Fake) TurnOn() {
	f.mu.Lock()
	f.Commands = append(f.Commands, true)
	f.mu.Unlock()
}

// TurnOff records an off command.
func (f *Fake) TurnOff() {
	f.mu.Lock()
	f.Commands = append(f.Commands, false)
	f.mu.Unlock()
}

// SetColor records a colour.
func (f *Fake) SetColor(c blink.Color) {
	f.mu.Lock()
	f.Colors = append(f.Colors, c)
	f.mu.Unlock()
}

// On reports the last commanded state.
func (f *Fake) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return false
	}
	return f.Commands[len(f.Commands)-1]
}

// Ons counts on commands.
func (f *Fake) Ons() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if c {
			n++
		}
	}
	return n
}

// Err returns WriteError.
func (f *Fake) Err() error {
	return f.WriteError
}

// Close marks the fake as closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded commands.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.Commands = nil
	f.Colors = nil
	f.Closed = false
	f.mu.Unlock()
}
