package indicator

import "github.com/rs/zerolog"

// Noop is used on boards without a usable LED. It only logs.
type Noop struct {
	log zerolog.Logger
}

// NewNoop creates a no-op indicator.
func NewNoop(logger zerolog.Logger) *Noop {
	return &Noop{log: logger}
}

// TurnOn logs the request.
func (n *Noop) TurnOn() {
	n.log.Debug().Bool("on", true).Msg("LED control not available (no-op)")
}

// TurnOff logs the request.
func (n *Noop) TurnOff() {
	n.log.Debug().Bool("on", false).Msg("LED control not available (no-op)")
}

// Err always returns nil.
func (n *Noop) Err() error { return nil }

// Close does nothing.
func (n *Noop) Close() error { return nil }
