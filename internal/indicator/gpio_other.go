//go:build !linux

package indicator

import (
	"errors"

	"github.com/rs/zerolog"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns an error on non-Linux platforms.
func NewGPIO(chipName string, offset int, activeLow bool, logger zerolog.Logger) (*GPIO, error) {
	return nil, errUnsupported
}

// TurnOn is not implemented on non-Linux platforms.
func (g *GPIO) TurnOn() {}

// TurnOff is not implemented on non-Linux platforms.
func (g *GPIO) TurnOff() {}

// Err reports that GPIO is unsupported.
func (g *GPIO) Err() error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (g *GPIO) Close() error {
	return nil
}
