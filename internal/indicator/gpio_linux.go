//go:build linux

package indicator

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives an LED on a Linux GPIO character device line.
type GPIO struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	log  zerolog.Logger

	mu      sync.Mutex
	lastErr error
}

// NewGPIO requests line on chip as an output, initially off.
// activeLow inverts the electrical level so that logical on drives the pin low.
func NewGPIO(chipName string, offset int, activeLow bool, logger zerolog.Logger) (*GPIO, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("blinker"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}

	return &GPIO{
		chip: chip,
		line: line,
		log:  logger.With().Str("chip", chipName).Int("line", offset).Logger(),
	}, nil
}

// TurnOn drives the line to its active level.
func (g *GPIO) TurnOn() { g.write(1) }

// TurnOff drives the line to its inactive level.
func (g *GPIO) TurnOff() { g.write(0) }

func (g *GPIO) write(v int) {
	err := g.line.SetValue(v)
	g.mu.Lock()
	g.lastErr = err
	g.mu.Unlock()
	if err != nil {
		g.log.Warn().Err(err).Int("value", v).Msg("gpio write failed")
	}
}

// Err returns the last write error.
func (g *GPIO) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Close turns the LED off, returns the line to an input so the pin is
// left floating for the next user, and releases the chip.
func (g *GPIO) Close() error {
	var errs []error

	if g.line != nil {
		if err := g.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("turn off: %w", err))
		}
		if err := g.line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
