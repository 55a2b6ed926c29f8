// Package indicator provides the physical outputs the blink machine drives.
// The GPIO implementation uses the Linux GPIO character device, the sysfs
// implementation uses /sys/class/leds, and the fake allows testing without hardware.
//
// Implementations never return errors to the machine: hardware failures are
// logged and the last error is kept for status reporting.
package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/blinker/internal/blink"
)

// Output is an indicator that owns a hardware resource.
type Output interface {
	blink.Indicator

	// Err returns the last hardware error, or nil.
	Err() error

	// Close turns the indicator off and releases its resources.
	Close() error
}

// Default GPIO location (BCM numbering on gpiochip0).
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 17
)

// Colour presets.
var (
	Red     = blink.Color{R: 255}
	Green   = blink.Color{G: 255}
	Blue    = blink.Color{B: 255}
	Yellow  = blink.Color{R: 255, G: 255}
	Cyan    = blink.Color{G: 255, B: 255}
	Magenta = blink.Color{R: 255, B: 255}
	White   = blink.Color{R: 255, G: 255, B: 255}
	Orange  = blink.Color{R: 255, G: 165}
	Purple  = blink.Color{R: 128, B: 128}
)

var presets = map[string]blink.Color{
	"red":     Red,
	"green":   Green,
	"blue":    Blue,
	"yellow":  Yellow,
	"cyan":    Cyan,
	"magenta": Magenta,
	"white":   White,
	"orange":  Orange,
	"purple":  Purple,
}

// ParseColor accepts a preset name or #rrggbb.
func ParseColor(s string) (blink.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := presets[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return blink.Color{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return blink.Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return blink.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Scale applies a 0-255 brightness to c.
func Scale(c blink.Color, brightness uint8) blink.Color {
	f := func(v uint8) uint8 { return uint8(uint16(v) * uint16(brightness) / 255) }
	return blink.Color{R: f(c.R), G: f(c.G), B: f(c.B)}
}
