package indicator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sweeney/blinker/internal/blink"
)

// SysfsRoot is where the kernel exposes LED class devices.
const SysfsRoot = "/sys/class/leds"

// Sysfs drives a kernel LED class device (e.g. the Raspberry Pi ACT LED).
// Multicolour LEDs that expose multi_intensity also accept SetColor.
type Sysfs struct {
	dir           string
	maxBrightness string
	multicolor    bool
	log           zerolog.Logger

	mu      sync.Mutex
	lastErr error
}

var _ blink.ColorIndicator = (*Sysfs)(nil)

// NewSysfs opens the LED called name under root and takes it away from
// any kernel trigger so that brightness writes stick.
func NewSysfs(root, name string, logger zerolog.Logger) (*Sysfs, error) {
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("LED %q not found at %s: %w", name, dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "trigger"), []byte("none"), 0644); err != nil {
		return nil, fmt.Errorf("failed to set LED trigger to none: %w", err)
	}

	max := "1"
	if data, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			max = v
		}
	}

	_, err := os.Stat(filepath.Join(dir, "multi_intensity"))

	s := &Sysfs{
		dir:           dir,
		maxBrightness: max,
		multicolor:    err == nil,
		log:           logger.With().Str("led", name).Logger(),
	}
	s.TurnOff()
	return s, nil
}

// TurnOn sets the LED to its maximum brightness.
func (s *Sysfs) TurnOn() { s.write("brightness", s.maxBrightness) }

// TurnOff sets the LED brightness to zero.
func (s *Sysfs) TurnOff() { s.write("brightness", "0") }

// SetColor writes multi_intensity. It is ignored for single-colour LEDs.
func (s *Sysfs) SetColor(c blink.Color) {
	if !s.multicolor {
		s.log.Debug().Msg("LED has no multi_intensity, colour ignored")
		return
	}
	s.write("multi_intensity", strings.Join([]string{
		strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B)),
	}, " "))
}

// Multicolor reports whether the LED accepts colours.
func (s *Sysfs) Multicolor() bool {
	return s.multicolor
}

func (s *Sysfs) write(file, value string) {
	err := os.WriteFile(filepath.Join(s.dir, file), []byte(value), 0644)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Str("file", file).Msg("LED write failed")
	}
}

// Err returns the last write error.
func (s *Sysfs) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close turns the LED off.
func (s *Sysfs) Close() error {
	s.TurnOff()
	return s.Err()
}
