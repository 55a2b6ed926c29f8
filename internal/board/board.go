// Package board maps board names to indicator wiring.
// It replaces per-board compile-time selection with a table consulted once
// at startup.
package board

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sweeney/blinker/internal/indicator"
)

// DeviceTreeModelPath identifies the running board on Linux SBCs.
const DeviceTreeModelPath = "/proc/device-tree/model"

// Driver selects the indicator implementation.
type Driver string

const (
	DriverGPIO  Driver = "gpio"
	DriverSysfs Driver = "sysfs"
	DriverNoop  Driver = "noop"
)

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(s)); d {
	case DriverGPIO, DriverSysfs, DriverNoop:
		return d, nil
	}
	return "", fmt.Errorf("unknown driver %q (want gpio, sysfs or noop)", s)
}

// Profile describes where a board's indicator lives and how it is driven.
type Profile struct {
	Name      string
	Aliases   []string
	Model     string // substring of the device tree model, empty if not detectable
	Driver    Driver
	Chip      string
	Line      int
	ActiveLow bool
	SysfsName string
	RGB       bool
	Note      string
}

// Default is used when nothing else matches.
var Default = Profile{
	Name:   "none",
	Driver: DriverNoop,
	Note:   "no indicator",
}

// Profiles is the built-in board table. Microcontroller entries record the
// on-board LED pin and polarity for boards wired to a Linux host's GPIO
// header (bench rigs, carrier boards); SBC entries use the kernel LED class.
var Profiles = []Profile{
	// Linux single-board computers
	{Name: "raspberrypi", Aliases: []string{"rpi", "pi"}, Model: "Raspberry Pi", Driver: DriverSysfs, SysfsName: "ACT", Note: "green activity LED"},
	{Name: "nanopc-t6", Model: "NanoPC-T6", Driver: DriverSysfs, SysfsName: "usr_led", Note: "user LED"},
	{Name: "orangepi", Model: "Orange Pi", Driver: DriverSysfs, SysfsName: "green_led", Note: "green status LED"},
	{Name: "gpio", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: indicator.DefaultLine, Note: "LED on a header pin"},

	// ESP32 boards
	{Name: "esp32", Aliases: []string{"esp32-devkit", "doit-esp32"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2},
	{Name: "heltec-wifi-lora-32", Aliases: []string{"heltec-wifi-lora-32-v2"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 25, Note: "white LED"},
	{Name: "ttgo-t7", Aliases: []string{"ttgo-t7-mini32"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 22},
	{Name: "ttgo-t-display", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 4},
	{Name: "adafruit-feather-esp32", Aliases: []string{"adafruit-huzzah32"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 13, Note: "red LED"},
	{Name: "sparkfun-esp32-thing", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 5, Note: "blue LED"},
	{Name: "sparkfun-thing-plus", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 13, Note: "blue LED"},
	{Name: "wemos-lolin32", Aliases: []string{"lolin-d32"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 5, Note: "blue LED"},
	{Name: "wemos-d1-r32", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true},
	{Name: "m5stack-core2", Aliases: []string{"m5stack-fire", "m5stack-basic"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true, Note: "red LED"},
	{Name: "m5stick-c", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 10, Note: "orange LED"},
	{Name: "m5stack-atom", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 27, RGB: true, Note: "WS2812 RGB LED"},
	{Name: "esp32-c3", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 8, RGB: true, Note: "RGB LED on some modules"},
	{Name: "esp32-s2", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 18},
	{Name: "esp32-s3", Aliases: []string{"esp32-s3-devkitc"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 48, RGB: true, Note: "RGB LED"},
	{Name: "lilygo-t-display-s3", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 38},
	{Name: "esp32-cam", Aliases: []string{"ai-thinker"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 4, Note: "white flash LED"},

	// ESP8266 boards: LED on GPIO2, active low
	{Name: "esp8266", Aliases: []string{"esp-12", "esp-12e"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true},
	{Name: "nodemcu", Aliases: []string{"nodemcu-v1"}, Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true, Note: "blue LED"},
	{Name: "wemos-d1-mini", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true, Note: "blue LED"},
	{Name: "esp-01", Driver: DriverGPIO, Chip: indicator.DefaultChip, Line: 2, ActiveLow: true, Note: "blue LED"},
}

// Lookup finds a profile by name or alias, case-insensitively.
func Lookup(name string) (Profile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == Default.Name {
		return Default, true
	}
	for _, p := range Profiles {
		if p.Name == name {
			return p, true
		}
		for _, a := range p.Aliases {
			if a == name {
				return p, true
			}
		}
	}
	return Profile{}, false
}

// Names returns all profile names, sorted.
func Names() []string {
	names := make([]string, 0, len(Profiles))
	for _, p := range Profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Detect reads the device tree model at path and returns the matching
// profile along with the raw model string. Falls back to Default.
func Detect(path string) (Profile, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default, "unknown"
	}

	// Device tree model contains null bytes, trim them
	model := strings.TrimRight(string(data), "\x00\n")
	for _, p := range Profiles {
		if p.Model != "" && strings.Contains(model, p.Model) {
			return p, model
		}
	}
	return Default, model
}

// Open builds the indicator output described by p.
func Open(p Profile, sysfsRoot string, logger zerolog.Logger) (indicator.Output, error) {
	switch p.Driver {
	case DriverGPIO:
		out, err := indicator.NewGPIO(p.Chip, p.Line, p.ActiveLow, logger)
		if err != nil {
			return nil, fmt.Errorf("board %s: %w", p.Name, err)
		}
		return out, nil
	case DriverSysfs:
		out, err := indicator.NewSysfs(sysfsRoot, p.SysfsName, logger)
		if err != nil {
			return nil, fmt.Errorf("board %s: %w", p.Name, err)
		}
		return out, nil
	case DriverNoop, "":
		return indicator.NewNoop(logger), nil
	}
	return nil, fmt.Errorf("board %s: unknown driver %q", p.Name, p.Driver)
}
