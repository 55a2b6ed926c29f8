// Package config loads blinker settings from defaults, a TOML file,
// BLINKER_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/blinker/internal/board"
	"github.com/sweeney/blinker/internal/indicator"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "BLINKER_"

// DefaultPath is where the daemon looks for a config file.
const DefaultPath = "/etc/blinker/blinker.toml"

// Polarity values. Auto uses whatever the board profile says.
const (
	PolarityAuto = "auto"
	PolarityHigh = "high"
	PolarityLow  = "low"
)

// Config holds every setting. Fields with a toml tag can come from the
// config file; fields with an env tag from BLINKER_<tag>.
type Config struct {
	Config string `flag:"config"`

	LogLevel string `toml:"logging.level" env:"LOG_LEVEL" usage:"log level (debug, info, warn, error)"`

	Board      string `toml:"indicator.board" env:"BOARD" usage:"board profile name (empty to detect)"`
	Driver     string `toml:"indicator.driver" env:"DRIVER" usage:"override driver: gpio, sysfs or noop"`
	Chip       string `toml:"indicator.chip" env:"CHIP" usage:"override GPIO chip"`
	Line       int    `toml:"indicator.line" env:"LINE" usage:"override GPIO line (-1 keeps the board's)"`
	Polarity   string `toml:"indicator.polarity" env:"POLARITY" usage:"auto, high or low"`
	SysfsName  string `toml:"indicator.sysfs_name" env:"SYSFS_NAME" usage:"override LED class device name"`
	SysfsRoot  string `toml:"indicator.sysfs_root" env:"SYSFS_ROOT" usage:"LED class directory"`
	Color      string `toml:"indicator.color" env:"COLOR" usage:"colour for RGB LEDs (preset or #rrggbb)"`
	Brightness int    `toml:"indicator.brightness" env:"BRIGHTNESS" usage:"RGB brightness 0-255"`

	Poll      time.Duration `toml:"daemon.poll" env:"POLL" usage:"machine poll interval"`
	Heartbeat time.Duration `toml:"daemon.heartbeat" env:"HEARTBEAT" usage:"heartbeat interval (0 to disable)"`

	Broker   string `toml:"mqtt.broker" env:"BROKER" usage:"MQTT broker address (empty to disable)"`
	ClientID string `toml:"mqtt.client_id" env:"CLIENT_ID" flag:"client-id" usage:"MQTT client ID"`

	HTTP     string `toml:"http.addr" env:"HTTP" flag:"http" usage:"HTTP status address (empty to disable)"`
	WSBroker string `toml:"http.ws_broker" env:"WS_BROKER" flag:"ws-broker" usage:"MQTT websocket URL for live UI (\"=broker\" derives from --broker, \"off\" disables)"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Config:     DefaultPath,
		LogLevel:   "info",
		Line:       -1,
		Polarity:   PolarityAuto,
		SysfsRoot:  indicator.SysfsRoot,
		Brightness: 255,
		Poll:       5 * time.Millisecond,
		Heartbeat:  15 * time.Minute,
		Broker:     "tcp://192.168.1.200:1883",
		ClientID:   "blinker",
		HTTP:       ":8080",
		WSBroker:   "=broker",
	}
}

// RegisterFlags adds one persistent flag per field, defaulting to c's values.
func RegisterFlags(fs *pflag.FlagSet, c *Config) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f := t.Field(i)
		name := flagName(f)
		usage := f.Tag.Get("usage")
		ptr := v.Field(i).Addr().Interface()
		switch p := ptr.(type) {
		case *string:
			if name == "config" {
				fs.StringVarP(p, name, "c", *p, "config file path")
				continue
			}
			fs.StringVar(p, name, *p, usage)
		case *int:
			fs.IntVar(p, name, *p, usage)
		case *time.Duration:
			fs.DurationVar(p, name, *p, usage)
		case *bool:
			fs.BoolVar(p, name, *p, usage)
		}
	}
}

// Load applies the config file and environment to c. Flags the user set
// on cmd are left alone. A missing config file is not an error.
func Load(c *Config, cmd *cobra.Command) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	// Build set of flags explicitly changed via CLI
	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	if c.Config != "" {
		data, err := os.ReadFile(c.Config)
		switch {
		case err == nil:
			var file map[string]any
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
			for i := 0; i < v.NumField(); i++ {
				f := t.Field(i)
				if changed[flagName(f)] {
					continue
				}
				if path := f.Tag.Get("toml"); path != "" {
					if value := nestedValue(file, path); value != nil {
						if err := setValue(v.Field(i), value); err != nil {
							return fmt.Errorf("config %s: %w", path, err)
						}
					}
				}
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("read config: %w", err)
		}
	}

	for i := 0; i < v.NumField(); i++ {
		f := t.Field(i)
		if changed[flagName(f)] {
			continue
		}
		if key := f.Tag.Get("env"); key != "" {
			if s, ok := os.LookupEnv(EnvPrefix + key); ok && s != "" {
				if err := setString(v.Field(i), s); err != nil {
					return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
				}
			}
		}
	}

	return nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Board != "" {
		if _, ok := board.Lookup(c.Board); !ok {
			return fmt.Errorf("unknown board %q", c.Board)
		}
	}
	if c.Driver != "" {
		if _, err := board.ParseDriver(c.Driver); err != nil {
			return err
		}
	}
	switch c.Polarity {
	case PolarityAuto, PolarityHigh, PolarityLow:
	default:
		return fmt.Errorf("polarity must be auto, high or low, got %q", c.Polarity)
	}
	if c.Color != "" {
		if _, err := indicator.ParseColor(c.Color); err != nil {
			return err
		}
	}
	if c.Brightness < 0 || c.Brightness > 255 {
		return fmt.Errorf("brightness must be 0-255, got %d", c.Brightness)
	}
	return nil
}

// Profile resolves the board profile and applies per-field overrides.
// modelPath is consulted only when no board is named.
func (c Config) Profile(modelPath string) (board.Profile, string) {
	var p board.Profile
	model := ""
	if c.Board != "" {
		p, _ = board.Lookup(c.Board)
	} else {
		p, model = board.Detect(modelPath)
	}

	if c.Driver != "" {
		p.Driver, _ = board.ParseDriver(c.Driver)
	}
	if c.Chip != "" {
		p.Chip = c.Chip
	}
	if c.Line >= 0 {
		p.Line = c.Line
	}
	if p.Driver == board.DriverGPIO && p.Chip == "" {
		p.Chip = indicator.DefaultChip
	}
	switch c.Polarity {
	case PolarityHigh:
		p.ActiveLow = false
	case PolarityLow:
		p.ActiveLow = true
	}
	if c.SysfsName != "" {
		p.SysfsName = c.SysfsName
	}
	return p, model
}

// flagName returns the flag tag or derives one from the field name.
// Example: "LogLevel" -> "log-level".
func flagName(f reflect.StructField) string {
	if name := f.Tag.Get("flag"); name != "" {
		return name
	}
	var result []rune
	for i, r := range f.Name {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// nestedValue retrieves a value from nested maps using dot notation.
func nestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setValue stores a decoded TOML value into field.
func setValue(field reflect.Value, value any) error {
	if field.Type() == durationType {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want duration string, got %T", value)
		}
		return setString(field, s)
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int:
		i, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", value)
		}
		field.SetInt(i)
	}
	return nil
}

// setString parses s into field (for env vars and duration strings).
func setString(field reflect.Value, s string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	}
	return nil
}

// ResolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func (c Config) ResolveWSBroker() (string, error) {
	switch c.WSBroker {
	case "off", "":
		return "", nil
	case "=broker":
	default:
		return c.WSBroker, nil
	}
	if c.Broker == "" {
		return "", nil
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return "", fmt.Errorf("ws-broker: cannot parse broker %q: %w", c.Broker, err)
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String(), nil
}
