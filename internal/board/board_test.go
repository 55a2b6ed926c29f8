package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		wantName  string
		wantLine  int
		activeLow bool
	}{
		{"nodemcu", "nodemcu", 2, true},
		{"NodeMCU", "nodemcu", 2, true},
		{"lolin-d32", "wemos-lolin32", 5, false},
		{"m5stack-fire", "m5stack-core2", 2, true},
		{"heltec-wifi-lora-32", "heltec-wifi-lora-32", 25, false},
		{"esp32-cam", "esp32-cam", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Lookup(tt.name)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.name)
			}
			if p.Name != tt.wantName {
				t.Errorf("name: got %q, want %q", p.Name, tt.wantName)
			}
			if p.Line != tt.wantLine {
				t.Errorf("line: got %d, want %d", p.Line, tt.wantLine)
			}
			if p.ActiveLow != tt.activeLow {
				t.Errorf("active low: got %v, want %v", p.ActiveLow, tt.activeLow)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("commodore-64"); ok {
		t.Error("expected unknown board")
	}
}

func TestLookupDefault(t *testing.T) {
	p, ok := Lookup("none")
	if !ok || p.Driver != DriverNoop {
		t.Errorf("none: got %+v, %v", p, ok)
	}
}

func TestRGBBoards(t *testing.T) {
	for _, name := range []string{"m5stack-atom", "esp32-s3", "esp32-c3"} {
		p, _ := Lookup(name)
		if !p.RGB {
			t.Errorf("%s: expected RGB", name)
		}
	}
}

func TestProfileNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Profiles {
		for _, n := range append([]string{p.Name}, p.Aliases...) {
			if seen[n] {
				t.Errorf("duplicate profile name %q", n)
			}
			seen[n] = true
		}
	}
	if len(Names()) != len(Profiles) {
		t.Errorf("Names: got %d, want %d", len(Names()), len(Profiles))
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"Raspberry Pi 4 Model B Rev 1.4\x00", "raspberrypi"},
		{"FriendlyElec NanoPC-T6\x00", "nanopc-t6"},
		{"Orange Pi 5\x00", "orangepi"},
		{"Generic x86\x00", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model")
			if err := os.WriteFile(path, []byte(tt.model), 0644); err != nil {
				t.Fatal(err)
			}
			p, model := Detect(path)
			if p.Name != tt.want {
				t.Errorf("profile: got %q, want %q", p.Name, tt.want)
			}
			if model == "" || model[len(model)-1] == 0 {
				t.Errorf("model not trimmed: %q", model)
			}
		})
	}
}

func TestDetectMissingFile(t *testing.T) {
	p, model := Detect(filepath.Join(t.TempDir(), "missing"))
	if p.Name != Default.Name {
		t.Errorf("profile: got %q, want %q", p.Name, Default.Name)
	}
	if model != "unknown" {
		t.Errorf("model: got %q, want unknown", model)
	}
}

func TestParseDriver(t *testing.T) {
	for _, s := range []string{"gpio", "SYSFS", "noop"} {
		if _, err := ParseDriver(s); err != nil {
			t.Errorf("%s: unexpected error %v", s, err)
		}
	}
	if _, err := ParseDriver("pwm"); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestOpenNoop(t *testing.T) {
	out, err := Open(Default, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	out.TurnOn()
	if err := out.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenSysfs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "ACT"), 0755); err != nil {
		t.Fatal(err)
	}
	p, _ := Lookup("raspberrypi")

	out, err := Open(p, root, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	out.TurnOn()
	data, err := os.ReadFile(filepath.Join(root, "ACT", "brightness"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1" {
		t.Errorf("brightness: got %q, want 1", data)
	}
}

func TestOpenSysfsMissing(t *testing.T) {
	p, _ := Lookup("raspberrypi")
	if _, err := Open(p, t.TempDir(), zerolog.Nop()); err == nil {
		t.Error("expected error for missing sysfs LED")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Profile{Name: "x", Driver: "pwm"}, "", zerolog.Nop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}
