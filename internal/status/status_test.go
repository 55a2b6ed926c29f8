package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/control"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var testBoard = BoardInfo{Name: "nodemcu", Driver: "gpio", Chip: "gpiochip0", Line: 2, ActiveLow: true}

// runningState starts a real machine so the RunState is one the daemon
// could actually produce.
func runningState(t *testing.T) (blink.RunState, uint64) {
	t.Helper()
	plan, err := blink.FromExplicitTiming(100*time.Millisecond, 200*time.Millisecond, 3)
	if err != nil {
		t.Fatal(err)
	}
	m := blink.NewMachine(nil)
	m.Start(plan, start)
	m.Poll(start)
	return m.State(), m.Transitions()
}

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 5, Broker: "tcp://localhost:1883", HTTPPort: ":8080"}
	tr := NewTracker(start, testBoard, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 5 {
		t.Errorf("Config.PollMs: got %d, want 5", snap.Config.PollMs)
	}
	if snap.Board.Name != "nodemcu" {
		t.Errorf("Board.Name: got %q, want nodemcu", snap.Board.Name)
	}
	if snap.Run.Phase != blink.PhaseIdle {
		t.Errorf("expected idle initially, got %v", snap.Run.Phase)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})
	run, transitions := runningState(t)

	tr.Update(run, transitions, control.Counts{Started: 2, Stopped: 1})

	snap := tr.Snapshot()
	if snap.Run.Phase != blink.PhaseUniform {
		t.Errorf("Phase: got %v, want RUNNING_UNIFORM", snap.Run.Phase)
	}
	if !snap.Run.IndicatorOn {
		t.Error("expected indicator on")
	}
	if snap.Plan != "uniform on=100ms off=200ms x3" {
		t.Errorf("Plan: got %q", snap.Plan)
	}
	if snap.Transitions != 1 {
		t.Errorf("Transitions: got %d, want 1", snap.Transitions)
	}
	if snap.Counts.Started != 2 || snap.Counts.Stopped != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestUpdateIdleClearsPlan(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})
	run, n := runningState(t)
	tr.Update(run, n, control.Counts{})

	tr.Update(blink.RunState{}, n, control.Counts{})
	if got := tr.Snapshot().Plan; got != "" {
		t.Errorf("Plan after idle: got %q, want empty", got)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})
	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, testBoard, Config{})
	tr.Update(blink.RunState{}, 0, control.Counts{Started: 1})
	snap1 := tr.Snapshot()

	tr.Update(blink.RunState{}, 4, control.Counts{Started: 2})

	if snap1.Counts.Started != 1 || snap1.Transitions != 0 {
		t.Error("snapshot should be a copy")
	}
}

func TestFormatJSON(t *testing.T) {
	run, transitions := runningState(t)
	snap := Snapshot{
		Run:           run,
		Plan:          run.Plan.String(),
		Transitions:   transitions,
		Counts:        control.Counts{Started: 3, Completed: 1, Stopped: 1, Rejected: 2},
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		MQTTConnected: true,
		Board:         testBoard,
		Config:        Config{PollMs: 5, HeartbeatMs: 900000, Broker: "tcp://b:1883", HTTPPort: ":8080"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Phase != "RUNNING_UNIFORM" {
		t.Errorf("phase: got %q", s.Phase)
	}
	if s.Indicator != "ON" {
		t.Errorf("indicator: got %q, want ON", s.Indicator)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("uptime: got %d, want 90", s.UptimeSeconds)
	}
	if s.Counts.Started != 3 || s.Counts.Rejected != 2 || s.Counts.Transitions != 1 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if s.Progress == nil || s.Progress.NextDeadline != "2026-01-01T00:00:00.1Z" {
		t.Errorf("progress: got %+v", s.Progress)
	}
	if s.Board.Line == nil || *s.Board.Line != 2 || !s.Board.ActiveLow {
		t.Errorf("board: got %+v", s.Board)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("mqtt: got %+v", s.MQTT)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event/reason")
	}
}

func TestFormatJSONIdle(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start, Board: BoardInfo{Name: "raspberrypi", Driver: "sysfs", SysfsName: "ACT"}}

	data := FormatJSON(snap)
	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Phase != "IDLE" || parsed.Status.Indicator != "OFF" {
		t.Errorf("got phase=%q indicator=%q", parsed.Status.Phase, parsed.Status.Indicator)
	}
	if parsed.Status.Progress != nil {
		t.Error("idle status should have no progress")
	}
	if strings.Contains(string(data), `"line"`) {
		t.Error("sysfs board should not report a GPIO line")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Minute), Board: testBoard}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start}
	data := FormatStatusEvent(snap, "STARTUP", "")

	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("STARTUP should not have reason: %s", data)
	}
	if strings.Contains(string(data), "\n") {
		t.Error("MQTT payload should be compact")
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start,
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), testBoard, Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(blink.RunState{}, uint64(i), control.Counts{Started: i})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}
