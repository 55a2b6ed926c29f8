package internal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/command"
	"github.com/sweeney/blinker/internal/control"
	"github.com/sweeney/blinker/internal/indicator"
	"github.com/sweeney/blinker/internal/mqtt"
	"github.com/sweeney/blinker/internal/status"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const pollInterval = 10 * time.Millisecond

// rig wires the pieces the daemon's run loop wires, minus the loop itself.
type rig struct {
	fake      *indicator.Fake
	ctrl      *control.Controller
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
}

func newRig() *rig {
	fake := indicator.NewFake()
	out := indicator.Observe(fake, nil)
	return &rig{
		fake:      fake,
		ctrl:      control.New(out, out, startTime, zerolog.Nop()),
		publisher: mqtt.NewFakePublisher(),
		tracker: status.NewTracker(startTime,
			status.BoardInfo{Name: "nodemcu", Driver: "gpio", Chip: "gpiochip0", Line: 2, ActiveLow: true},
			status.Config{PollMs: pollInterval.Milliseconds(), Broker: "tcp://localhost:1883"}),
	}
}

func (r *rig) publish(t *testing.T, events []control.Event) {
	t.Helper()
	for _, e := range events {
		if err := r.publisher.Publish(e); err != nil {
			t.Fatalf("publish %s: %v", e.Type, err)
		}
	}
	r.tracker.Update(r.ctrl.State(), r.ctrl.Transitions(), r.ctrl.CountsSnapshot())
}

// submit feeds a raw payload the way the MQTT subscription does.
func (r *rig) submit(t *testing.T, payload string, at time.Duration) {
	t.Helper()
	r.publish(t, r.ctrl.Handle(command.Parse("mqtt", []byte(payload)), startTime.Add(at)))
}

// pump ticks the controller every pollInterval in (from, to].
func (r *rig) pump(t *testing.T, from, to time.Duration) {
	t.Helper()
	for at := from + pollInterval; at <= to; at += pollInterval {
		r.publish(t, r.ctrl.Tick(startTime.Add(at)))
	}
}

// TestIntegrationFullFlow runs a pattern request from payload to published events.
func TestIntegrationFullFlow(t *testing.T) {
	r := newRig()

	r.submit(t, `{"mode":"pattern","steps":[{"on":true,"ms":100},{"on":false,"ms":100},{"on":true,"ms":300},{"on":false,"ms":100}],"repeat":2}`, 0)
	r.pump(t, 0, 2*time.Second)

	got := r.publisher.EventTypes()
	if len(got) != 2 || got[0] != control.EventStarted || got[1] != control.EventCompleted {
		t.Fatalf("events: got %v, want [STARTED COMPLETED]", got)
	}

	started := r.publisher.Events[0]
	if started.Kind != "pattern" {
		t.Errorf("kind: got %q, want pattern", started.Kind)
	}
	if started.Plan != "pattern[on:100,off:100,on:300,off:100]x2" {
		t.Errorf("plan: got %q", started.Plan)
	}

	// completion waits for the last off step of the second pass
	completed := r.publisher.Events[1]
	if want := startTime.Add(1200 * time.Millisecond); !completed.Timestamp.Equal(want) {
		t.Errorf("completed at %v, want %v", completed.Timestamp, want)
	}

	if r.fake.Ons() != 4 {
		t.Errorf("on commands: got %d, want 4", r.fake.Ons())
	}
	if r.fake.On() {
		t.Error("indicator should end off")
	}

	snap := r.tracker.Snapshot()
	if snap.Run.Phase != blink.PhaseIdle || snap.Counts.Completed != 1 {
		t.Errorf("tracker: phase=%v counts=%+v", snap.Run.Phase, snap.Counts)
	}
	if snap.Transitions != 8 {
		t.Errorf("transitions: got %d, want 8", snap.Transitions)
	}
}

func TestIntegrationNoEventsWhileIdle(t *testing.T) {
	r := newRig()
	r.pump(t, 0, time.Second)

	if len(r.publisher.Events) != 0 {
		t.Errorf("expected no events while idle, got %v", r.publisher.EventTypes())
	}
	if len(r.fake.Commands) != 0 {
		t.Errorf("idle ticks should not command the indicator, got %v", r.fake.Commands)
	}
}

func TestIntegrationRejectedRequestLeavesSequenceRunning(t *testing.T) {
	r := newRig()

	r.submit(t, `{"mode":"blink","period_ms":100,"cycles":3}`, 0)
	r.pump(t, 0, 150*time.Millisecond)
	r.submit(t, `{"mode":"freq","hz":-2,"duty":0.5,"total_ms":1000}`, 150*time.Millisecond)

	if !r.ctrl.IsActive() {
		t.Fatal("a rejected request must not disturb the running sequence")
	}
	r.pump(t, 150*time.Millisecond, time.Second)

	got := r.publisher.EventTypes()
	want := []control.EventType{control.EventStarted, control.EventRejected, control.EventCompleted}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if r.publisher.Events[1].Reason != "frequency" {
		t.Errorf("reject reason: got %q, want frequency", r.publisher.Events[1].Reason)
	}
	if r.fake.Ons() != 3 {
		t.Errorf("on commands: got %d, want 3", r.fake.Ons())
	}
}

func TestIntegrationStopRequest(t *testing.T) {
	r := newRig()

	r.submit(t, `{"mode":"sos"}`, 0)
	r.pump(t, 0, 50*time.Millisecond)
	if !r.fake.On() {
		t.Fatal("SOS should open with the indicator on")
	}
	r.submit(t, `{"mode":"stop"}`, 60*time.Millisecond)
	r.pump(t, 60*time.Millisecond, 5*time.Second)

	got := r.publisher.EventTypes()
	if len(got) != 2 || got[1] != control.EventStopped {
		t.Fatalf("events: got %v, want [STARTED STOPPED]", got)
	}
	if r.publisher.Events[1].Reason != control.StopRequested {
		t.Errorf("stop reason: got %q, want REQUESTED", r.publisher.Events[1].Reason)
	}
	if r.fake.On() {
		t.Error("indicator should be off after stop")
	}
}

func TestIntegrationStopWhenIdleIsSilent(t *testing.T) {
	r := newRig()
	r.submit(t, `{"mode":"stop"}`, 0)

	if len(r.publisher.Events) != 0 {
		t.Errorf("stop with nothing running should not publish, got %v", r.publisher.EventTypes())
	}
	if r.fake.On() {
		t.Error("indicator should be off")
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	r := newRig()
	r.publisher.PublishError = errors.New("broker down")

	events := r.ctrl.Handle(command.Parse("http", []byte(`{"mode":"timing","on_ms":50,"off_ms":50,"cycles":2}`)), startTime)
	for _, e := range events {
		if err := r.publisher.Publish(e); err == nil {
			t.Fatal("expected publish error")
		}
	}

	// the machine keeps running regardless
	var completed bool
	for at := pollInterval; at <= time.Second; at += pollInterval {
		for _, e := range r.ctrl.Tick(startTime.Add(at)) {
			r.publisher.Publish(e)
			if e.Type == control.EventCompleted {
				completed = true
			}
		}
	}
	if !completed {
		t.Error("sequence should complete despite publish failures")
	}
	if r.fake.Ons() != 2 {
		t.Errorf("on commands: got %d, want 2", r.fake.Ons())
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	r := newRig()
	r.submit(t, `{"mode":"duty","period_ms":1000,"duty":0.25,"cycles":2}`, 0)

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(r.publisher.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	seq, ok := parsed["sequence"]
	if !ok {
		t.Fatalf("missing sequence envelope: %s", r.publisher.Payloads[0])
	}
	wantFields := map[string]string{
		"timestamp": "2026-01-01T12:00:00Z",
		"event":     "STARTED",
		"kind":      "uniform",
		"plan":      "uniform on=250ms off=750ms x2",
		"source":    "mqtt",
	}
	for k, want := range wantFields {
		if seq[k] != want {
			t.Errorf("%s: got %v, want %q", k, seq[k], want)
		}
	}
	if _, exists := seq["error"]; exists {
		t.Error("STARTED should not carry an error")
	}
}

func TestIntegrationRejectPayloadCarriesError(t *testing.T) {
	r := newRig()
	r.submit(t, `{"mode":"morse","text":"HI!"}`, 0)

	var parsed mqtt.Payload
	if err := json.Unmarshal(r.publisher.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Sequence.Event != "REJECTED" || parsed.Sequence.Reason != "unsupported_rune" {
		t.Errorf("got event=%q reason=%q", parsed.Sequence.Event, parsed.Sequence.Reason)
	}
	if !strings.Contains(parsed.Sequence.Error, "!") {
		t.Errorf("error should name the rune: %q", parsed.Sequence.Error)
	}
}

func TestIntegrationStartupPayloadFormat(t *testing.T) {
	r := newRig()
	r.tracker.SetNetwork(&status.NetworkInfo{Type: "ethernet", IP: "192.168.1.50", Status: "connected"})

	snap := r.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := r.publisher.PublishSystem(event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(r.publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "STARTUP" || s.Phase != "IDLE" || s.Indicator != "OFF" {
		t.Errorf("got event=%q phase=%q indicator=%q", s.Event, s.Phase, s.Indicator)
	}
	if s.Board.Name != "nodemcu" || s.Board.Line == nil || *s.Board.Line != 2 || !s.Board.ActiveLow {
		t.Errorf("board: got %+v", s.Board)
	}
	if s.Network == nil || s.Network.IP != "192.168.1.50" {
		t.Errorf("network: got %+v", s.Network)
	}
	if !r.publisher.SystemEvents[0].Retained {
		t.Error("STARTUP should be retained")
	}
}

func TestIntegrationShutdownAfterSequence(t *testing.T) {
	r := newRig()

	r.submit(t, `{"mode":"blink","period_ms":500,"cycles":10}`, 0)
	r.pump(t, 0, 700*time.Millisecond)
	at := startTime.Add(710 * time.Millisecond)
	r.publish(t, r.ctrl.Shutdown(at, "SIGTERM"))

	got := r.publisher.EventTypes()
	if len(got) != 2 || got[1] != control.EventStopped {
		t.Fatalf("events: got %v, want [STARTED STOPPED]", got)
	}
	if r.publisher.Events[1].Reason != "SIGTERM" {
		t.Errorf("stop reason: got %q, want SIGTERM", r.publisher.Events[1].Reason)
	}

	snap := r.tracker.Snapshot()
	payload := status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	var parsed status.StatusJSON
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Phase != "IDLE" || parsed.Status.Indicator != "OFF" {
		t.Errorf("after shutdown: phase=%q indicator=%q", parsed.Status.Phase, parsed.Status.Indicator)
	}
	if parsed.Status.Counts.Started != 1 || parsed.Status.Counts.Stopped != 1 {
		t.Errorf("counts: got %+v", parsed.Status.Counts)
	}
	if r.fake.On() {
		t.Error("indicator should be off after shutdown")
	}
}

func TestIntegrationHeartbeatAfterSequences(t *testing.T) {
	r := newRig()

	r.submit(t, `{"mode":"blink","period_ms":50,"cycles":2}`, 0)
	r.pump(t, 0, 500*time.Millisecond)
	r.submit(t, `{"mode":"off","color":"red"}`, 500*time.Millisecond)
	r.submit(t, `{"mode":"bogus"}`, 510*time.Millisecond)

	hb := r.ctrl.CheckHeartbeat(startTime.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat after 15m")
	}
	if hb.Counts.Started != 1 || hb.Counts.Completed != 1 || hb.Counts.Rejected != 1 {
		t.Errorf("heartbeat counts: got %+v", hb.Counts)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("uptime: got %v, want 15m", hb.Uptime)
	}
	// the off request carried a colour for an RGB-capable fake
	if len(r.fake.Colors) != 1 || r.fake.Colors[0] != indicator.Red {
		t.Errorf("colours: got %v, want [red]", r.fake.Colors)
	}
}

func TestIntegrationMQTTAndHTTPDecodeAlike(t *testing.T) {
	body := []byte(`{"mode":"FREQ","hz":4,"duty":0.5,"total_ms":1000}`)

	viaMQTT := command.Parse("mqtt", body)
	viaHTTP := command.Parse("http", body)
	if viaMQTT.Err != nil || viaHTTP.Err != nil {
		t.Fatalf("parse errors: %v / %v", viaMQTT.Err, viaHTTP.Err)
	}

	p1, _ := viaMQTT.Request.Plan()
	p2, _ := viaHTTP.Request.Plan()
	if p1.String() != p2.String() {
		t.Errorf("plans differ: %s vs %s", p1, p2)
	}
	if p1.Cycles() != 4 || p1.OnDuration() != 125*time.Millisecond {
		t.Errorf("plan: got %s", p1)
	}
}
