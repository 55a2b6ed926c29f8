package control

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/command"
	"github.com/sweeney/blinker/internal/indicator"
)

// Colorer is satisfied by outputs that can change colour. ApplyColor
// reports whether the colour was used.
type Colorer interface {
	ApplyColor(c blink.Color) bool
}

// Controller owns a Machine and reports what happens to it.
// Like the machine it is not safe for concurrent use.
type Controller struct {
	machine *blink.Machine
	colorer Colorer
	log     zerolog.Logger

	// brightness scales requested colours, 255 is full
	brightness uint8

	active        bool
	plan          blink.Plan
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// New creates a controller driving out. colorer may be nil.
func New(out blink.Indicator, colorer Colorer, startTime time.Time, logger zerolog.Logger) *Controller {
	return &Controller{
		machine:       blink.NewMachine(out),
		colorer:       colorer,
		log:           logger,
		brightness:    255,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// SetBrightness sets the 0-255 brightness applied to requested colours.
func (c *Controller) SetBrightness(b uint8) {
	c.brightness = b
}

// Handle applies a submission and returns the resulting events.
func (c *Controller) Handle(sub command.Submission, now time.Time) []Event {
	if sub.Err != nil {
		return []Event{c.reject(sub, sub.Err, now)}
	}

	req := sub.Request
	if req.Color != "" {
		col, err := req.ParseColor()
		if err != nil {
			return []Event{c.reject(sub, err, now)}
		}
		if c.colorer == nil || !c.colorer.ApplyColor(indicator.Scale(col, c.brightness)) {
			c.log.Debug().Str("color", req.Color).Msg("indicator has no colour, ignoring")
		}
	}

	switch req.Mode {
	case command.ModeStop:
		var events []Event
		if ev, ok := c.stop(now, StopRequested, sub.Source); ok {
			events = append(events, ev)
		}
		c.machine.Stop()
		return events

	case command.ModeOn, command.ModeOff, command.ModeToggle:
		var events []Event
		if ev, ok := c.stop(now, StopManual, sub.Source); ok {
			events = append(events, ev)
		}
		switch req.Mode {
		case command.ModeOn:
			c.machine.Set(true)
		case command.ModeOff:
			c.machine.Set(false)
		default:
			c.machine.Toggle()
		}
		return events
	}

	plan, err := req.Plan()
	if err != nil {
		return []Event{c.reject(sub, err, now)}
	}
	return c.start(plan, now, sub.Source)
}

// Start runs plan directly, bypassing request decoding.
func (c *Controller) Start(plan blink.Plan, now time.Time, source string) []Event {
	return c.start(plan, now, source)
}

func (c *Controller) start(plan blink.Plan, now time.Time, source string) []Event {
	var events []Event
	if ev, ok := c.stop(now, StopReplaced, source); ok {
		events = append(events, ev)
	}

	if !c.machine.Start(plan, now) {
		c.log.Info().Str("plan", plan.String()).Msg("plan is empty, nothing to run")
		return events
	}

	c.active = true
	c.plan = plan
	c.counts.Started++
	// Act immediately so the first on/off does not wait for the next tick.
	c.machine.Poll(now)

	return append(events, Event{
		Timestamp: now,
		Type:      EventStarted,
		Kind:      plan.Kind().String(),
		Plan:      plan.String(),
		Source:    source,
	})
}

// stop ends the running sequence early, if there is one.
func (c *Controller) stop(now time.Time, reason, source string) (Event, bool) {
	if !c.active {
		return Event{}, false
	}
	c.machine.Stop()
	c.active = false
	c.counts.Stopped++
	return Event{
		Timestamp: now,
		Type:      EventStopped,
		Kind:      c.plan.Kind().String(),
		Plan:      c.plan.String(),
		Reason:    reason,
		Source:    source,
	}, true
}

func (c *Controller) reject(sub command.Submission, err error, now time.Time) Event {
	c.counts.Rejected++
	return Event{
		Timestamp: now,
		Type:      EventRejected,
		Reason:    command.Reason(err),
		Source:    sub.Source,
		Detail:    err.Error(),
	}
}

// Tick polls the machine and reports completion.
func (c *Controller) Tick(now time.Time) []Event {
	if !c.active {
		return nil
	}
	if c.machine.Poll(now) {
		return nil
	}
	c.active = false
	c.counts.Completed++
	return []Event{{
		Timestamp: now,
		Type:      EventCompleted,
		Kind:      c.plan.Kind().String(),
		Plan:      c.plan.String(),
	}}
}

// Shutdown stops any running sequence and turns the indicator off.
func (c *Controller) Shutdown(now time.Time, reason string) []Event {
	var events []Event
	if ev, ok := c.stop(now, reason, ""); ok {
		events = append(events, ev)
	}
	c.machine.Set(false)
	return events
}

// IsActive reports whether a sequence is running.
func (c *Controller) IsActive() bool {
	return c.active
}

// State returns the machine's progress.
func (c *Controller) State() blink.RunState {
	return c.machine.State()
}

// Transitions returns how many times the indicator changed state.
func (c *Controller) Transitions() uint64 {
	return c.machine.Transitions()
}

// CountsSnapshot returns a copy of the lifecycle counts.
func (c *Controller) CountsSnapshot() Counts {
	return c.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
