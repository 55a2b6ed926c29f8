// Package control turns remote submissions and clock ticks into machine
// actions and lifecycle events for a single indicator.
// It performs no I/O: time is passed in and events are returned to the
// caller for publishing.
package control

import "time"

// EventType names a sequence lifecycle event.
type EventType string

const (
	EventStarted   EventType = "STARTED"
	EventCompleted EventType = "COMPLETED"
	EventStopped   EventType = "STOPPED"
	EventRejected  EventType = "REJECTED"
)

// Event is a lifecycle change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Kind      string // "uniform" or "pattern", empty for rejections
	Plan      string
	Reason    string // rejection label or stop cause
	Source    string // "mqtt", "http" or "cli"
	Detail    string // error text for rejections
}

// Counts tracks lifecycle events since startup.
type Counts struct {
	Started   int
	Completed int
	Stopped   int
	Rejected  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// Stop causes reported in Event.Reason.
const (
	StopRequested = "REQUESTED"
	StopReplaced  = "REPLACED"
	StopManual    = "MANUAL"
)
