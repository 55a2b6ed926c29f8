package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/blinker/internal/blink"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	Indicator     string       `json:"indicator"`
	Plan          string       `json:"plan,omitempty"`
	Progress      *Progress    `json:"progress,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"sequence_counts"`
	Board         BoardJSON    `json:"board"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// Progress reports how far the running sequence has got.
type Progress struct {
	CyclesCompleted  int    `json:"cycles_completed,omitempty"`
	StepIndex        int    `json:"step_index,omitempty"`
	RepeatsCompleted int    `json:"repeats_completed,omitempty"`
	NextDeadline     string `json:"next_deadline"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of lifecycle counts.
type CountsJSON struct {
	Started     int    `json:"started"`
	Completed   int    `json:"completed"`
	Stopped     int    `json:"stopped"`
	Rejected    int    `json:"rejected"`
	Transitions uint64 `json:"transitions"`
}

// BoardJSON is the JSON representation of the indicator hardware.
type BoardJSON struct {
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Driver    string `json:"driver"`
	Chip      string `json:"chip,omitempty"`
	Line      *int   `json:"line,omitempty"`
	ActiveLow bool   `json:"active_low"`
	SysfsName string `json:"sysfs_name,omitempty"`
	RGB       bool   `json:"rgb"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

// IndicatorString renders the indicator state.
func IndicatorString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Phase:         snap.Run.Phase.String(),
		Indicator:     IndicatorString(snap.Run.IndicatorOn),
		Plan:          snap.Plan,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Started:     snap.Counts.Started,
			Completed:   snap.Counts.Completed,
			Stopped:     snap.Counts.Stopped,
			Rejected:    snap.Counts.Rejected,
			Transitions: snap.Transitions,
		},
		Board: BoardJSON{
			Name:      snap.Board.Name,
			Model:     snap.Board.Model,
			Driver:    snap.Board.Driver,
			ActiveLow: snap.Board.ActiveLow,
			SysfsName: snap.Board.SysfsName,
			RGB:       snap.Board.RGB,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
		},
	}

	if snap.Board.Driver == "gpio" {
		line := snap.Board.Line
		inner.Board.Chip = snap.Board.Chip
		inner.Board.Line = &line
	}

	if snap.Run.Phase != blink.PhaseIdle {
		inner.Progress = &Progress{
			CyclesCompleted:  snap.Run.CyclesCompleted,
			StepIndex:        snap.Run.StepIndex,
			RepeatsCompleted: snap.Run.RepeatsCompleted,
			NextDeadline:     snap.Run.NextDeadline.UTC().Format(time.RFC3339Nano),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
