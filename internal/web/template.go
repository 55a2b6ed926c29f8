package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/blinker/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": status.IndicatorString,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Blinker</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Blinker{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Sequence</h2>
<table>
<tr><th>Phase</th><td id="phase">{{.Run.Phase}}</td></tr>
<tr><th>Indicator</th><td id="indicator" class="{{if .Run.IndicatorOn}}on{{else}}off{{end}}">{{onOff .Run.IndicatorOn}}</td></tr>
<tr><th>Plan</th><td id="plan">{{if .Plan}}{{.Plan}}{{else}}none{{end}}</td></tr>
{{if .Plan}}<tr><th>Progress</th><td>cycles {{.Run.CyclesCompleted}}, step {{.Run.StepIndex}}, repeats {{.Run.RepeatsCompleted}}</td></tr>{{end}}
<tr><th>Last event</th><td id="last-event">-</td></tr>
</table>

<h2>Board</h2>
<table>
<tr><th>Profile</th><td>{{.Board.Name}}</td></tr>
{{if .Board.Model}}<tr><th>Model</th><td>{{.Board.Model}}</td></tr>{{end}}
<tr><th>Driver</th><td>{{.Board.Driver}}</td></tr>
{{if eq .Board.Driver "gpio"}}<tr><th>Line</th><td>{{.Board.Chip}}:{{.Board.Line}}{{if .Board.ActiveLow}} (active low){{end}}</td></tr>{{end}}
{{if .Board.SysfsName}}<tr><th>LED</th><td>{{.Board.SysfsName}}{{if .Board.RGB}} (rgb){{end}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Sequence Counts</h2>
<table>
<tr><th>Started</th><td>{{.Counts.Started}}</td></tr>
<tr><th>Completed</th><td>{{.Counts.Completed}}</td></tr>
<tr><th>Stopped</th><td>{{.Counts.Stopped}}</td></tr>
<tr><th>Rejected</th><td>{{.Counts.Rejected}}</td></tr>
<tr><th>Transitions</th><td>{{.Transitions}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "indicator/blinker/events";
  var dot = document.getElementById("live-dot");
  var phaseEl = document.getElementById("phase");
  var planEl = document.getElementById("plan");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      var seq = msg.sequence;
      if (!seq) {
        return;
      }
      lastEl.textContent = seq.event + (seq.reason ? " (" + seq.reason + ")" : "") + " " + seq.timestamp;
      if (seq.event === "STARTED") {
        phaseEl.textContent = seq.kind === "pattern" ? "RUNNING_PATTERN" : "RUNNING_UNIFORM";
        planEl.textContent = seq.plan || "";
      } else if (seq.event === "COMPLETED" || seq.event === "STOPPED") {
        phaseEl.textContent = "IDLE";
        planEl.textContent = "none";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
