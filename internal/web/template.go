package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/cafeteira/internal/display"
	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"onoff": func(on bool) string {
		return string(logic.StateOf(on))
	},
}).Parse(indexHTML))

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h, m, s := int(d/time.Hour), int(d/time.Minute)%60, int(d/time.Second)%60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Cafeteira</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
pre.panel { background: #000; color: #8cf; padding: 0.5em; display: inline-block; }
</style>
</head>
<body>
<h1>Cafeteira</h1>

<h2>State</h2>
<table>
<tr><th>Heating</th><td id="heating" class="{{if .Device.Heating}}on{{else}}off{{end}}">{{onoff .Device.Heating}}</td></tr>
<tr><th>Scheduled</th><td id="scheduled" class="{{if .Device.Scheduled}}on{{else}}off{{end}}">{{onoff .Device.Scheduled}}</td></tr>
{{if .Device.HasReading}}<tr><th>Temperature</th><td id="temperature">{{.Device.Reading.Temperature}}&deg;C</td></tr>
<tr><th>Humidity</th><td id="humidity">{{.Device.Reading.Humidity}}%</td></tr>
{{else}}<tr><th>Sensor</th><td class="unknown">no reading yet</td></tr>
{{end}}<tr><th>Status</th><td id="status-text">{{.Device.Status}}</td></tr>
</table>

<h2>Panel</h2>
<pre class="panel" id="panel">{{range .Panel}}{{printf "%-18s" .}}
{{end}}</pre>

<h2>Connectivity</h2>
<table>
<tr><th>Phase</th><td>{{.Phase}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Activity</h2>
<table>
<tr><th>Button presses</th><td>{{.Counts.ButtonPresses}}</td></tr>
<tr><th>Bounces discarded</th><td>{{.Counts.ButtonDiscarded}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Renders</th><td>{{.Counts.Renders}} ({{.Counts.RendersSkipped}} skipped, {{.Counts.RendersFailed}} failed)</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicPrefix}}/*</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Telemetry</th><td>{{.Config.TelemetryMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/display.txt">panel</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	l := display.FormatLines(snap.Device)
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Panel  []string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Panel:    l[:],
	}
	return indexTmpl.Execute(w, data)
}
