package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dcorrigan/room-monitor/internal/status"
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
	"switchClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "hold"
	},
	"since": func(d time.Duration) string {
		return d.Truncate(time.Second).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Room Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.hold { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.temp { font-size: 2em; }
.fan-hint { color: #c00; font-weight: bold; }
</style>
</head>
<body>
<h1>Room Monitor</h1>

<p class="temp" id="temperature">{{if .Ready}}{{printf "%.1f" .Temperature}}&deg;C{{else}}--{{end}}
{{if .FanTriggered}}<span class="fan-hint" id="fan-hint">fan on</span>{{end}}</p>

<h2>Room</h2>
<table>
<tr><th>Child</th><td id="child">{{if .Presence.Child}}present{{else}}away{{end}}{{with .Presence.ChildReading}} ({{.RSSI}} dBm){{end}}</td></tr>
<tr><th>Adult</th><td id="adult">{{if .Presence.Adult}}present{{else}}away{{end}}{{with .Presence.AdultReading}} ({{.RSSI}} dBm){{end}}</td></tr>
{{if and .Presence.Child (not .Presence.Adult)}}<tr><th>Adult last seen</th><td>{{since .Presence.SinceAdultSeen}} ago</td></tr>{{end}}
<tr><th>Light</th><td id="light" class="{{switchClass .Light.String}}">{{.Light}}</td></tr>
<tr><th>Fan</th><td id="fan" class="{{switchClass .Fan.String}}">{{.Fan}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Video</h2>
<table>
<tr><th>Trigger</th><td id="trigger">{{.Trigger}}</td></tr>
<tr><th>Last clip</th><td>{{if .LastClipURL}}<a href="{{.LastClipURL}}">{{.LastClipAt.Local.Format "02/01/2006 15:04:05"}}</a>{{else}}none{{end}}</td></tr>
<tr><th>Clips</th><td>{{.Counts.Clips}}</td></tr>
<tr><th>Capture failures</th><td>{{.Counts.CaptureFailures}}</td></tr>
<tr><th>Manual requests</th><td>{{.Counts.ManualRequests}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Companion</th><td class="{{if .CompanionConnected}}connected{{else}}disconnected{{end}}">{{if .CompanionConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Relay failures</th><td>{{.Counts.RelayFailures}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Passes</th><td>{{.Counts.Passes}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Scan</th><td>{{.Config.ScanMs}}ms</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}} dBm</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
