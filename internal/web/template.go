package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/garage-controller/internal/status"
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
	"lower": func(s fmt.Stringer) string {
		return strings.ToLower(s.String())
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: red; font-weight: bold; }
.closed { color: green; font-weight: bold; }
.stopped, .opening, .closing, .unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>

<h2>Door</h2>
<table>
<tr><th>Status</th><td class="{{lower .Door.Status}}">{{.Door.Status}}</td></tr>
<tr><th>Last event</th><td>{{.Door.Event}}</td></tr>
<tr><th>Vehicle</th><td>{{.Door.Vehicle}}</td></tr>
<tr><th>Distance</th><td>{{.Door.Distance}} cm{{if .Door.Stale}} (held){{end}}{{if .Door.LowConfidence}} (partial){{end}}</td></tr>
{{if .Config.SwitchInstalled}}<tr><th>Switch</th><td>{{if .Door.Switch}}high{{else}}low{{end}}</td></tr>{{end}}
{{if .Config.Decoder}}<tr><th>Light</th><td>{{onOff .Door.Light}}</td></tr>
<tr><th>Lock</th><td>{{onOff .Door.Lock}}</td></tr>
<tr><th>Obstruction</th><td>{{if .Door.Obstruction}}yes{{else}}no{{end}}</td></tr>
<tr><th>Openings</th><td>{{.Door.Openings}}</td></tr>{{end}}
<tr><th>Alarm</th><td>{{if .AlarmTicks}}{{.AlarmTicks}} ticks left{{else}}idle{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opened</th><td>{{.Counts.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Counts.Closed}}</td></tr>
<tr><th>Stopped</th><td>{{.Counts.Stopped}}</td></tr>
<tr><th>Skipped cycles</th><td>{{.Counts.Skipped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Firmware</th><td>{{.Config.Firmware}}</td></tr>
<tr><th>Read interval</th><td>{{.Config.ReadIntervalS}}s</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/jc">Controller</a> · <a href="/jl">Log</a></p>
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
