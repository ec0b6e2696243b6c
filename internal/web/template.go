package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/switch-sensor/internal/logic"
	"github.com/sweeney/switch-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"classOrUnknown": func(c logic.Classification) string {
		if c == "" {
			return "UNKNOWN"
		}
		return string(c)
	},
	"active": func(c logic.Classification) bool {
		switch c {
		case logic.SinglePress, logic.SingleHold, logic.DoublePress, logic.DoubleHold,
			logic.LongPress, logic.LongHold, logic.ToggleOn, logic.ToggleRising:
			return true
		}
		return false
	},
}).Parse(indexHTML))

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
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
<title>Switch Sensor: {{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.inactive { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Switch Sensor: {{.Config.Name}}</h1>

<h2>Switch</h2>
<table>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Classification</th><td id="classification" class="{{if active .Classification}}active{{else}}inactive{{end}}">{{classOrUnknown .Classification}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.From}} &rarr; {{.LastEvent.To}} at {{.LastEvent.Timestamp.UTC.Format "15:04:05.000"}}</td></tr>{{end}}
</table>

<h2>Thresholds</h2>
<table>
<tr><th>Long press</th><td>{{.Thresholds.LongPress}}ms</td></tr>
<tr><th>Double press</th><td>{{.Thresholds.DoublePress}}ms</td></tr>
<tr><th>Chatter</th><td>{{.Thresholds.Chatter}}ms</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
{{if eq .Config.Mode "toggle"}}<tr><th>Toggle on</th><td>{{.Counts.ToggleOn}}</td></tr>
<tr><th>Toggle off</th><td>{{.Counts.ToggleOff}}</td></tr>
{{else}}<tr><th>Single</th><td>{{.Counts.Single}}</td></tr>
<tr><th>Double</th><td>{{.Counts.Double}}</td></tr>
<tr><th>Long</th><td>{{.Counts.Long}}</td></tr>
{{end}}<tr><th>Filtered</th><td>{{.Counts.Filtered}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO pin</th><td>{{.Config.Pin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var el = document.getElementById("classification");
  setInterval(function() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) {
      el.textContent = j.status.classification;
    }).catch(function() {});
  }, 1000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
