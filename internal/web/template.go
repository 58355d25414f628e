package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/status"
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
	"price": func(s logic.Situation) string {
		return logic.FormatPrice(s.Price())
	},
	"hex": func(c logic.Color) string {
		return fmt.Sprintf("#%02x%02x%02x", int(c.R*255), int(c.G*255), int(c.B*255))
	},
	"onoff": status.OnOff,
	"utc": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Spot Outlet</title>
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
.swatch { display: inline-block; width: 10px; height: 10px; border-radius: 50%; margin-right: 6px; border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>Spot Outlet</h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Situation.Mode}}</td></tr>
<tr><th>Price</th><td id="price">{{price .Situation}} {{.Config.Currency}}/kWh</td></tr>
<tr><th>Threshold</th><td>{{.Config.Threshold}} {{.Config.Currency}}/kWh</td></tr>
{{if .Applied}}<tr><th>Outlet</th><td id="outlet" class="{{if .Actuation.Outlet}}on{{else}}off{{end}}">{{onoff .Actuation.Outlet}}</td></tr>
<tr><th>Indicator</th><td id="indicator"><span class="swatch" style="background: {{hex .Actuation.Color}}"></span>{{.Actuation.Color.Name}}</td></tr>
<tr><th>Applied</th><td>{{utc .AppliedAt}} ({{.Actuations}} total)</td></tr>
{{else}}<tr><th>Outlet</th><td id="outlet" class="unknown">UNKNOWN</td></tr>{{end}}
</table>
<form method="post" action="/mode/next"><button type="submit">Next mode</button></form>

<h2>Prices</h2>
<table>
<tr><th>Area</th><td>{{.Config.Area}} ({{.Config.Timezone}})</td></tr>
<tr><th>Schedule</th><td>{{if .Fetch.Day}}{{.Fetch.Day}} ({{.Fetch.Entries}} entries){{else}}none{{end}}</td></tr>
<tr><th>Last fetch</th><td>{{utc .Fetch.At}}</td></tr>
{{if .Fetch.Err}}<tr><th>Error</th><td class="disconnected">{{.Fetch.Err}} ({{.Fetch.ConsecutiveFailures}} in a row)</td></tr>{{end}}
<tr><th>Clock offset</th><td>{{.ClockOffset}} (synced {{utc .ClockSyncedAt}})</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Hardware</h2>
<table>
<tr><th>Button</th><td>{{if .Hardware.Button}}gpio{{else}}none{{end}}</td></tr>
<tr><th>Outlet</th><td>{{if .Hardware.Outlet}}gpio{{else}}none{{end}}</td></tr>
<tr><th>LED</th><td>{{if .Hardware.LED}}gpio{{else}}none{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .StartTime}}</td></tr>
<tr><th>Button poll</th><td>{{.Config.ButtonPollMs}}ms</td></tr>
<tr><th>Actuator poll</th><td>{{.Config.ActuatorPollMs}}ms</td></tr>
<tr><th>Fetch sleep</th><td>{{.Config.MinSleepMs}}-{{.Config.MaxSleepMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
