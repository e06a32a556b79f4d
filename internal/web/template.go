package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/mqtt"
	"github.com/sweeney/doorbell-sensor/internal/status"
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Doorbell</title>
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
<h1>Doorbell{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Inference</th><td id="armed" class="{{if .State.InferenceArmed}}on{{else}}off{{end}}">{{if .State.InferenceArmed}}ARMED{{else}}DISARMED{{end}}</td></tr>
<tr><th>Sending</th><td id="sending">{{yesno .State.MessageSending}}</td></tr>
<tr><th>Last notified</th><td id="last-notified">{{.LastNotified}}</td></tr>
<tr><th>Idle</th><td>{{.State.IdleSeconds}}s</td></tr>
<tr><th>Last event</th><td id="last-event">{{if .LastActivity}}{{.LastActivity}}{{else}}none{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Internet</th><td class="{{if .State.InternetConnected}}connected{{else}}disconnected{{end}}">{{if .State.InternetConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Notify host</th><td>{{.Config.NotifyHost}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Strangers</th><td>{{.Counts.Strangers}}</td></tr>
<tr><th>Tenants</th><td>{{.Counts.Tenants}}</td></tr>
<tr><th>Notifications sent</th><td>{{.Counts.NotificationsSent}}</td></tr>
<tr><th>Notifications failed</th><td>{{.Counts.NotificationsFail}}</td></tr>
<tr><th>Button</th><td>{{.Counts.Clicks}} / {{.Counts.DoubleClicks}} / {{.Counts.LongPresses}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Score threshold</th><td>{{.Config.ScoreThreshold}}</td></tr>
<tr><th>NPU</th><td>{{.Config.NPUPort}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var armedEl = document.getElementById("armed");
  var sendingEl = document.getElementById("sending");
  var eventEl = document.getElementById("last-event");
  var notifiedEl = document.getElementById("last-notified");

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
      if (msg.doorbell) {
        var d = msg.doorbell;
        armedEl.textContent = d.state.armed ? "ARMED" : "DISARMED";
        armedEl.className = d.state.armed ? "on" : "off";
        sendingEl.textContent = d.state.sending ? "yes" : "no";
        eventEl.textContent = d.event;
        if (d.event === "NOTIFY" || d.event === "DISARMED") {
          notifiedEl.textContent = d.outcome || notifiedEl.textContent;
        }
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
		Uptime       time.Duration
		LastNotified string
		Topic        string
	}{
		Snapshot:     snap,
		Uptime:       snap.Uptime(),
		LastNotified: status.LastNotifiedLabel(snap),
		Topic:        mqtt.Topic,
	}
	indexTmpl.Execute(w, data)
}
