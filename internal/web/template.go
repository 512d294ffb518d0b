package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/status"
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
	"levelClass": func(l logic.Level) string {
		switch l {
		case logic.Intense:
			return "intense"
		case logic.HighIntense:
			return "high"
		}
		return "normal"
	},
	"phaseName": func(running bool, p logic.Phase) string {
		if !running {
			return "STARTING"
		}
		return p.String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Traffic Light</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: #888; }
.intense { color: orange; font-weight: bold; }
.high { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Traffic Light{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Signals</h2>
<table>
<tr><th>Phase</th><td id="phase">{{phaseName .Running .Phase}}</td></tr>
<tr><th>Remaining</th><td>{{.Remaining}}</td></tr>
<tr><th>Cycle</th><td id="cycle">{{.Cycle}}</td></tr>
</table>

<h2>Intensity</h2>
<table>
<tr><th>Left</th><td id="left" class="{{levelClass .Left}}">{{.Left}}</td><td>{{.LeftRate}}{{if .LeftOn}} (lit){{end}}</td></tr>
<tr><th>Right</th><td id="right" class="{{levelClass .Right}}">{{.Right}}</td><td>{{.RightRate}}{{if .RightOn}} (lit){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Serial</th><td>{{if .Config.Serial}}{{.Config.Serial}}{{else}}stdio{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Phases</th><td>{{.Counts.Phases}}</td></tr>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Intensity changes</th><td>{{.Counts.Intensity}}</td></tr>
<tr><th>Edges accepted</th><td>{{.Counts.EdgesOK}}</td></tr>
<tr><th>Edges rejected</th><td>{{.Counts.EdgesDenied}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Unknown commands</th><td>{{.Counts.Unknown}}</td></tr>
<tr><th>Dropped bytes</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Indicator write failures</th><td>{{.Counts.PinErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Scale</th><td>{{.Config.Scale}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var phaseEl = document.getElementById("phase");
  var cycleEl = document.getElementById("cycle");
  var leftEl = document.getElementById("left");
  var rightEl = document.getElementById("right");
  var classes = { Normal: "normal", Intense: "intense", HighIntense: "high" };

  function setLevel(el, level) {
    el.textContent = level;
    el.className = classes[level] || "normal";
  }

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
      if (msg.traffic) {
        if (msg.traffic.phase) {
          phaseEl.textContent = msg.traffic.phase;
        }
        cycleEl.textContent = msg.traffic.cycle;
        setLevel(leftEl, msg.traffic.left);
        setLevel(rightEl, msg.traffic.right);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

// renderHTML executes the template into a buffer first so a template error
// never leaves a half-written page.
func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Remaining time.Duration
		Topic     string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Remaining: snap.Remaining.Truncate(time.Second),
		Topic:     mqtt.Topic,
	}
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
