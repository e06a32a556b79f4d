// Package notifier delivers doorbell notifications as a single HTTP GET over
// a raw TCP connection. It is the messaging task's handler: it owns the
// network client, the delivery state machine and the internet-ready flag.
package notifier

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/netclient"
)

// ErrBusy is returned by Send while a delivery is in progress.
var ErrBusy = errors.New("notifier: delivery in progress")

// Buffer sizes.
const (
	PathCapacity    = 256
	ReceiveCapacity = 1024
)

// ClientState is the delivery state machine's state.
type ClientState int

const (
	StateReady ClientState = iota + 1
	StateConnecting
	StateConnected
)

func (s ClientState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

// HTTPState is a snapshot of the delivery state machine.
type HTTPState struct {
	State               ClientState
	ConnectTimeoutTicks uint32
	StatusLineSeen      bool
	PendingPath         string
}

// Config describes the notification endpoint.
type Config struct {
	Host string
	Port int
	// Path is the request path up to and including the text parameter,
	// e.g. "/send.php?apikey=123&text=". The encoded text is appended.
	Path string
	// TimeoutTicks bounds both the connect and response phases.
	TimeoutTicks uint32
	TickInterval time.Duration
	TenantText   string
	StrangerText string
}

// DefaultConfig returns the standard timing and message texts.
func DefaultConfig() Config {
	return Config{
		Port:         80,
		TimeoutTicks: 30,
		TickInterval: time.Second,
		TenantText:   "doorbell: tenant",
		StrangerText: "doorbell: alert - stranger!",
	}
}

// Text returns the message for an outcome.
func (c Config) Text(outcome event.IpcParam) string {
	if outcome == event.IpcTenantDetected {
		return c.TenantText
	}
	return c.StrangerText
}

// Notifier is the messaging task's handler.
type Notifier struct {
	cfg    Config
	client netclient.Client
	app    *actor.AppContext
	timer  actor.Timer
	log    *slog.Logger

	internetReady bool
	state         ClientState
	ticks         uint32
	statusSeen    bool
	path          [PathCapacity]byte
	pathLen       int
	rx            [ReceiveCapacity]byte
	line          [ReceiveCapacity]byte
	lineLen       int
}

// New creates a Notifier whose tick timer posts to the messaging queue.
func New(cfg Config, client netclient.Client, app *actor.AppContext, timers actor.TimerFactory, log *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: client,
		app:    app,
		timer:  timers("http-client", cfg.TickInterval, actor.TickTo(app.Messaging)),
		log:    log,
		state:  StateReady,
	}
}

// Setup has nothing to prepare; the link monitor reports connectivity.
func (n *Notifier) Setup() error {
	return nil
}

// State returns a snapshot of the delivery state machine.
func (n *Notifier) State() HTTPState {
	return HTTPState{
		State:               n.state,
		ConnectTimeoutTicks: n.ticks,
		StatusLineSeen:      n.statusSeen,
		PendingPath:         string(n.path[:n.pathLen]),
	}
}

// InternetReady reports whether the link has an address.
func (n *Notifier) InternetReady() bool {
	return n.internetReady
}

// OnMessage dispatches one message.
func (n *Notifier) OnMessage(msg event.Message) {
	switch msg.Event {
	case event.KindSendMessage:
		n.onSendRequest(event.IpcParam(msg.IParam))
	case event.KindWifiStatus:
		n.onWifi(event.WifiEvent(msg.IParam))
	case event.KindSystem:
		if event.SystemSource(msg.IParam) == event.SysTimerTick && msg.LParam == n.timer.ID() {
			n.OnTick()
			return
		}
		n.log.Debug("unsupported system event", "msg", msg)
	default:
		n.log.Debug("unsupported event", "msg", msg)
	}
}

func (n *Notifier) onSendRequest(outcome event.IpcParam) {
	if !n.internetReady {
		n.log.Info("internet not ready, notification dropped", "outcome", outcome)
		n.reportStatus(event.StatusSentFail)
		return
	}
	n.reportStatus(event.StatusSending)
	if err := n.Send(n.cfg.Text(outcome)); err != nil && !errors.Is(err, ErrBusy) {
		n.reportStatus(event.StatusSentFail)
	}
}

func (n *Notifier) onWifi(w event.WifiEvent) {
	n.log.Info("wifi event", "event", w, "description", w.Description())
	switch w {
	case event.WifiStaGotIP, event.WifiEthGotIP:
		n.internetReady = true
		n.postInternet(event.InternetConnected)
	case event.WifiStaLostIP:
		n.internetReady = false
		n.postInternet(event.InternetDisconnected)
	}
}

// Send starts delivering text. It is rejected unless the state machine is
// Ready. A connect failure leaves it Ready.
func (n *Notifier) Send(text string) error {
	if n.state != StateReady {
		n.log.Warn("send rejected", "state", n.state)
		return ErrBusy
	}

	full := n.cfg.Path + Encode(text)
	n.pathLen = copy(n.path[:PathCapacity-1], full)
	if n.pathLen < len(full) {
		n.pathLen = trimEscape(n.path[:n.pathLen])
		n.log.Warn("notification path truncated", "length", len(full), "kept", n.pathLen)
	}
	n.log.Debug("connecting", "host", n.cfg.Host, "port", n.cfg.Port)

	if err := n.client.Connect(n.cfg.Host, n.cfg.Port); err != nil {
		n.log.Warn("connect failed", "host", n.cfg.Host, "port", n.cfg.Port, "error", err)
		return fmt.Errorf("connect %s:%d: %w", n.cfg.Host, n.cfg.Port, err)
	}

	n.state = StateConnecting
	n.ticks = 0
	n.statusSeen = false
	n.lineLen = 0
	n.timer.Start()
	return nil
}

// OnTick advances the state machine by one tick.
func (n *Notifier) OnTick() {
	switch n.state {
	case StateConnecting:
		n.tickConnecting()
	case StateConnected:
		n.tickConnected()
	}
}

func (n *Notifier) tickConnecting() {
	if !n.client.Connected() {
		n.ticks++
		if n.ticks >= n.cfg.TimeoutTicks {
			n.log.Warn("connect timeout", "ticks", n.ticks)
			n.finish(event.StatusSentFail)
			return
		}
		n.log.Debug("waiting for connection", "ticks", n.ticks)
		return
	}

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n",
		n.path[:n.pathLen], n.cfg.Host)
	if _, err := n.client.Write([]byte(req)); err != nil {
		n.log.Warn("write request failed", "error", err)
		n.finish(event.StatusSentFail)
		return
	}
	n.state = StateConnected
	n.ticks = 0
}

func (n *Notifier) tickConnected() {
	if code, ok := n.readStatus(); ok {
		n.log.Info("notification response", "code", code)
		if code == 200 {
			n.finish(event.StatusSentSuccess)
		} else {
			n.finish(event.StatusSentFail)
		}
		return
	}

	n.ticks++
	if n.ticks >= n.cfg.TimeoutTicks {
		n.log.Warn("response timeout", "ticks", n.ticks)
		n.finish(event.StatusSentFail)
	}
}

// readStatus drains available bytes and parses the first status line. The
// line may arrive split across reads; it is parsed once its newline is in.
func (n *Notifier) readStatus() (int, bool) {
	for avail := n.client.Available(); avail > 0; avail = n.client.Available() {
		size := avail
		if size > len(n.rx) {
			size = len(n.rx)
		}
		got, err := n.client.Read(n.rx[:size])
		if err != nil || got == 0 {
			return 0, false
		}
		if n.statusSeen {
			continue
		}
		n.collect(n.rx[:got])
		if code, ok := n.parseStatus(); ok {
			return code, true
		}
	}
	return 0, false
}

// collect appends data to the pending line, keeping the newest bytes.
func (n *Notifier) collect(data []byte) {
	if len(data) > len(n.line) {
		data = data[len(data)-len(n.line):]
	}
	if over := n.lineLen + len(data) - len(n.line); over > 0 {
		copy(n.line[:], n.line[over:n.lineLen])
		n.lineLen -= over
	}
	n.lineLen += copy(n.line[n.lineLen:], data)
}

// discard drops the first k pending bytes.
func (n *Notifier) discard(k int) {
	copy(n.line[:], n.line[k:n.lineLen])
	n.lineLen -= k
}

func (n *Notifier) parseStatus() (int, bool) {
	prefix := []byte("HTTP/")
	buf := n.line[:n.lineLen]
	idx := bytes.Index(buf, prefix)
	if idx < 0 {
		// Keep a possible partial prefix.
		if keep := len(prefix) - 1; n.lineLen > keep {
			n.discard(n.lineLen - keep)
		}
		return 0, false
	}
	end := bytes.IndexByte(buf[idx:], '\n')
	if end < 0 {
		n.discard(idx)
		return 0, false
	}
	n.statusSeen = true
	var major, minor, code int
	if _, err := fmt.Sscanf(string(buf[idx:idx+end]), "HTTP/%d.%d %d", &major, &minor, &code); err != nil {
		n.log.Warn("malformed status line", "error", err)
		return 0, true
	}
	return code, true
}

func (n *Notifier) finish(status event.MessageStatus) {
	n.timer.Stop()
	if err := n.client.Stop(); err != nil {
		n.log.Debug("close connection", "error", err)
	}
	n.state = StateReady
	n.ticks = 0
	n.lineLen = 0
	n.reportStatus(status)
}

func (n *Notifier) reportStatus(status event.MessageStatus) {
	if err := n.app.Main.Post(event.KindMessageStatus, int32(status), 0, 0); err != nil {
		n.log.Warn("dropping delivery status", "status", status, "error", err)
	}
}

func (n *Notifier) postInternet(s event.InternetStatus) {
	if err := n.app.Main.Post(event.KindInternetStatus, int32(s), 0, 0); err != nil {
		n.log.Warn("dropping internet status", "status", s, "error", err)
	}
}
