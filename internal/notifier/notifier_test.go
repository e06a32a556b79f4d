package notifier

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/netclient"
)

type fixture struct {
	n      *Notifier
	client *netclient.FakeClient
	app    *actor.AppContext
	timer  *actor.ManualTimer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host = "api.example.com"
	cfg.Path = "/send.php?phone=123&text="

	timers := actor.NewManualTimers()
	app := actor.NewAppContext()
	client := &netclient.FakeClient{}
	n := New(cfg, client, app, timers.New, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, n.Setup())
	return &fixture{n: n, client: client, app: app, timer: timers.Get("http-client")}
}

func (f *fixture) online() {
	f.n.OnMessage(event.New(event.KindWifiStatus, int32(event.WifiStaGotIP), 0, 0))
}

func (f *fixture) request(outcome event.IpcParam) {
	f.n.OnMessage(event.New(event.KindSendMessage, int32(outcome), 0, 0))
}

// tick fires the timer and delivers the tick through the messaging queue.
func (f *fixture) tick(t *testing.T) {
	t.Helper()
	require.True(t, f.timer.Fire(), "http timer not running")
	f.n.OnMessage(<-f.app.Messaging.Receive())
}

func (f *fixture) statuses() []event.MessageStatus {
	var out []event.MessageStatus
	for f.app.Main.Len() > 0 {
		m := <-f.app.Main.Receive()
		if m.Event == event.KindMessageStatus {
			out = append(out, event.MessageStatus(m.IParam))
		}
	}
	return out
}

func TestDeliverySuccess(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)

	assert.Equal(t, StateConnecting, f.n.State().State)
	assert.Equal(t, "api.example.com", f.client.Host)
	assert.Equal(t, 80, f.client.Port)

	// Tick 1: socket not yet connected.
	f.tick(t)
	assert.Equal(t, uint32(1), f.n.State().ConnectTimeoutTicks)

	// Tick 2: connected, request written.
	f.client.Ready = true
	f.tick(t)
	assert.Equal(t, StateConnected, f.n.State().State)
	assert.Equal(t,
		"GET /send.php?phone=123&text=doorbell%3A%20alert%20-%20stranger%21 HTTP/1.1\r\n"+
			"Host: api.example.com\r\nConnection: close\r\n\r\n",
		f.client.Written.String())

	// Tick 3: status line arrives.
	f.client.Deliver("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nsent")
	f.tick(t)

	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentSuccess}, f.statuses())
	assert.Equal(t, StateReady, f.n.State().State)
	assert.True(t, f.n.State().StatusLineSeen)
	assert.False(t, f.timer.Running())
	assert.Equal(t, 1, f.client.Stops)
}

func TestDeliveryNon200Fails(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcTenantDetected)
	f.client.Ready = true
	f.tick(t)
	assert.Contains(t, f.client.Written.String(), "text=doorbell%3A%20tenant ")

	f.client.Deliver("HTTP/1.0 403 Forbidden\r\n\r\n")
	f.tick(t)

	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentFail}, f.statuses())
	assert.Equal(t, StateReady, f.n.State().State)
}

func TestConnectTimeout(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)

	for i := 0; i < 29; i++ {
		f.tick(t)
	}
	assert.Equal(t, StateConnecting, f.n.State().State)
	assert.Equal(t, []event.MessageStatus{event.StatusSending}, f.statuses())

	f.tick(t)
	assert.Equal(t, []event.MessageStatus{event.StatusSentFail}, f.statuses())
	assert.Equal(t, StateReady, f.n.State().State)
	assert.False(t, f.timer.Running())
	assert.Empty(t, f.client.Written.String())
}

func TestResponseTimeout(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)
	f.client.Ready = true
	f.tick(t)

	f.client.Deliver("garbage without a status line")
	for i := 0; i < 30; i++ {
		f.tick(t)
	}

	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentFail}, f.statuses())
	assert.Equal(t, StateReady, f.n.State().State)
}

func TestMalformedStatusLineFails(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)
	f.client.Ready = true
	f.tick(t)

	f.client.Deliver("HTTP/x\r\n")
	f.tick(t)
	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentFail}, f.statuses())
}

func TestOversizedResponseTruncated(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)
	f.client.Ready = true
	f.tick(t)

	f.client.Deliver(strings.Repeat("x", ReceiveCapacity+100) + "HTTP/1.1 200 OK\r\n")
	f.tick(t)
	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentSuccess}, f.statuses())
}

func TestOfflineRequestFails(t *testing.T) {
	f := newFixture(t)
	f.request(event.IpcStrangerDetected)

	assert.Equal(t, []event.MessageStatus{event.StatusSentFail}, f.statuses())
	assert.Equal(t, 0, f.client.Connects)
}

func TestConnectFailureReportsFail(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.client.ConnectError = errors.New("no route")
	f.request(event.IpcStrangerDetected)

	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentFail}, f.statuses())
	assert.Equal(t, StateReady, f.n.State().State)
	assert.False(t, f.timer.Running())
}

func TestWriteFailureReportsFail(t *testing.T) {
	f := newFixture(t)
	f.online()
	f.request(event.IpcStrangerDetected)
	f.client.Ready = true
	f.client.WriteError = errors.New("broken pipe")
	f.tick(t)

	assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentFail}, f.statuses())
}

func TestSendRejectedWhileBusy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.n.Send("first"))

	err := f.n.Send("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, f.client.Connects)
	assert.Contains(t, f.n.State().PendingPath, "first")
}

func TestPathTruncated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.n.Send(strings.Repeat("a", 400)))

	assert.Len(t, f.n.State().PendingPath, PathCapacity-1)
}

func TestPathTruncatedOnEscapeBoundary(t *testing.T) {
	// The prefix is 25 bytes, so each offset lands the cut at a different
	// position inside a %21 escape.
	for extra := 0; extra < 3; extra++ {
		f := newFixture(t)
		text := strings.Repeat("a", extra) + strings.Repeat("!", 200)
		require.NoError(t, f.n.Send(text))

		path := f.n.State().PendingPath
		assert.LessOrEqual(t, len(path), PathCapacity-1)
		assert.GreaterOrEqual(t, len(path), PathCapacity-3)
		query := strings.TrimPrefix(path, f.n.cfg.Path)
		dec, err := Decode(query)
		require.NoError(t, err, "truncated path %q", path)
		assert.True(t, strings.HasPrefix(text, dec))
	}
}

func TestTrimEscape(t *testing.T) {
	assert.Equal(t, 3, trimEscape([]byte("a%2")))
	assert.Equal(t, 3, trimEscape([]byte("abc%")))
	assert.Equal(t, 4, trimEscape([]byte("a%21")))
	assert.Equal(t, 0, trimEscape(nil))
}

func TestStatusLineSplitAcrossReads(t *testing.T) {
	splits := [][2]string{
		{"HTTP/1.1 2", "00 OK\r\n\r\n"},
		{"HT", "TP/1.1 200 OK\r\n\r\n"},
		{"junk HTTP/1.1 200", " OK\r\nServer: x\r\n\r\n"},
	}
	for _, parts := range splits {
		f := newFixture(t)
		f.online()
		f.request(event.IpcStrangerDetected)
		f.client.Ready = true
		f.tick(t)

		f.client.Deliver(parts[0])
		f.tick(t)
		assert.Equal(t, StateConnected, f.n.State().State, "first part %q", parts[0])

		f.client.Deliver(parts[1])
		f.tick(t)
		assert.Equal(t, []event.MessageStatus{event.StatusSending, event.StatusSentSuccess}, f.statuses(),
			"split %q | %q", parts[0], parts[1])
	}
}

func TestWifiEvents(t *testing.T) {
	f := newFixture(t)

	f.n.OnMessage(event.New(event.KindWifiStatus, int32(event.WifiStaConnected), 0, 0))
	assert.False(t, f.n.InternetReady())
	assert.Equal(t, 0, f.app.Main.Len())

	f.online()
	assert.True(t, f.n.InternetReady())
	m := <-f.app.Main.Receive()
	assert.Equal(t, event.KindInternetStatus, m.Event)
	assert.Equal(t, event.InternetConnected, event.InternetStatus(m.IParam))

	f.n.OnMessage(event.New(event.KindWifiStatus, int32(event.WifiStaLostIP), 0, 0))
	assert.False(t, f.n.InternetReady())
	m = <-f.app.Main.Receive()
	assert.Equal(t, event.InternetDisconnected, event.InternetStatus(m.IParam))
}

func TestTickWhileReadyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.n.OnTick()
	f.n.OnMessage(event.New(event.KindSystem, int32(event.SysTimerTick), 0, 424242))
	f.n.OnMessage(event.New(event.KindIpc, int32(event.IpcNpuStart), 0, 0))

	assert.Equal(t, StateReady, f.n.State().State)
	assert.Equal(t, 0, f.app.Main.Len())
}

func TestEncodeRoundTrip(t *testing.T) {
	inputs := []string{
		"doorbell: alert - stranger!",
		"doorbell: tenant",
		"a+b=c&d/e?f#g",
		"ümlaut ✓ 100%",
		"",
	}
	for _, in := range inputs {
		enc := Encode(in)
		assert.NotContains(t, enc, " ")
		assert.NotContains(t, enc, "+")
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)
	}
	assert.Equal(t, "doorbell%3A%20tenant", Encode("doorbell: tenant"))
}

func TestConfigText(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "doorbell: tenant", cfg.Text(event.IpcTenantDetected))
	assert.Equal(t, "doorbell: alert - stranger!", cfg.Text(event.IpcStrangerDetected))
}
