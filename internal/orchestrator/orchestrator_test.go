package orchestrator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/gpio"
)

const (
	pirPin    = gpio.DefaultPinPIR
	buttonPin = gpio.DefaultPinButton
)

type recorder struct {
	reports []event.Report
}

func (r *recorder) Observe(rep event.Report) {
	r.reports = append(r.reports, rep)
}

func (r *recorder) activities() []event.Activity {
	var out []event.Activity
	for _, rep := range r.reports {
		out = append(out, rep.Activity)
	}
	return out
}

type fixture struct {
	o        *Orchestrator
	app      *actor.AppContext
	pir      *gpio.FakeInput
	button   *gpio.FakeInput
	timers   *actor.ManualTimers
	observed *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		app:      actor.NewAppContext(),
		timers:   actor.NewManualTimers(),
		observed: &recorder{},
	}
	f.pir = gpio.NewFakeInput(pirPin, 0, f.isr)
	f.button = gpio.NewFakeInput(buttonPin, 1, f.isr)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.o = New(DefaultConfig(), f.app, f.pir, f.button, f.timers.New, f.observed,
		func() time.Time { return clock }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, f.o.Setup())
	return f
}

// isr posts edges the way the real line handlers do.
func (f *fixture) isr(pin, level int, ms uint32) {
	f.app.Main.PostFromISR(event.KindGpioEdge, int32(pin), uint32(level), ms)
}

// pump delivers every pending main-queue message.
func (f *fixture) pump() {
	for f.app.Main.Len() > 0 {
		f.o.OnMessage(<-f.app.Main.Receive())
	}
}

func (f *fixture) send(kind event.Kind, iParam int32) {
	f.o.OnMessage(event.New(kind, iParam, 0, 0))
}

func (f *fixture) outcome(p event.IpcParam) {
	f.send(event.KindIpc, int32(p))
}

func (f *fixture) status(s event.MessageStatus) {
	f.send(event.KindMessageStatus, int32(s))
}

func drain(q *actor.Queue) []event.Message {
	var out []event.Message
	for q.Len() > 0 {
		out = append(out, <-q.Receive())
	}
	return out
}

func (f *fixture) motion() {
	f.pir.Edge(1, 0)
	f.pump()
}

func TestSetup(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.timers.Get("housekeeping").Running())
	assert.False(t, f.timers.Get("debounce").Running())
	assert.Equal(t, 1, f.pir.Enables)
	assert.Equal(t, []event.Activity{event.ActivityStartup}, f.observed.activities())
}

func TestMotionArmsInference(t *testing.T) {
	f := newFixture(t)
	f.motion()

	st := f.o.State()
	assert.True(t, st.InferenceArmed)
	assert.False(t, f.pir.Enabled())

	npu := drain(f.app.Npu)
	require.Len(t, npu, 1)
	assert.Equal(t, event.IpcNpuStart, event.IpcParam(npu[0].IParam))

	// Further edges are not delivered while the interrupt is off, and a
	// queued edge is ignored while armed.
	assert.False(t, f.pir.Edge(0, 10))
	f.send(event.KindGpioEdge, pirPin)
	assert.Empty(t, drain(f.app.Npu))
}

func TestStrangerNotifiedOnce(t *testing.T) {
	f := newFixture(t)
	f.motion()

	f.outcome(event.IpcStrangerDetected)
	f.outcome(event.IpcStrangerDetected)

	msgs := drain(f.app.Messaging)
	require.Len(t, msgs, 1)
	assert.Equal(t, event.KindSendMessage, msgs[0].Event)
	assert.Equal(t, event.IpcStrangerDetected, event.IpcParam(msgs[0].IParam))
	assert.True(t, f.o.State().MessageSending)
}

func TestSingleNotificationInFlight(t *testing.T) {
	f := newFixture(t)
	f.motion()

	f.outcome(event.IpcStrangerDetected)
	f.status(event.StatusSending)
	f.outcome(event.IpcTenantDetected)
	assert.True(t, f.o.State().MessageSending)
	assert.Len(t, drain(f.app.Messaging), 1)

	f.status(event.StatusSentSuccess)
	assert.False(t, f.o.State().MessageSending)

	f.outcome(event.IpcTenantDetected)
	msgs := drain(f.app.Messaging)
	require.Len(t, msgs, 1)
	assert.Equal(t, event.IpcTenantDetected, event.IpcParam(msgs[0].IParam))
}

func TestSendingFlagLifecycle(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		status event.MessageStatus
		want   bool
	}{
		{event.StatusSending, true},
		{event.StatusSentFail, false},
		{event.StatusSending, true},
		{event.StatusSentSuccess, false},
		{event.StatusSending, true},
		{event.StatusUnknown, false},
	}
	for _, s := range steps {
		f.status(s.status)
		assert.Equal(t, s.want, f.o.State().MessageSending, "after %s", s.status)
	}
}

func TestDisarmAfterEmptyScene(t *testing.T) {
	f := newFixture(t)
	f.motion()
	f.pir.SetLevel(0)
	drain(f.app.Npu)

	for i := 0; i < 9; i++ {
		f.outcome(event.IpcNoObject)
	}
	assert.True(t, f.o.State().InferenceArmed)
	assert.Empty(t, drain(f.app.Npu))

	f.outcome(event.IpcUnclassified)
	st := f.o.State()
	assert.False(t, st.InferenceArmed)
	assert.Equal(t, uint32(0), st.ConsecutiveNoObjectTicks)
	assert.Equal(t, event.IpcUnclassified, st.LastNotifiedOutcome)
	assert.True(t, f.pir.Enabled())

	npu := drain(f.app.Npu)
	require.Len(t, npu, 1)
	assert.Equal(t, event.IpcNpuStop, event.IpcParam(npu[0].IParam))
}

func TestStayArmedWhilePIRActive(t *testing.T) {
	f := newFixture(t)
	f.motion()
	drain(f.app.Npu)

	for i := 0; i < 15; i++ {
		f.outcome(event.IpcNoObject)
	}
	assert.True(t, f.o.State().InferenceArmed)
	assert.False(t, f.pir.Enabled())
	assert.Empty(t, drain(f.app.Npu))

	f.pir.SetLevel(0)
	f.outcome(event.IpcNoObject)
	assert.False(t, f.o.State().InferenceArmed)
	assert.True(t, f.pir.Enabled())
}

func TestDetectionResetsEmptyCounter(t *testing.T) {
	f := newFixture(t)
	f.motion()
	f.pir.SetLevel(0)

	for i := 0; i < 9; i++ {
		f.outcome(event.IpcNoObject)
	}
	f.outcome(event.IpcTenantDetected)
	assert.Equal(t, uint32(0), f.o.State().ConsecutiveNoObjectTicks)

	f.outcome(event.IpcNoObject)
	assert.True(t, f.o.State().InferenceArmed)
}

func TestSameVisitorNotRenotifiedUntilDisarm(t *testing.T) {
	f := newFixture(t)
	f.pir.SetLevel(0)

	// First visit.
	f.motion()
	f.pir.SetLevel(0)
	f.outcome(event.IpcStrangerDetected)
	f.status(event.StatusSending)
	f.status(event.StatusSentSuccess)
	f.outcome(event.IpcStrangerDetected)
	assert.Len(t, drain(f.app.Messaging), 1)

	// Scene empties, inference disarms and dedup resets.
	for i := 0; i < 10; i++ {
		f.outcome(event.IpcNoObject)
	}
	require.False(t, f.o.State().InferenceArmed)

	// Second visit by the same stranger is notified again.
	f.motion()
	f.outcome(event.IpcStrangerDetected)
	assert.Len(t, drain(f.app.Messaging), 1)
}

func TestInternetStatus(t *testing.T) {
	f := newFixture(t)

	f.send(event.KindInternetStatus, int32(event.InternetConnected))
	assert.True(t, f.o.State().InternetConnected)
	f.send(event.KindInternetStatus, int32(event.InternetDisconnected))
	assert.False(t, f.o.State().InternetConnected)
}

func TestHousekeepingIdle(t *testing.T) {
	f := newFixture(t)
	hk := f.timers.Get("housekeeping")
	tick := func() {
		require.True(t, hk.Fire())
		f.pump()
	}

	// Offline: nothing accumulates.
	tick()
	assert.Equal(t, uint32(0), f.o.State().IdleSeconds)

	f.send(event.KindInternetStatus, int32(event.InternetConnected))
	for i := 0; i < 4; i++ {
		tick()
	}
	assert.Equal(t, uint32(4), f.o.State().IdleSeconds)

	tick()
	assert.Equal(t, uint32(0), f.o.State().IdleSeconds)
	assert.Contains(t, f.observed.activities(), event.ActivityIdle)

	// Motion blocks idle accounting.
	tick()
	f.pir.SetLevel(1)
	tick()
	assert.Equal(t, uint32(1), f.o.State().IdleSeconds)

	// Sending resets it.
	f.status(event.StatusSending)
	assert.Equal(t, uint32(0), f.o.State().IdleSeconds)
}

func TestButtonClick(t *testing.T) {
	f := newFixture(t)
	debounce := f.timers.Get("debounce")

	f.button.Edge(0, 1000)
	f.button.Edge(1, 1100)
	f.pump()
	require.True(t, debounce.Running())

	for i := 0; i < 100 && debounce.Running(); i++ {
		debounce.Fire()
		f.pump()
	}

	var buttons []event.Report
	for _, r := range f.observed.reports {
		if r.Activity == event.ActivityButton {
			buttons = append(buttons, r)
		}
	}
	require.Len(t, buttons, 1)
	assert.Equal(t, event.SysButtonClick, buttons[0].Gesture)
	assert.Equal(t, buttonPin, buttons[0].Pin)
	assert.False(t, debounce.Running())
}

func TestButtonLongPress(t *testing.T) {
	f := newFixture(t)
	debounce := f.timers.Get("debounce")

	f.button.Edge(0, 0)
	f.pump()
	for i := 0; i < 300 && debounce.Running(); i++ {
		debounce.Fire()
		f.pump()
	}

	last := f.observed.reports[len(f.observed.reports)-1]
	assert.Equal(t, event.ActivityButton, last.Activity)
	assert.Equal(t, event.SysButtonLongPress, last.Gesture)
}

func TestGestureOnOtherPinIgnored(t *testing.T) {
	f := newFixture(t)
	f.o.OnMessage(event.New(event.KindSystem, int32(event.SysButtonClick), 3, 0))

	assert.NotContains(t, f.observed.activities(), event.ActivityButton)
}

func TestUnknownInputsDropped(t *testing.T) {
	f := newFixture(t)
	before := f.o.State()

	f.o.OnMessage(event.New(event.KindGpioEdge, 3, 1, 0))
	f.o.OnMessage(event.New(event.KindSystem, int32(event.SysTimerTick), 0, 987654))
	f.o.OnMessage(event.New(event.KindSystem, int32(event.SysVbusChange), 0, 0))
	f.o.OnMessage(event.New(event.KindIpc, int32(event.IpcNpuStart), 0, 0))
	f.o.OnMessage(event.New(event.KindWifiStatus, int32(event.WifiStaGotIP), 0, 0))
	f.o.OnMessage(event.New(event.KindNull, 0, 0, 0))

	assert.Equal(t, before, f.o.State())
	assert.Empty(t, drain(f.app.Npu))
	assert.Empty(t, drain(f.app.Messaging))
}

func TestReportsCarryState(t *testing.T) {
	f := newFixture(t)
	f.motion()
	f.outcome(event.IpcStrangerDetected)

	var notify *event.Report
	for i := range f.observed.reports {
		if f.observed.reports[i].Activity == event.ActivityNotify {
			notify = &f.observed.reports[i]
		}
	}
	require.NotNil(t, notify)
	assert.Equal(t, event.IpcStrangerDetected, notify.Outcome)
	assert.True(t, notify.State.MessageSending)
	assert.True(t, notify.State.InferenceArmed)
	assert.False(t, notify.Time.IsZero())
}

func TestNilButton(t *testing.T) {
	app := actor.NewAppContext()
	pir := gpio.NewFakeInput(pirPin, 0, nil)
	timers := actor.NewManualTimers()
	o := New(DefaultConfig(), app, pir, nil, timers.New, nil, time.Now, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, o.Setup())

	o.OnMessage(event.New(event.KindGpioEdge, buttonPin, 0, 0))
	o.OnMessage(event.New(event.KindSystem, int32(event.SysButtonClick), buttonPin, 0))
	assert.False(t, timers.Get("debounce").Running())
}
