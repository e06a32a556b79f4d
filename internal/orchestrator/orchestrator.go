// Package orchestrator is the doorbell's main task. It arms inference on
// motion, disarms it once the scene has been empty long enough, and asks the
// messaging task to notify about each new visitor classification.
package orchestrator

import (
	"log/slog"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/gpio"
	"github.com/sweeney/doorbell-sensor/internal/logic"
)

// Observer receives a Report for every observable change. It is called on
// the main task and must not block.
type Observer interface {
	Observe(r event.Report)
}

// Observers fans a Report out to several observers.
type Observers []Observer

// Observe forwards r to every observer.
func (o Observers) Observe(r event.Report) {
	for _, obs := range o {
		obs.Observe(r)
	}
}

// PIR is the motion sensor line. Level 1 means motion.
type PIR interface {
	Pin() int
	Read() (int, error)
	EnableInterrupt() error
	DisableInterrupt() error
}

// Config holds the controller's thresholds.
type Config struct {
	// NoObjectLimit is how many consecutive empty inference results end an
	// armed period.
	NoObjectLimit uint32
	// IdleLimit is how many idle housekeeping ticks make the device idle.
	IdleLimit uint32
	// Housekeeping is the period of the idle check.
	Housekeeping time.Duration
	// ButtonActiveLevel is the raw level of a pressed button.
	ButtonActiveLevel int
	Debounce          logic.DebounceConfig
}

// DefaultConfig disarms after 5s of empty results at 2 Hz.
func DefaultConfig() Config {
	return Config{
		NoObjectLimit:     10,
		IdleLimit:         5,
		Housekeeping:      time.Second,
		ButtonActiveLevel: 0,
		Debounce:          logic.DefaultDebounceConfig(),
	}
}

// Orchestrator is the main task's handler.
type Orchestrator struct {
	cfg      Config
	app      *actor.AppContext
	pir      PIR
	button   gpio.Input
	observer Observer
	now      func() time.Time
	log      *slog.Logger

	debounceTimer actor.Timer
	housekeeping  actor.Timer
	buttons       *logic.DebounceEngine

	state event.ControllerState
}

// New creates an Orchestrator. button may be nil when no mode button is fitted.
func New(cfg Config, app *actor.AppContext, pir PIR, button gpio.Input, timers actor.TimerFactory, observer Observer, now func() time.Time, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		app:      app,
		pir:      pir,
		button:   button,
		observer: observer,
		now:      now,
		log:      log,
	}
	if o.observer == nil {
		o.observer = Observers(nil)
	}
	o.debounceTimer = timers("debounce", cfg.Debounce.TickInterval, actor.TickTo(app.Main))
	o.housekeeping = timers("housekeeping", cfg.Housekeeping, actor.TickTo(app.Main))
	o.buttons = logic.NewDebounceEngine(cfg.Debounce, o.readButton, o.onGesture, o.debounceTimer)
	return o
}

// State returns a copy of the controller state.
func (o *Orchestrator) State() event.ControllerState {
	return o.state
}

// Setup attaches the button, enables motion detection and starts housekeeping.
func (o *Orchestrator) Setup() error {
	if o.button != nil {
		if _, err := o.buttons.Attach(o.button.Pin(), o.cfg.ButtonActiveLevel); err != nil {
			return err
		}
	}
	if err := o.pir.EnableInterrupt(); err != nil {
		o.log.Warn("enable pir interrupt", "error", err)
	}
	o.housekeeping.Start()
	o.report(event.Report{Activity: event.ActivityStartup})
	o.log.Info("controller ready", "pir_pin", o.pir.Pin())
	return nil
}

// OnMessage dispatches one message.
func (o *Orchestrator) OnMessage(msg event.Message) {
	switch msg.Event {
	case event.KindGpioEdge:
		o.onEdge(int(msg.IParam), int(msg.UParam), msg.LParam)
	case event.KindSystem:
		o.onSystem(msg)
	case event.KindIpc:
		o.onInference(event.IpcParam(msg.IParam), msg.UParam)
	case event.KindMessageStatus:
		o.onDelivery(event.MessageStatus(msg.IParam))
	case event.KindInternetStatus:
		o.onInternet(event.InternetStatus(msg.IParam))
	default:
		o.log.Debug("unsupported event", "msg", msg)
	}
}

func (o *Orchestrator) onEdge(pin, level int, ms uint32) {
	if pin == o.pir.Pin() {
		o.onMotion()
		return
	}
	if o.buttons.OnEdge(pin, level, ms) {
		return
	}
	o.log.Debug("unsupported pin", "pin", pin, "level", level)
}

func (o *Orchestrator) onMotion() {
	if o.state.InferenceArmed {
		return
	}
	if err := o.pir.DisableInterrupt(); err != nil {
		o.log.Warn("disable pir interrupt", "error", err)
	}
	if err := o.app.Npu.Post(event.KindIpc, int32(event.IpcNpuStart), 0, 0); err != nil {
		o.log.Error("cannot start inference", "error", err)
		o.enablePIR()
		return
	}
	o.state.InferenceArmed = true
	o.state.ConsecutiveNoObjectTicks = 0
	o.log.Info("motion detected, inference armed")
	o.report(event.Report{Activity: event.ActivityArmed})
}

func (o *Orchestrator) onSystem(msg event.Message) {
	src := event.SystemSource(msg.IParam)
	switch src {
	case event.SysTimerTick:
		switch msg.LParam {
		case o.debounceTimer.ID():
			o.buttons.OnTick()
		case o.housekeeping.ID():
			o.onHousekeeping()
		default:
			o.log.Debug("unsupported timer", "id", msg.LParam)
		}
	case event.SysButtonClick, event.SysButtonDoubleClick, event.SysButtonLongPress:
		o.onButton(src, int(msg.UParam))
	case event.SysInitDone:
		o.log.Info("init done")
	default:
		o.log.Debug("unsupported system event", "source", src)
	}
}

func (o *Orchestrator) onInference(outcome event.IpcParam, score uint32) {
	switch {
	case outcome.IsEmpty():
		o.state.ConsecutiveNoObjectTicks++
		if o.state.ConsecutiveNoObjectTicks < o.cfg.NoObjectLimit {
			return
		}
		if o.pirActive() {
			return
		}
		o.disarm(outcome)
	case outcome.IsDetection():
		o.state.ConsecutiveNoObjectTicks = 0
		o.report(event.Report{Activity: event.ActivityDetection, Outcome: outcome})
		if o.state.MessageSending || outcome == o.state.LastNotifiedOutcome {
			return
		}
		if err := o.app.Messaging.Post(event.KindSendMessage, int32(outcome), score, 0); err != nil {
			o.log.Error("cannot request notification", "outcome", outcome, "error", err)
			return
		}
		o.state.LastNotifiedOutcome = outcome
		o.state.MessageSending = true
		o.log.Info("notification requested", "outcome", outcome, "score", score)
		o.report(event.Report{Activity: event.ActivityNotify, Outcome: outcome})
	default:
		o.log.Debug("unsupported ipc", "param", outcome)
	}
}

func (o *Orchestrator) disarm(outcome event.IpcParam) {
	if err := o.app.Npu.Post(event.KindIpc, int32(event.IpcNpuStop), 0, 0); err != nil {
		o.log.Error("cannot stop inference", "error", err)
		return
	}
	o.state.InferenceArmed = false
	o.state.ConsecutiveNoObjectTicks = 0
	o.state.LastNotifiedOutcome = outcome
	o.enablePIR()
	o.log.Info("scene empty, inference disarmed")
	o.report(event.Report{Activity: event.ActivityDisarmed, Outcome: outcome})
}

func (o *Orchestrator) onDelivery(status event.MessageStatus) {
	switch status {
	case event.StatusSending:
		o.state.MessageSending = true
		o.state.IdleSeconds = 0
	case event.StatusSentSuccess, event.StatusSentFail:
		o.state.MessageSending = false
	default:
		o.log.Warn("unknown delivery status", "status", status)
		o.state.MessageSending = false
	}
	o.report(event.Report{Activity: event.ActivityDelivery, Status: status})
}

func (o *Orchestrator) onInternet(s event.InternetStatus) {
	o.state.InternetConnected = s == event.InternetConnected
	o.log.Info("internet status", "status", s)
	o.report(event.Report{Activity: event.ActivityInternet})
}

func (o *Orchestrator) onHousekeeping() {
	if !o.state.InternetConnected || o.state.MessageSending || o.pirActive() {
		return
	}
	o.state.IdleSeconds++
	if o.state.IdleSeconds >= o.cfg.IdleLimit {
		o.state.IdleSeconds = 0
		o.log.Debug("idle threshold reached")
		o.report(event.Report{Activity: event.ActivityIdle})
	}
}

func (o *Orchestrator) onButton(src event.SystemSource, pin int) {
	if o.button == nil || pin != o.button.Pin() {
		o.log.Debug("gesture on unsupported pin", "gesture", src, "pin", pin)
		return
	}
	o.log.Info("button", "gesture", src, "pin", pin)
	o.report(event.Report{Activity: event.ActivityButton, Gesture: src, Pin: pin})
}

// onGesture runs inside DebounceEngine.OnTick and re-enters through the queue.
func (o *Orchestrator) onGesture(g logic.Gesture, pin int) {
	src := event.SysButtonClick
	switch g {
	case logic.GestureDoubleClick:
		src = event.SysButtonDoubleClick
	case logic.GestureLongPress:
		src = event.SysButtonLongPress
	}
	if err := o.app.Main.Post(event.KindSystem, int32(src), uint32(pin), 0); err != nil {
		o.log.Warn("dropping gesture", "gesture", g, "error", err)
	}
}

func (o *Orchestrator) readButton(pin int) int {
	level, err := o.button.Read()
	if err != nil {
		o.log.Debug("read button", "pin", pin, "error", err)
		return 1 - o.cfg.ButtonActiveLevel
	}
	return level
}

func (o *Orchestrator) pirActive() bool {
	level, err := o.pir.Read()
	if err != nil {
		o.log.Debug("read pir", "error", err)
		return false
	}
	return level == 1
}

func (o *Orchestrator) enablePIR() {
	if err := o.pir.EnableInterrupt(); err != nil {
		o.log.Warn("enable pir interrupt", "error", err)
	}
}

func (o *Orchestrator) report(r event.Report) {
	r.Time = o.now()
	r.State = o.state
	o.observer.Observe(r)
}
