// Package inference runs the vision model while the doorbell is armed and
// reports one outcome per detected box to the main task.
package inference

import (
	"log/slog"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/npu"
)

// Config holds the classification thresholds and poll rate.
type Config struct {
	PollInterval   time.Duration
	ScoreThreshold int
	TenantTarget   int
}

// DefaultConfig polls at 2 Hz with a 60% score threshold.
func DefaultConfig() Config {
	return Config{
		PollInterval:   500 * time.Millisecond,
		ScoreThreshold: 60,
		TenantTarget:   0,
	}
}

// Classify maps a box to an outcome.
func Classify(box npu.Box, cfg Config) event.IpcParam {
	if box.Score < cfg.ScoreThreshold {
		return event.IpcUnclassified
	}
	if box.Target == cfg.TenantTarget {
		return event.IpcTenantDetected
	}
	return event.IpcStrangerDetected
}

// Loop is the inference task's handler.
type Loop struct {
	cfg    Config
	engine npu.Engine
	app    *actor.AppContext
	poll   actor.Timer
	log    *slog.Logger

	armed bool
}

// New creates a Loop whose poll timer posts to the npu queue.
func New(cfg Config, engine npu.Engine, app *actor.AppContext, timers actor.TimerFactory, log *slog.Logger) *Loop {
	return &Loop{
		cfg:    cfg,
		engine: engine,
		app:    app,
		poll:   timers("inference-poll", cfg.PollInterval, actor.TickTo(app.Npu)),
		log:    log,
	}
}

// Armed reports whether inference is running.
func (l *Loop) Armed() bool {
	return l.armed
}

// Setup initialises the engine. A failed engine is logged and the loop keeps
// running; every invocation will then report NoObject.
func (l *Loop) Setup() error {
	if err := l.engine.Begin(); err != nil {
		l.log.Warn("vision module init failed", "error", err)
	}
	return nil
}

// OnMessage dispatches one message.
func (l *Loop) OnMessage(msg event.Message) {
	switch msg.Event {
	case event.KindIpc:
		l.onIpc(event.IpcParam(msg.IParam))
	case event.KindSystem:
		l.onSystem(msg)
	default:
		l.log.Debug("unsupported event", "msg", msg)
	}
}

func (l *Loop) onIpc(p event.IpcParam) {
	switch p {
	case event.IpcNpuStart:
		if l.armed {
			return
		}
		l.armed = true
		l.poll.Start()
		l.log.Info("inference started")
	case event.IpcNpuStop:
		l.armed = false
		l.poll.Stop()
		l.log.Info("inference stopped")
	default:
		l.log.Debug("unsupported ipc", "param", p)
	}
}

func (l *Loop) onSystem(msg event.Message) {
	if event.SystemSource(msg.IParam) != event.SysTimerTick {
		l.log.Debug("unsupported system event", "msg", msg)
		return
	}
	if msg.LParam != l.poll.ID() {
		l.log.Debug("unsupported timer", "id", msg.LParam)
		return
	}
	if !l.armed {
		l.poll.Stop()
		return
	}
	l.infer()
}

func (l *Loop) infer() {
	if err := l.engine.Invoke(); err != nil {
		l.log.Debug("invoke failed", "error", err)
		l.report(event.IpcNoObject, 0)
		return
	}

	boxes := l.engine.Boxes()
	if len(boxes) == 0 {
		l.report(event.IpcNoObject, 0)
		return
	}

	for _, box := range boxes {
		outcome := Classify(box, l.cfg)
		l.log.Debug("box", "target", box.Target, "score", box.Score,
			"x", box.X, "y", box.Y, "w", box.W, "h", box.H, "outcome", outcome)
		l.report(outcome, uint32(box.Score))
	}
	for _, c := range l.engine.Classes() {
		l.log.Debug("class", "target", c.Target, "score", c.Score)
	}
	for _, p := range l.engine.Points() {
		l.log.Debug("point", "target", p.Target, "score", p.Score, "x", p.X, "y", p.Y)
	}
	for _, k := range l.engine.Keypoints() {
		l.log.Debug("keypoint", "target", k.Box.Target, "score", k.Box.Score, "points", len(k.Points))
	}
}

func (l *Loop) report(outcome event.IpcParam, score uint32) {
	if err := l.app.Main.Post(event.KindIpc, int32(outcome), score, 0); err != nil {
		l.log.Warn("dropping inference outcome", "outcome", outcome, "error", err)
	}
}
