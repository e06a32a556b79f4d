package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/config"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/gpio"
	"github.com/sweeney/doorbell-sensor/internal/inference"
	"github.com/sweeney/doorbell-sensor/internal/logging"
	"github.com/sweeney/doorbell-sensor/internal/metrics"
	"github.com/sweeney/doorbell-sensor/internal/mqtt"
	"github.com/sweeney/doorbell-sensor/internal/netclient"
	"github.com/sweeney/doorbell-sensor/internal/notifier"
	"github.com/sweeney/doorbell-sensor/internal/npu"
	"github.com/sweeney/doorbell-sensor/internal/orchestrator"
	"github.com/sweeney/doorbell-sensor/internal/status"
	"github.com/sweeney/doorbell-sensor/internal/web"
)

// statusRefresh is how often connection state is copied into the tracker.
const statusRefresh = time.Second

func runDaemon(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app := actor.NewAppContext()

	// Initialize GPIO
	chip, err := gpio.OpenChip(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	onEdge := edgeToQueue(app.Main)
	pir, err := chip.RequestEdgeInput(gpio.LineConfig{
		Pin:   cfg.GPIO.PIRPin,
		Edges: gpio.RisingEdges,
		Bias:  gpio.PullDown,
	}, onEdge)
	if err != nil {
		return fmt.Errorf("init pir: %w", err)
	}
	defer pir.Close()

	button, err := chip.RequestEdgeInput(gpio.LineConfig{
		Pin:   cfg.GPIO.ButtonPin,
		Edges: gpio.BothEdges,
		Bias:  buttonBias(cfg.GPIO.ButtonActiveLevel),
	}, onEdge)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	// Initialize AI module
	engine, err := npu.OpenSerial(cfg.Serial(), logging.Module(log, "npu"))
	if err != nil {
		return fmt.Errorf("init npu: %w", err)
	}
	defer engine.Close()

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logging.Module(log, "mqtt"))
	defer publisher.Close()

	m, err := metrics.New()
	if err != nil {
		return err
	}
	if err := m.WatchQueues(app); err != nil {
		return err
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(cfg.WiFi.SSID); net != nil {
		tracker.SetNetwork(net)
	}

	observers := orchestrator.Observers{
		tracker,
		m,
		mqtt.ReportObserver{Publisher: publisher, Log: logging.Module(log, "mqtt")},
	}

	controller := orchestrator.New(cfg.Orchestrator(), app, pir, button, actor.NewPeriodicTimer,
		observers, time.Now, logging.Module(log, "controller"))
	loop := inference.New(cfg.Inference(), engine, app, actor.NewPeriodicTimer,
		logging.Module(log, "inference"))
	tcp := netclient.NewTCPClient(netclient.DefaultReceiveBuffer, time.Duration(cfg.Notify.ConnectTimeoutS)*time.Second,
		logging.Module(log, "tcp"))
	ntf := notifier.New(cfg.Notifier(), tcp, app, actor.NewPeriodicTimer, logging.Module(log, "notifier"))
	link := netclient.NewLinkMonitor(cfg.WiFi.Interface, cfg.LinkPoll(), linkToQueue(app.Messaging, log),
		logging.Module(log, "link"))

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", "error", err)
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", "addr", cfg.HTTP)
	}

	log.Info("started",
		"pir_pin", cfg.GPIO.PIRPin,
		"button_pin", cfg.GPIO.ButtonPin,
		"npu", cfg.NPU.Port,
		"notify_host", cfg.Notify.Host,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}
	refresh := time.NewTicker(statusRefresh)
	defer refresh.Stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range []*actor.Task{
		actor.NewTask(app.Main, controller, log),
		actor.NewTask(app.Messaging, ntf, log),
		actor.NewTask(app.Npu, loop, log),
	} {
		task := task
		g.Go(func() error { return task.Run(gctx) })
	}
	g.Go(func() error { return link.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		lc := loopConfig{
			publisher:  publisher,
			mqttStatus: publisher,
			tracker:    tracker,
			metrics:    m,
			ssid:       cfg.WiFi.SSID,
			now:        time.Now,
			log:        log,
		}
		return runLoop(gctx, lc, heartbeat, refresh.C, sigCh)
	})

	err = g.Wait()
	if stop := tcp.Stop(); stop != nil {
		log.Debug("close notification connection", "error", stop)
	}
	return err
}

// loopConfig holds runLoop's collaborators. Any of tracker, metrics and
// mqttStatus may be nil.
type loopConfig struct {
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	ssid       string
	now        func() time.Time
	log        *slog.Logger
}

// runLoop publishes heartbeats and keeps the tracker's connection state
// current until a signal arrives or ctx ends. It publishes SHUTDOWN either way.
func runLoop(ctx context.Context, lc loopConfig, heartbeat, refresh <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			lc.log.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			publishShutdown(lc, signalName)
			return nil

		case <-ctx.Done():
			lc.log.Info("shutting down", "reason", ctx.Err())
			publishShutdown(lc, "STOPPED")
			return nil

		case <-heartbeat:
			hbEvent := mqtt.SystemEvent{
				Timestamp: lc.now(),
				Event:     "HEARTBEAT",
			}
			if lc.tracker != nil {
				refreshConnection(lc)
				// Refresh network info for heartbeat
				if net := readNetworkInfo(lc.ssid); net != nil {
					lc.tracker.SetNetwork(net)
				}
				snap := lc.tracker.Snapshot()
				lc.log.Info("heartbeat",
					"uptime", snap.Uptime().Truncate(time.Second),
					"strangers", snap.Counts.Strangers,
					"tenants", snap.Counts.Tenants,
					"sent", snap.Counts.NotificationsSent,
					"failed", snap.Counts.NotificationsFail)
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := lc.publisher.PublishSystem(hbEvent); err != nil {
				lc.log.Warn("heartbeat publish error", "error", err)
			}

		case <-refresh:
			refreshConnection(lc)
		}
	}
}

func publishShutdown(lc loopConfig, reason string) {
	evt := mqtt.SystemEvent{
		Timestamp: lc.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if lc.tracker != nil {
		refreshConnection(lc)
		snap := lc.tracker.Snapshot()
		evt.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
	}
	if err := lc.publisher.PublishSystem(evt); err != nil {
		lc.log.Warn("failed to publish shutdown event", "error", err)
	} else {
		lc.log.Info("published shutdown event")
	}
}

func refreshConnection(lc loopConfig) {
	if lc.mqttStatus == nil {
		return
	}
	connected := lc.mqttStatus.IsConnected()
	if lc.tracker != nil {
		lc.tracker.SetMQTTConnected(connected)
	}
	if lc.metrics != nil {
		lc.metrics.SetMQTTConnected(connected)
	}
}

// edgeToQueue adapts GPIO edge callbacks to non-blocking posts on q.
func edgeToQueue(q *actor.Queue) gpio.EdgeHandler {
	return func(pin, level int, ms uint32) {
		q.PostFromISR(event.KindGpioEdge, int32(pin), uint32(level), ms)
	}
}

// linkToQueue forwards link events to the messaging task.
func linkToQueue(q *actor.Queue, log *slog.Logger) netclient.EmitFunc {
	return func(evt event.WifiEvent) {
		if err := q.Post(event.KindWifiStatus, int32(evt), 0, 0); err != nil {
			log.Warn("dropping link event", "event", evt, "error", err)
		}
	}
}

func buttonBias(activeLevel int) gpio.Bias {
	if activeLevel == 0 {
		return gpio.PullUp
	}
	return gpio.PullDown
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:         int64(cfg.NPU.PollMs),
		ScoreThreshold: cfg.NPU.ScoreThreshold,
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		NPUPort:        cfg.NPU.Port,
		NotifyHost:     cfg.Notify.Host,
		Broker:         cfg.MQTT.Broker,
		HTTPPort:       cfg.HTTP,
		WSBroker:       resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker),
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo reads pi-helper's network report. ssid fills in the SSID
// when pi-helper does not name one.
func readNetworkInfo(ssid string) *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	info := &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
	if info.SSID == "" {
		info.SSID = ssid
	}
	return info
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
