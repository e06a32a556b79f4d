package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/doorbell-sensor/internal/actor"
	"github.com/sweeney/doorbell-sensor/internal/event"
	"github.com/sweeney/doorbell-sensor/internal/gpio"
	"github.com/sweeney/doorbell-sensor/internal/logging"
	"github.com/sweeney/doorbell-sensor/internal/netclient"
	"github.com/sweeney/doorbell-sensor/internal/notifier"
)

func newPrintStateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the PIR and button levels and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chip, err := gpio.OpenChip(opts.cfg.GPIO.Chip)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()

			ignore := func(int, int, uint32) {}
			pir, err := chip.RequestEdgeInput(gpio.LineConfig{Pin: opts.cfg.GPIO.PIRPin, Bias: gpio.PullDown}, ignore)
			if err != nil {
				return fmt.Errorf("init pir: %w", err)
			}
			defer pir.Close()
			button, err := chip.RequestEdgeInput(gpio.LineConfig{
				Pin:  opts.cfg.GPIO.ButtonPin,
				Bias: buttonBias(opts.cfg.GPIO.ButtonActiveLevel),
			}, ignore)
			if err != nil {
				return fmt.Errorf("init button: %w", err)
			}
			defer button.Close()

			line, err := readState(pir, button, opts.cfg.GPIO.ButtonActiveLevel)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}

// readState formats the current PIR and button levels.
func readState(pir, button gpio.Input, activeLevel int) (string, error) {
	p, err := pir.Read()
	if err != nil {
		return "", fmt.Errorf("read pir: %w", err)
	}
	b, err := button.Read()
	if err != nil {
		return "", fmt.Errorf("read button: %w", err)
	}
	pirState := "IDLE"
	if p == 1 {
		pirState = "MOTION"
	}
	buttonState := "RELEASED"
	if b == activeLevel {
		buttonState = "PRESSED"
	}
	return fmt.Sprintf("PIR: %s, BUTTON: %s", pirState, buttonState), nil
}

func newNotifyCommand(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:       "notify stranger|tenant",
		Short:     "Send one notification through the configured endpoint",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"stranger", "tenant"},
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := parseOutcome(args[0])
			if err != nil {
				return err
			}
			log := logging.Module(opts.log, "notify")
			ncfg := opts.cfg.Notifier()
			client := netclient.NewTCPClient(netclient.DefaultReceiveBuffer,
				time.Duration(opts.cfg.Notify.ConnectTimeoutS)*time.Second, log)
			defer client.Stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := sendOnce(ctx, ncfg, client, actor.NewPeriodicTimer, outcome, log)
			if err != nil {
				return err
			}
			return reportDelivery(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Give up after this long")
	return cmd
}

func parseOutcome(s string) (event.IpcParam, error) {
	switch strings.ToLower(s) {
	case "stranger":
		return event.IpcStrangerDetected, nil
	case "tenant":
		return event.IpcTenantDetected, nil
	}
	return event.IpcNull, fmt.Errorf("unknown outcome %q (want stranger or tenant)", s)
}

func reportDelivery(w io.Writer, st event.MessageStatus) error {
	if st != event.StatusSentSuccess {
		return fmt.Errorf("notification %s", st)
	}
	fmt.Fprintln(w, "notification sent")
	return nil
}

// sendOnce runs the messaging task until one notification completes. The
// link is assumed up; there is no link monitor in this mode.
func sendOnce(ctx context.Context, cfg notifier.Config, client netclient.Client, timers actor.TimerFactory, outcome event.IpcParam, log *slog.Logger) (event.MessageStatus, error) {
	app := actor.NewAppContext()
	n := notifier.New(cfg, client, app, timers, log)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- actor.NewTask(app.Messaging, n, log).Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := app.Messaging.Post(event.KindWifiStatus, int32(event.WifiStaGotIP), 0, 0); err != nil {
		return event.StatusUnknown, err
	}
	if err := app.Messaging.Post(event.KindSendMessage, int32(outcome), 0, 0); err != nil {
		return event.StatusUnknown, err
	}

	for {
		select {
		case <-ctx.Done():
			return event.StatusUnknown, fmt.Errorf("waiting for delivery: %w", ctx.Err())
		case msg := <-app.Main.Receive():
			if msg.Event != event.KindMessageStatus {
				continue
			}
			st := event.MessageStatus(msg.IParam)
			log.Debug("delivery status", "status", st)
			if st == event.StatusSentSuccess || st == event.StatusSentFail {
				return st, nil
			}
		}
	}
}
