// Command doorbell runs the doorbell controller: PIR-triggered person
// detection, button gestures and HTTP notifications, with MQTT telemetry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/doorbell-sensor/internal/config"
	"github.com/sweeney/doorbell-sensor/internal/logging"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// options carries what every command needs after flags are parsed.
type options struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &options{v: config.New()}

	root := &cobra.Command{
		Use:           "doorbell",
		Short:         "Smart doorbell controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), opts.cfg, opts.log)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file")
	flags.String("broker", "", "MQTT broker address")
	flags.String("http", "", "HTTP status address (empty to disable)")
	flags.Duration("heartbeat", 0, "Heartbeat interval (0 to disable)")
	flags.Int("pin-pir", 0, "BCM pin number for the PIR sensor")
	flags.Int("pin-button", 0, "BCM pin number for the mode button")
	flags.String("npu-port", "", "Serial port of the AI module")
	flags.String("notify-host", "", "Notification server host")
	flags.String("ws-broker", "", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")

	for key, flag := range map[string]string{
		"mqtt.broker":     "broker",
		"http":            "http",
		"heartbeat":       "heartbeat",
		"gpio.pir_pin":    "pin-pir",
		"gpio.button_pin": "pin-button",
		"npu.port":        "npu-port",
		"notify.host":     "notify-host",
		"mqtt.ws_broker":  "ws-broker",
		"log.level":       "log-level",
	} {
		// Only flags that were set override file and environment values.
		cobra.CheckErr(opts.v.BindPFlag(key, flags.Lookup(flag)))
	}

	root.AddCommand(newPrintStateCommand(opts), newNotifyCommand(opts))
	return root
}

func (o *options) load() error {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = logging.New(os.Stderr, level)
	return nil
}
