// Package config loads daemon settings from defaults, a YAML file,
// DOORBELL_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/doorbell-sensor/internal/gpio"
	"github.com/sweeney/doorbell-sensor/internal/inference"
	"github.com/sweeney/doorbell-sensor/internal/logic"
	"github.com/sweeney/doorbell-sensor/internal/notifier"
	"github.com/sweeney/doorbell-sensor/internal/npu"
	"github.com/sweeney/doorbell-sensor/internal/orchestrator"
)

// EnvPrefix prefixes every environment override, e.g. DOORBELL_NOTIFY_HOST.
const EnvPrefix = "DOORBELL"

// Config is the full daemon configuration.
type Config struct {
	GPIO      GPIOConfig     `mapstructure:"gpio"`
	Debounce  DebounceConfig `mapstructure:"debounce"`
	NPU       NPUConfig      `mapstructure:"npu"`
	Alert     AlertConfig    `mapstructure:"alert"`
	Notify    NotifyConfig   `mapstructure:"notify"`
	WiFi      WiFiConfig     `mapstructure:"wifi"`
	MQTT      MQTTConfig     `mapstructure:"mqtt"`
	Heartbeat time.Duration  `mapstructure:"heartbeat"`
	HTTP      string         `mapstructure:"http"`
	Log       LogConfig      `mapstructure:"log"`
}

// GPIOConfig selects the chip and lines.
type GPIOConfig struct {
	Chip              string `mapstructure:"chip"`
	PIRPin            int    `mapstructure:"pir_pin"`
	ButtonPin         int    `mapstructure:"button_pin"`
	ButtonActiveLevel int    `mapstructure:"button_active_level"`
}

// DebounceConfig holds button timing in milliseconds.
type DebounceConfig struct {
	TickMs        int `mapstructure:"tick_ms"`
	MinPressMs    int `mapstructure:"min_press_ms"`
	DoubleClickMs int `mapstructure:"double_click_ms"`
	LongPressMs   int `mapstructure:"long_press_ms"`
}

// NPUConfig describes the AI module link and scoring.
type NPUConfig struct {
	Port           string `mapstructure:"port"`
	Baud           int    `mapstructure:"baud"`
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	PollMs         int    `mapstructure:"poll_ms"`
	ScoreThreshold int    `mapstructure:"score_threshold"`
	TenantTarget   int    `mapstructure:"tenant_target"`
}

// AlertConfig holds the controller's hysteresis windows.
type AlertConfig struct {
	NoObjectSeconds int `mapstructure:"no_object_seconds"`
	IdleSeconds     int `mapstructure:"idle_seconds"`
}

// NotifyConfig describes the HTTP notification endpoint.
type NotifyConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Path            string `mapstructure:"path"`
	ConnectTimeoutS int    `mapstructure:"connect_timeout_s"`
	TenantText      string `mapstructure:"tenant_text"`
	StrangerText    string `mapstructure:"stranger_text"`
}

// WiFiConfig selects the monitored interface.
type WiFiConfig struct {
	SSID      string `mapstructure:"ssid"`
	Interface string `mapstructure:"interface"`
	PollS     int    `mapstructure:"poll_s"`
}

// MQTTConfig describes the telemetry broker.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	// WSBroker is the websocket URL for the live status page.
	// "=broker" derives it from Broker, "off" disables it.
	WSBroker string `mapstructure:"ws_broker"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	deb := logic.DefaultDebounceConfig()
	ser := npu.DefaultSerialConfig()
	inf := inference.DefaultConfig()
	ntf := notifier.DefaultConfig()

	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.pir_pin", gpio.DefaultPinPIR)
	v.SetDefault("gpio.button_pin", gpio.DefaultPinButton)
	v.SetDefault("gpio.button_active_level", 0)

	v.SetDefault("debounce.tick_ms", deb.TickInterval.Milliseconds())
	v.SetDefault("debounce.min_press_ms", deb.MinPress.Milliseconds())
	v.SetDefault("debounce.double_click_ms", deb.DoubleClickWindow.Milliseconds())
	v.SetDefault("debounce.long_press_ms", deb.LongPress.Milliseconds())

	v.SetDefault("npu.port", ser.Port)
	v.SetDefault("npu.baud", ser.BaudRate)
	v.SetDefault("npu.timeout_ms", ser.Timeout.Milliseconds())
	v.SetDefault("npu.poll_ms", inf.PollInterval.Milliseconds())
	v.SetDefault("npu.score_threshold", inf.ScoreThreshold)
	v.SetDefault("npu.tenant_target", inf.TenantTarget)

	v.SetDefault("alert.no_object_seconds", 5)
	v.SetDefault("alert.idle_seconds", 5)

	v.SetDefault("notify.host", "")
	v.SetDefault("notify.port", ntf.Port)
	v.SetDefault("notify.path", "/")
	v.SetDefault("notify.connect_timeout_s", int(ntf.TimeoutTicks))
	v.SetDefault("notify.tenant_text", ntf.TenantText)
	v.SetDefault("notify.stranger_text", ntf.StrangerText)

	v.SetDefault("wifi.ssid", "")
	v.SetDefault("wifi.interface", "wlan0")
	v.SetDefault("wifi.poll_s", 2)

	v.SetDefault("mqtt.broker", "tcp://192.168.1.200:1883")
	v.SetDefault("mqtt.client_id", "doorbell-sensor")
	v.SetDefault("mqtt.ws_broker", "=broker")

	v.SetDefault("heartbeat", 15*time.Minute)
	v.SetDefault("http", ":80")
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment overrides wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.GPIO.PIRPin >= 0, "gpio.pir_pin must be >= 0")
	check(c.GPIO.ButtonPin >= 0, "gpio.button_pin must be >= 0")
	check(c.GPIO.PIRPin != c.GPIO.ButtonPin, "gpio.pir_pin and gpio.button_pin must differ")
	check(c.GPIO.ButtonActiveLevel == 0 || c.GPIO.ButtonActiveLevel == 1, "gpio.button_active_level must be 0 or 1")

	check(c.Debounce.TickMs > 0, "debounce.tick_ms must be > 0")
	check(c.Debounce.MinPressMs >= c.Debounce.TickMs, "debounce.min_press_ms must be >= debounce.tick_ms")
	check(c.Debounce.DoubleClickMs > c.Debounce.MinPressMs, "debounce.double_click_ms must be > debounce.min_press_ms")
	check(c.Debounce.LongPressMs > c.Debounce.DoubleClickMs, "debounce.long_press_ms must be > debounce.double_click_ms")

	check(c.NPU.Port != "", "npu.port is required")
	check(c.NPU.Baud > 0, "npu.baud must be > 0")
	check(c.NPU.TimeoutMs > 0, "npu.timeout_ms must be > 0")
	check(c.NPU.PollMs > 0, "npu.poll_ms must be > 0")
	check(c.NPU.ScoreThreshold >= 0 && c.NPU.ScoreThreshold <= 100, "npu.score_threshold must be within 0..100")

	check(c.Alert.NoObjectSeconds > 0, "alert.no_object_seconds must be > 0")
	check(c.Alert.IdleSeconds > 0, "alert.idle_seconds must be > 0")

	check(c.Notify.Port > 0 && c.Notify.Port < 65536, "notify.port must be within 1..65535")
	check(c.Notify.ConnectTimeoutS > 0, "notify.connect_timeout_s must be > 0")
	check(strings.HasPrefix(c.Notify.Path, "/"), "notify.path must start with /")
	check(len(c.Notify.Path) < notifier.PathCapacity, "notify.path must be shorter than %d bytes", notifier.PathCapacity)
	for _, text := range []struct{ key, value string }{
		{"notify.tenant_text", c.Notify.TenantText},
		{"notify.stranger_text", c.Notify.StrangerText},
	} {
		check(len(c.Notify.Path+notifier.Encode(text.value)) < notifier.PathCapacity,
			"notify.path plus encoded %s must be shorter than %d bytes", text.key, notifier.PathCapacity)
	}

	check(c.WiFi.PollS > 0, "wifi.poll_s must be > 0")
	check(c.Heartbeat >= 0, "heartbeat must be >= 0")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DebounceSettings converts the millisecond settings.
func (c *Config) DebounceSettings() logic.DebounceConfig {
	return logic.DebounceConfig{
		TickInterval:      ms(c.Debounce.TickMs),
		MinPress:          ms(c.Debounce.MinPressMs),
		DoubleClickWindow: ms(c.Debounce.DoubleClickMs),
		LongPress:         ms(c.Debounce.LongPressMs),
	}
}

// Orchestrator returns the controller settings. The empty-result limit is
// the disarm window expressed in inference polls.
func (c *Config) Orchestrator() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	polls := c.Alert.NoObjectSeconds * 1000 / c.NPU.PollMs
	if polls < 1 {
		polls = 1
	}
	oc.NoObjectLimit = uint32(polls)
	oc.IdleLimit = uint32(c.Alert.IdleSeconds / int(oc.Housekeeping/time.Second))
	oc.ButtonActiveLevel = c.GPIO.ButtonActiveLevel
	oc.Debounce = c.DebounceSettings()
	return oc
}

// Inference returns the inference loop settings.
func (c *Config) Inference() inference.Config {
	return inference.Config{
		PollInterval:   ms(c.NPU.PollMs),
		ScoreThreshold: c.NPU.ScoreThreshold,
		TenantTarget:   c.NPU.TenantTarget,
	}
}

// Serial returns the AI module link settings.
func (c *Config) Serial() npu.SerialConfig {
	return npu.SerialConfig{
		Port:     c.NPU.Port,
		BaudRate: c.NPU.Baud,
		Timeout:  ms(c.NPU.TimeoutMs),
	}
}

// Notifier returns the delivery settings.
func (c *Config) Notifier() notifier.Config {
	nc := notifier.DefaultConfig()
	nc.Host = c.Notify.Host
	nc.Port = c.Notify.Port
	nc.Path = c.Notify.Path
	nc.TimeoutTicks = uint32(c.Notify.ConnectTimeoutS)
	nc.TenantText = c.Notify.TenantText
	nc.StrangerText = c.Notify.StrangerText
	return nc
}

// LinkPoll is the interval between network link checks.
func (c *Config) LinkPoll() time.Duration {
	return time.Duration(c.WiFi.PollS) * time.Second
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
