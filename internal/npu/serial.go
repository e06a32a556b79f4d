package npu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/goburrow/serial"
)

// SerialConfig describes the UART link to the module.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration
}

// DefaultSerialConfig returns the settings used by Grove Vision AI modules.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Port:     "/dev/ttyACM0",
		BaudRate: 921600,
		Timeout:  time.Second,
	}
}

// readTimeout is the per-read serial timeout; command deadlines are
// enforced by the client on top of it.
const readTimeout = 100 * time.Millisecond

// OpenSerial opens the UART and returns a Client on it. Close the client to
// release the port.
func OpenSerial(cfg SerialConfig, log *slog.Logger) (*Client, error) {
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	return NewClient(port, cfg.Timeout, log), nil
}
