package netclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

// LinkState is what the monitor knows about an interface.
type LinkState struct {
	Up   bool
	IPv4 string
}

// LookupFunc inspects the named interface.
type LookupFunc func(iface string) (LinkState, error)

// EmitFunc receives link events. It runs on the monitor goroutine and must
// only enqueue.
type EmitFunc func(evt event.WifiEvent)

// LinkMonitor watches a network interface and reports association and
// address changes. Association itself is handled by the operating system.
type LinkMonitor struct {
	iface    string
	interval time.Duration
	lookup   LookupFunc
	emit     EmitFunc
	log      *slog.Logger

	state LinkState
}

// NewLinkMonitor creates a monitor for iface. An empty iface watches the
// first non-loopback interface that has an address.
func NewLinkMonitor(iface string, interval time.Duration, emit EmitFunc, log *slog.Logger) *LinkMonitor {
	return &LinkMonitor{
		iface:    iface,
		interval: interval,
		lookup:   lookupInterface,
		emit:     emit,
		log:      log,
	}
}

// State returns the last observed state. Only safe from the Run goroutine
// or after Run returns.
func (m *LinkMonitor) State() LinkState {
	return m.state
}

// Run polls until ctx is cancelled.
func (m *LinkMonitor) Run(ctx context.Context) error {
	m.emit(event.WifiReady)
	m.emit(event.WifiStaStart)
	m.Poll()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.emit(event.WifiStaStop)
			return nil
		case <-ticker.C:
			m.Poll()
		}
	}
}

// Poll inspects the interface once and emits events for any change.
func (m *LinkMonitor) Poll() {
	next, err := m.lookup(m.iface)
	if err != nil {
		m.log.Debug("link lookup failed", "iface", m.iface, "error", err)
		next = LinkState{}
	}
	prev := m.state
	m.state = next

	if next.Up && !prev.Up {
		m.emit(event.WifiStaConnected)
	}
	if next.IPv4 != "" && next.IPv4 != prev.IPv4 {
		m.log.Info("address acquired", "iface", m.iface, "ip", next.IPv4)
		m.emit(event.WifiStaGotIP)
	}
	if next.IPv4 == "" && prev.IPv4 != "" {
		m.emit(event.WifiStaLostIP)
	}
	if !next.Up && prev.Up {
		m.emit(event.WifiStaDisconnected)
	}
}

func lookupInterface(name string) (LinkState, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return LinkState{}, fmt.Errorf("interface %s: %w", name, err)
		}
		return inspect(*ifi)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return LinkState{}, fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		st, err := inspect(ifi)
		if err == nil && st.IPv4 != "" {
			return st, nil
		}
	}
	return LinkState{}, nil
}

func inspect(ifi net.Interface) (LinkState, error) {
	st := LinkState{Up: ifi.Flags&net.FlagUp != 0}
	addrs, err := ifi.Addrs()
	if err != nil {
		return st, fmt.Errorf("addresses of %s: %w", ifi.Name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			st.IPv4 = ip4.String()
			break
		}
	}
	return st, nil
}
