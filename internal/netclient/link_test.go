package netclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sweeney/doorbell-sensor/internal/event"
)

type scriptedLookup struct {
	states []LinkState
	errs   []error
	i      int
}

func (s *scriptedLookup) lookup(string) (LinkState, error) {
	i := s.i
	if i >= len(s.states) {
		i = len(s.states) - 1
	} else {
		s.i++
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.states[i], err
}

func newMonitor(script *scriptedLookup) (*LinkMonitor, *[]event.WifiEvent) {
	var got []event.WifiEvent
	m := NewLinkMonitor("wlan0", time.Hour, func(e event.WifiEvent) { got = append(got, e) }, discard())
	m.lookup = script.lookup
	return m, &got
}

func TestLinkMonitorTransitions(t *testing.T) {
	script := &scriptedLookup{states: []LinkState{
		{},
		{Up: true},
		{Up: true, IPv4: "192.168.1.50"},
		{Up: true, IPv4: "192.168.1.50"},
		{Up: true},
		{},
	}}
	m, got := newMonitor(script)

	for range script.states {
		m.Poll()
	}

	assert.Equal(t, []event.WifiEvent{
		event.WifiStaConnected,
		event.WifiStaGotIP,
		event.WifiStaLostIP,
		event.WifiStaDisconnected,
	}, *got)
}

func TestLinkMonitorAddressChange(t *testing.T) {
	script := &scriptedLookup{states: []LinkState{
		{Up: true, IPv4: "10.0.0.2"},
		{Up: true, IPv4: "10.0.0.3"},
	}}
	m, got := newMonitor(script)
	m.Poll()
	m.Poll()

	assert.Equal(t, []event.WifiEvent{
		event.WifiStaConnected,
		event.WifiStaGotIP,
		event.WifiStaGotIP,
	}, *got)
	assert.Equal(t, "10.0.0.3", m.State().IPv4)
}

func TestLinkMonitorLookupErrorLosesAddress(t *testing.T) {
	script := &scriptedLookup{
		states: []LinkState{{Up: true, IPv4: "10.0.0.2"}, {}},
		errs:   []error{nil, errors.New("no such interface")},
	}
	m, got := newMonitor(script)
	m.Poll()
	m.Poll()

	assert.Equal(t, []event.WifiEvent{
		event.WifiStaConnected,
		event.WifiStaGotIP,
		event.WifiStaLostIP,
		event.WifiStaDisconnected,
	}, *got)
}

func TestLinkMonitorRunLifecycle(t *testing.T) {
	script := &scriptedLookup{states: []LinkState{{Up: true, IPv4: "10.0.0.2"}}}
	m, got := newMonitor(script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx))

	assert.Equal(t, []event.WifiEvent{
		event.WifiReady,
		event.WifiStaStart,
		event.WifiStaConnected,
		event.WifiStaGotIP,
		event.WifiStaStop,
	}, *got)
}
