package netclient

import (
	"bytes"
	"errors"
)

// FakeClient is a scripted Client for tests. Nothing happens on its own:
// tests flip Ready and queue inbound chunks.
type FakeClient struct {
	// ConnectError, if set, will be returned by Connect().
	ConnectError error

	// WriteError, if set, will be returned by Write().
	WriteError error

	// Ready controls the return value of Connected.
	Ready bool

	// Host and Port record the last Connect call.
	Host string
	Port int

	// Connects and Stops count calls.
	Connects int
	Stops    int

	// Written collects everything written.
	Written bytes.Buffer

	rx bytes.Buffer
}

// Connect records the target.
func (f *FakeClient) Connect(host string, port int) error {
	f.Connects++
	f.Host, f.Port = host, port
	return f.ConnectError
}

// Connected returns Ready.
func (f *FakeClient) Connected() bool {
	return f.Ready
}

// Deliver queues bytes as if they were received from the peer.
func (f *FakeClient) Deliver(s string) {
	f.rx.WriteString(s)
}

// Available returns the number of queued bytes.
func (f *FakeClient) Available() int {
	return f.rx.Len()
}

// Read drains queued bytes.
func (f *FakeClient) Read(p []byte) (int, error) {
	if f.rx.Len() == 0 {
		return 0, nil
	}
	return f.rx.Read(p)
}

// Write records p.
func (f *FakeClient) Write(p []byte) (int, error) {
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	if !f.Ready {
		return 0, errors.New("fake: not connected")
	}
	return f.Written.Write(p)
}

// Stop resets the connection.
func (f *FakeClient) Stop() error {
	f.Stops++
	f.Ready = false
	f.rx.Reset()
	return nil
}
