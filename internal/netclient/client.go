// Package netclient provides the network collaborators of the notifier: a
// non-blocking TCP client and a link monitor that reports address changes.
package netclient

import "errors"

// ErrNotConnected is returned by Write before the connection is established.
var ErrNotConnected = errors.New("netclient: not connected")

// Client is a TCP client that never blocks its caller. Connect starts the
// connection; Connected reports when it is usable. Received bytes are
// buffered until read.
type Client interface {
	Connect(host string, port int) error
	Connected() bool
	Available() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Stop() error
}
