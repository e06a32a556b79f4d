package netclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
)

// DefaultReceiveBuffer is the receive buffer size of a TCPClient.
const DefaultReceiveBuffer = 4096

// TCPClient is a Client over net.Conn. Dialing and receiving run on
// background goroutines; inbound bytes land in a ring buffer.
type TCPClient struct {
	dialer       net.Dialer
	writeTimeout time.Duration
	rx           *ringbuffer.RingBuffer
	log          *slog.Logger

	mu        sync.Mutex
	conn      net.Conn
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connected atomic.Bool
	dropped   atomic.Uint64
}

// NewTCPClient creates a client with a receive buffer of rxSize bytes.
func NewTCPClient(rxSize int, dialTimeout time.Duration, log *slog.Logger) *TCPClient {
	return &TCPClient{
		dialer:       net.Dialer{Timeout: dialTimeout},
		writeTimeout: dialTimeout,
		rx:           ringbuffer.New(rxSize),
		log:          log,
	}
}

// Connect starts dialing host:port. Any previous connection is closed.
func (c *TCPClient) Connect(host string, port int) error {
	if host == "" {
		return errors.New("netclient: empty host")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("netclient: invalid port %d", port)
	}
	c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			c.log.Debug("dial failed", "addr", addr, "error", err)
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.connected.Store(true)
		c.mu.Unlock()

		c.receive(conn)
	}()
	return nil
}

func (c *TCPClient) receive(conn net.Conn) {
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if w, werr := c.rx.Write(buf[:n]); werr != nil {
				c.dropped.Add(uint64(n - w))
				if errors.Is(werr, ringbuffer.ErrIsFull) {
					c.log.Debug("receive buffer full", "dropped", n-w)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Connected reports whether the dial has completed. It stays true after the
// peer closes so buffered bytes can still be read.
func (c *TCPClient) Connected() bool {
	return c.connected.Load()
}

// Available returns the number of buffered bytes.
func (c *TCPClient) Available() int {
	return c.rx.Length()
}

// Read drains buffered bytes into p. It returns 0 when nothing is buffered.
func (c *TCPClient) Read(p []byte) (int, error) {
	if c.rx.Length() == 0 {
		return 0, nil
	}
	return c.rx.Read(p)
}

// Write sends p on the connection.
func (c *TCPClient) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return 0, fmt.Errorf("set write deadline: %w", err)
	}
	return conn.Write(p)
}

// Dropped returns the number of received bytes lost to a full buffer.
func (c *TCPClient) Dropped() uint64 {
	return c.dropped.Load()
}

// Stop closes the connection, cancels a pending dial and clears the buffer.
func (c *TCPClient) Stop() error {
	c.mu.Lock()
	cancel, conn := c.cancel, c.conn
	c.cancel, c.conn = nil, nil
	c.connected.Store(false)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	c.rx.Reset()
	return err
}
