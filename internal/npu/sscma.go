package npu

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goburrow/serial"
	"github.com/tidwall/gjson"
)

var (
	// ErrTimeout is returned when the module does not answer in time.
	ErrTimeout = errors.New("npu: reply timeout")
	// ErrNoReply is returned when the link closes before a reply arrives.
	ErrNoReply = errors.New("npu: link closed")
)

// Reply types in the module's JSON framing.
const (
	replyResponse = 0
	replyEvent    = 1
)

const (
	cmdID     = "ID?"
	cmdInvoke = "INVOKE"
	// One invocation, no differential filtering, results only.
	invokeArgs = "=1,0,1"
)

// Client drives an SSCMA compatible module with AT commands.
type Client struct {
	rw      io.ReadWriter
	r       *bufio.Reader
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger

	pending []byte
	id      string
	results Results
}

// NewClient creates a Client over an open link. timeout bounds each command.
func NewClient(rw io.ReadWriter, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		rw:      rw,
		r:       bufio.NewReader(rw),
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

// Begin checks that the module answers and records its id.
func (c *Client) Begin() error {
	reply, err := c.command(cmdID, "")
	if err != nil {
		return fmt.Errorf("query module id: %w", err)
	}
	c.id = reply.Get("data").String()
	c.log.Info("vision module ready", "id", c.id)
	return nil
}

// ID returns the module id reported by Begin.
func (c *Client) ID() string {
	return c.id
}

// Invoke runs the model once and stores the results.
func (c *Client) Invoke() error {
	c.results = Results{}

	if _, err := c.command(cmdInvoke, invokeArgs); err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	evt, err := c.await(cmdInvoke, replyEvent, c.now().Add(c.timeout))
	if err != nil {
		return fmt.Errorf("invoke result: %w", err)
	}
	c.results = ParseResults(evt.Get("data"))
	return nil
}

// Boxes returns the boxes of the last invocation.
func (c *Client) Boxes() []Box { return c.results.Boxes }

// Classes returns the classes of the last invocation.
func (c *Client) Classes() []Class { return c.results.Classes }

// Points returns the points of the last invocation.
func (c *Client) Points() []Point { return c.results.Points }

// Keypoints returns the keypoints of the last invocation.
func (c *Client) Keypoints() []Keypoint { return c.results.Keypoints }

// Close closes the link if it supports closing.
func (c *Client) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// command writes AT+<name><args> and waits for the matching response.
func (c *Client) command(name, args string) (gjson.Result, error) {
	if _, err := fmt.Fprintf(c.rw, "AT+%s%s\r\n", name, args); err != nil {
		return gjson.Result{}, fmt.Errorf("write command: %w", err)
	}
	return c.await(name, replyResponse, c.now().Add(c.timeout))
}

// await reads replies until one with the given name and type arrives.
// Unrelated replies are skipped.
func (c *Client) await(name string, typ int64, deadline time.Time) (gjson.Result, error) {
	for {
		line, err := c.readLine(deadline)
		if err != nil {
			return gjson.Result{}, err
		}
		reply, ok := decodeReply(line)
		if !ok {
			c.log.Debug("skipping non-json line", "line", string(line))
			continue
		}
		if reply.Get("name").String() != name || reply.Get("type").Int() != typ {
			continue
		}
		if code := reply.Get("code").Int(); code != 0 {
			return gjson.Result{}, fmt.Errorf("module returned code %d for %s", code, name)
		}
		return reply, nil
	}
}

func (c *Client) readLine(deadline time.Time) ([]byte, error) {
	for {
		chunk, err := c.r.ReadBytes('\n')
		c.pending = append(c.pending, chunk...)
		if err == nil {
			line := c.pending
			c.pending = nil
			return line, nil
		}
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrNoReply
		case errors.Is(err, serial.ErrTimeout):
			if c.now().After(deadline) {
				c.pending = nil
				return nil, ErrTimeout
			}
		default:
			return nil, fmt.Errorf("read: %w", err)
		}
	}
}

func decodeReply(line []byte) (gjson.Result, bool) {
	start := bytes.IndexByte(line, '{')
	if start < 0 {
		return gjson.Result{}, false
	}
	body := bytes.TrimSpace(line[start:])
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(body), true
}

// ParseResults decodes the data object of an INVOKE event. Malformed
// entries are skipped.
func ParseResults(data gjson.Result) Results {
	var res Results
	for _, b := range data.Get("boxes").Array() {
		if box, ok := parseBox(b); ok {
			res.Boxes = append(res.Boxes, box)
		}
	}
	for _, cl := range data.Get("classes").Array() {
		v := cl.Array()
		if len(v) < 2 {
			continue
		}
		res.Classes = append(res.Classes, Class{Score: int(v[0].Int()), Target: int(v[1].Int())})
	}
	for _, p := range data.Get("points").Array() {
		if pt, ok := parsePoint(p); ok {
			res.Points = append(res.Points, pt)
		}
	}
	for _, k := range data.Get("keypoints").Array() {
		v := k.Array()
		if len(v) < 2 {
			continue
		}
		box, ok := parseBox(v[0])
		if !ok {
			continue
		}
		kp := Keypoint{Box: box}
		for _, p := range v[1].Array() {
			if pt, ok := parsePoint(p); ok {
				kp.Points = append(kp.Points, pt)
			}
		}
		res.Keypoints = append(res.Keypoints, kp)
	}
	return res
}

func parseBox(r gjson.Result) (Box, bool) {
	v := r.Array()
	if len(v) < 6 {
		return Box{}, false
	}
	return Box{
		X:      int(v[0].Int()),
		Y:      int(v[1].Int()),
		W:      int(v[2].Int()),
		H:      int(v[3].Int()),
		Score:  int(v[4].Int()),
		Target: int(v[5].Int()),
	}, true
}

func parsePoint(r gjson.Result) (Point, bool) {
	v := r.Array()
	if len(v) < 4 {
		return Point{}, false
	}
	return Point{
		X:      int(v[0].Int()),
		Y:      int(v[1].Int()),
		Score:  int(v[2].Int()),
		Target: int(v[3].Int()),
	}, true
}
