package airtouch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultPort is the AirTouch console listener port.
const DefaultPort = 8899

// requestTimeout bounds one request/response exchange when the caller's
// context carries no deadline.
const requestTimeout = 10 * time.Second

// maxLineSize bounds console responses; state for a fully loaded
// console fits comfortably.
const maxLineSize = 256 * 1024

// Client errors.
var (
	ErrNotConnected = errors.New("airtouch: not connected")
	ErrConsole      = errors.New("airtouch: console rejected command")
)

// ConsoleInfo identifies an AirTouch console.
type ConsoleInfo struct {
	ConsoleID string `json:"console_id"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

// ACStatus is the reported state of one air conditioner.
type ACStatus struct {
	Number      int     `json:"number"`
	Name        string  `json:"name"`
	Power       string  `json:"power"` // "on" / "off"
	Mode        string  `json:"mode"`  // console mode, see mapping.go
	FanSpeed    string  `json:"fan_speed"`
	Setpoint    float64 `json:"setpoint"`
	Temperature float64 `json:"temperature"`
	MinSetpoint float64 `json:"min_setpoint"`
	MaxSetpoint float64 `json:"max_setpoint"`
}

// ZoneStatus is the reported state of one zone.
type ZoneStatus struct {
	Number      int      `json:"number"`
	Name        string   `json:"name"`
	Power       string   `json:"power"`
	Percentage  int      `json:"percentage"` // open damper percentage
	HasSensor   bool     `json:"has_sensor"`
	Temperature *float64 `json:"temperature,omitempty"`
	Setpoint    float64  `json:"setpoint"`
	BatteryLow  bool     `json:"battery_low"`
}

// State is a full console snapshot.
type State struct {
	ACs   []ACStatus   `json:"acs"`
	Zones []ZoneStatus `json:"zones"`
}

// request/response envelopes of the console's line-delimited JSON protocol.
type request struct {
	Type       string   `json:"type"`
	AC         *int     `json:"ac,omitempty"`
	Zone       *int     `json:"zone,omitempty"`
	Power      string   `json:"power,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	FanSpeed   string   `json:"fan_speed,omitempty"`
	Setpoint   *float64 `json:"setpoint,omitempty"`
	Percentage *int     `json:"percentage,omitempty"`
}

type response struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ConsoleInfo
	State
}

// lineResult carries one decoded console reply from the read loop to
// the request waiting on it.
type lineResult struct {
	resp *response
	err  error
}

// Client speaks the console's line-delimited JSON protocol over TCP.
// One request is in flight at a time and the console answers in order,
// but it also pushes unsolicited "state_push" frames whenever a remote
// or another client changes something. A read loop owns the inbound
// stream: pushes go to the OnPush callback, everything else is handed
// to the pending request.
type Client struct {
	addr string

	mu   sync.Mutex // serialises requests, guards conn
	conn net.Conn

	rxMu    sync.Mutex // guards pending and onPush against the read loop
	pending chan lineResult
	onPush  func(State)
}

// NewClient creates a client for the console at host:port.
func NewClient(host string, port int) *Client {
	if port <= 0 {
		port = DefaultPort
	}
	return &Client{addr: net.JoinHostPort(host, fmt.Sprintf("%d", port))}
}

// SetOnPush registers the callback for unsolicited state frames. Safe
// to call while connected; pushes arriving before a callback is set
// are dropped.
func (c *Client) SetOnPush(fn func(State)) {
	c.rxMu.Lock()
	c.onPush = fn
	c.rxMu.Unlock()
}

// Connect dials the console and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to console %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck // Replacing a stale connection
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Close terminates the connection. The read loop exits on the closed
// socket and fails any request still waiting.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// readLoop owns the inbound half of one connection: push frames are
// dispatched to onPush, replies handed to the pending request. It runs
// until the connection drops or is closed.
func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, maxLineSize)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.deliver(lineResult{err: err})
			return
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.deliver(lineResult{err: fmt.Errorf("decoding console response: %w", err)})
			continue
		}

		if resp.Type == "state_push" {
			c.rxMu.Lock()
			fn := c.onPush
			c.rxMu.Unlock()
			if fn != nil {
				fn(resp.State)
			}
			continue
		}

		c.deliver(lineResult{resp: &resp})
	}
}

// deliver hands one reply to the pending request, or drops it when
// nothing is waiting.
func (c *Client) deliver(res lineResult) {
	c.rxMu.Lock()
	ch := c.pending
	c.pending = nil
	c.rxMu.Unlock()

	if ch != nil {
		ch <- res // buffered; never blocks
	}
}

// Info queries the console identity. Used by the config flow to derive
// the entry's unique id.
func (c *Client) Info(ctx context.Context) (*ConsoleInfo, error) {
	resp, err := c.roundTrip(ctx, request{Type: "get_info"})
	if err != nil {
		return nil, err
	}
	info := resp.ConsoleInfo
	return &info, nil
}

// FetchState queries the full AC and zone snapshot.
func (c *Client) FetchState(ctx context.Context) (State, error) {
	resp, err := c.roundTrip(ctx, request{Type: "get_state"})
	if err != nil {
		return State{}, err
	}
	return resp.State, nil
}

// SetAC changes an air conditioner. Zero-value fields are left as-is
// by the console; only supplied fields change.
func (c *Client) SetAC(ctx context.Context, ac int, power, mode, fanSpeed string, setpoint *float64) error {
	_, err := c.roundTrip(ctx, request{
		Type:     "set_ac",
		AC:       &ac,
		Power:    power,
		Mode:     mode,
		FanSpeed: fanSpeed,
		Setpoint: setpoint,
	})
	return err
}

// SetZone changes a zone: power, damper percentage and temperature
// setpoint (for zones with a sensor). Nil and empty fields are left
// unchanged by the console.
func (c *Client) SetZone(ctx context.Context, zone int, power string, percentage *int, setpoint *float64) error {
	_, err := c.roundTrip(ctx, request{
		Type:       "set_zone",
		Zone:       &zone,
		Power:      power,
		Percentage: percentage,
		Setpoint:   setpoint,
	})
	return err
}

// roundTrip writes one request line and waits for the read loop to
// hand back the matching reply. On timeout or cancellation the
// connection is dropped: the stream can no longer pair requests with
// replies once one goes unanswered.
func (c *Client) roundTrip(ctx context.Context, req request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(requestTimeout)
	}

	ch := make(chan lineResult, 1)
	c.rxMu.Lock()
	c.pending = ch
	c.rxMu.Unlock()
	defer func() {
		c.rxMu.Lock()
		if c.pending == ch {
			c.pending = nil
		}
		c.rxMu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding console request: %w", err)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting console deadline: %w", err)
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("writing to console: %w", err)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("reading console response: %w", res.err)
		}
		if res.resp.Type == "ack" && !res.resp.OK {
			return nil, fmt.Errorf("%w: %s", ErrConsole, res.resp.Error)
		}
		return res.resp, nil

	case <-timer.C:
		c.conn.Close() //nolint:errcheck // Tearing down an unpaired stream
		c.conn = nil
		return nil, fmt.Errorf("console at %s: response timed out", c.addr)

	case <-ctx.Done():
		c.conn.Close() //nolint:errcheck // Tearing down an unpaired stream
		c.conn = nil
		return nil, ctx.Err()
	}
}
