package airtouch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeConsole is a minimal line-delimited JSON console for tests.
// With pushBeforeReply set it emits an unsolicited state_push frame
// ahead of every reply, the way a real console interleaves remote
// changes with command acknowledgements.
type fakeConsole struct {
	listener        net.Listener
	state           State
	pushBeforeReply bool
}

func newFakeConsole(t *testing.T, pushBeforeReply bool) *fakeConsole {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting fake console: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	temp := 22.5
	fc := &fakeConsole{
		listener:        listener,
		pushBeforeReply: pushBeforeReply,
		state: State{
			ACs: []ACStatus{{
				Number: 0, Name: "Main AC", Power: "on", Mode: acModeCool,
				FanSpeed: fanSpeedLow, Setpoint: 24, Temperature: 25.5,
				MinSetpoint: 16, MaxSetpoint: 30,
			}},
			Zones: []ZoneStatus{
				{Number: 0, Name: "Living", Power: "on", Percentage: 80, HasSensor: true, Temperature: &temp, Setpoint: 23},
				{Number: 1, Name: "Garage", Power: "off", Percentage: 0, HasSensor: false, BatteryLow: true},
			},
		},
	}
	go fc.serve()
	return fc
}

func (fc *fakeConsole) addr() (host string, port int) {
	h, p, _ := net.SplitHostPort(fc.listener.Addr().String()) //nolint:errcheck // Listener addr is well formed
	n, _ := strconv.Atoi(p)                                   //nolint:errcheck // Listener addr is well formed
	return h, n
}

func (fc *fakeConsole) serve() {
	for {
		conn, err := fc.listener.Accept()
		if err != nil {
			return
		}
		go fc.handle(conn)
	}
}

func (fc *fakeConsole) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}

		var resp response
		switch req.Type {
		case "get_info":
			resp = response{Type: "info", OK: true,
				ConsoleInfo: ConsoleInfo{ConsoleID: "AT5-1234", Name: "Home AirTouch", Version: "1.2.3"}}
		case "get_state":
			resp = response{Type: "state", OK: true, State: fc.state}
		case "set_ac":
			if req.Mode != "" && req.Mode != acModeCool && req.Mode != acModeHeat &&
				req.Mode != acModeAuto && req.Mode != acModeDry && req.Mode != acModeFan {
				resp = response{Type: "ack", OK: false, Error: "bad mode"}
				break
			}
			if req.Setpoint != nil {
				fc.state.ACs[0].Setpoint = *req.Setpoint
			}
			resp = response{Type: "ack", OK: true}
		case "set_zone":
			if req.Percentage != nil {
				fc.state.Zones[*req.Zone].Percentage = *req.Percentage
			}
			resp = response{Type: "ack", OK: true}
		default:
			resp = response{Type: "ack", OK: false, Error: "unknown command"}
		}

		if fc.pushBeforeReply {
			push, _ := json.Marshal(response{Type: "state_push", OK: true, State: fc.state}) //nolint:errcheck // Test fixture
			if _, err := conn.Write(append(push, '\n')); err != nil {
				return
			}
		}

		payload, _ := json.Marshal(resp) //nolint:errcheck // Test fixture
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			return
		}
	}
}

func connectedClient(t *testing.T) *Client {
	t.Helper()
	fc := newFakeConsole(t, false)
	host, port := fc.addr()

	client := NewClient(host, port)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_Info(t *testing.T) {
	client := connectedClient(t)

	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.ConsoleID != "AT5-1234" {
		t.Errorf("ConsoleID = %q, want AT5-1234", info.ConsoleID)
	}
	if info.Name != "Home AirTouch" {
		t.Errorf("Name = %q, want Home AirTouch", info.Name)
	}
}

func TestClient_FetchState(t *testing.T) {
	client := connectedClient(t)

	state, err := client.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}

	if len(state.ACs) != 1 || len(state.Zones) != 2 {
		t.Fatalf("state = %d ACs %d zones, want 1/2", len(state.ACs), len(state.Zones))
	}
	ac := state.ACs[0]
	if ac.Mode != acModeCool || ac.FanSpeed != fanSpeedLow {
		t.Errorf("AC mode/fan = %q/%q, want COOL/LOW", ac.Mode, ac.FanSpeed)
	}
	if !state.Zones[0].HasSensor || state.Zones[0].Temperature == nil {
		t.Error("zone 0 should report a temperature sensor")
	}
	if state.Zones[1].HasSensor {
		t.Error("zone 1 should not report a temperature sensor")
	}
	if !state.Zones[1].BatteryLow {
		t.Error("zone 1 should report a low battery")
	}
}

func TestClient_SetACRejection(t *testing.T) {
	client := connectedClient(t)

	err := client.SetAC(context.Background(), 0, "on", "MYSTERY", "", nil)
	if !errors.Is(err, ErrConsole) {
		t.Errorf("SetAC() with bad mode error = %v, want ErrConsole", err)
	}
	if err != nil && !strings.Contains(err.Error(), "bad mode") {
		t.Errorf("SetAC() error %q should carry the console message", err)
	}
}

func TestClient_SetZonePercentage(t *testing.T) {
	client := connectedClient(t)
	ctx := context.Background()

	half := 50
	if err := client.SetZone(ctx, 1, "on", &half, nil); err != nil {
		t.Fatalf("SetZone() error = %v", err)
	}

	state, err := client.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState() error = %v", err)
	}
	if state.Zones[1].Percentage != 50 {
		t.Errorf("zone percentage = %d, want 50", state.Zones[1].Percentage)
	}
}

func TestClient_PushState(t *testing.T) {
	fc := newFakeConsole(t, true)
	host, port := fc.addr()

	client := NewClient(host, port)
	pushed := make(chan State, 4)
	client.SetOnPush(func(s State) { pushed <- s })
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// The reply must still pair with its request even with an
	// unsolicited frame in front of it.
	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.ConsoleID != "AT5-1234" {
		t.Errorf("ConsoleID = %q, want AT5-1234", info.ConsoleID)
	}

	select {
	case s := <-pushed:
		if len(s.ACs) != 1 || len(s.Zones) != 2 {
			t.Errorf("pushed state = %d ACs %d zones, want 1/2", len(s.ACs), len(s.Zones))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push frame never reached the callback")
	}
}

func TestClient_NotConnected(t *testing.T) {
	client := NewClient("127.0.0.1", 1)

	if _, err := client.Info(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Info() without Connect error = %v, want ErrNotConnected", err)
	}
}
