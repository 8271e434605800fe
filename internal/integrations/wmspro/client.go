package wmspro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// commandPath is the hub's single JSON command endpoint.
const commandPath = "/commonCommand"

// protocolVersion is sent with every command.
const protocolVersion = "1.0.0"

// Action types a destination can expose.
const (
	ActionTypePercentage = 0
	ActionTypeStop       = 1
)

// Animation types mark what kind of product a destination drives.
const (
	AnimationAwning        = 1
	AnimationRollerShutter = 2
)

// Action is one drivable capability of a destination.
type Action struct {
	ID          int    `json:"id"`
	ActionType  int    `json:"actionType"`
	Description string `json:"actionDescription"`
	MinValue    int    `json:"minValue"`
	MaxValue    int    `json:"maxValue"`
}

// Destination is one WMS product (awning, roller shutter) paired with
// the hub.
type Destination struct {
	ID            int      `json:"id"`
	AnimationType int      `json:"animationType"`
	Names         []string `json:"names"`
	Actions       []Action `json:"actions"`
}

// Name returns the first non-empty configured name.
func (d Destination) Name() string {
	for _, n := range d.Names {
		if n != "" {
			return n
		}
	}
	return fmt.Sprintf("Destination %d", d.ID)
}

// ActionOfType finds the destination's action of the given type.
func (d Destination) ActionOfType(actionType int) (Action, bool) {
	for _, a := range d.Actions {
		if a.ActionType == actionType {
			return a, true
		}
	}
	return Action{}, false
}

// Room groups destinations as configured in the hub.
type Room struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Destinations []int  `json:"destinations"`
}

// Configuration is the hub's paired-device inventory.
type Configuration struct {
	SerialNumber string        `json:"serialNumber"`
	Destinations []Destination `json:"destinations"`
	Rooms        []Room        `json:"rooms"`
}

// PositionValue is the reported value of a percentage action.
type PositionValue struct {
	Percentage int `json:"percentage"`
}

// ProductData is one action's reported value.
type ProductData struct {
	ActionID int           `json:"actionId"`
	Value    PositionValue `json:"value"`
}

// DestinationStatus is one destination's polled state.
type DestinationStatus struct {
	ID   int `json:"id"`
	Data struct {
		DrivingCause   int           `json:"drivingCause"`
		HeartbeatError bool          `json:"heartbeatError"`
		Blocking       bool          `json:"blocking"`
		ProductData    []ProductData `json:"productData"`
	} `json:"data"`
}

// Position returns the percentage reported for the given action, in
// the hub's scale (0 fully open, 100 fully closed).
func (s DestinationStatus) Position(actionID int) (int, bool) {
	for _, pd := range s.Data.ProductData {
		if pd.ActionID == actionID {
			return pd.Value.Percentage, true
		}
	}
	return 0, false
}

// Client talks to a WebControl pro hub over its local HTTP command
// endpoint. All commands are POSTs to a single path.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a hub client for the given host.
func NewClient(host string, httpClient *http.Client) *Client {
	return &Client{baseURL: "http://" + host, http: httpClient}
}

// Ping checks the hub is reachable and speaking the protocol.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Command string `json:"command"`
	}
	return c.command(ctx, map[string]any{"command": "ping"}, &resp)
}

// Configuration fetches the paired destinations and rooms.
func (c *Client) Configuration(ctx context.Context) (*Configuration, error) {
	var cfg Configuration
	if err := c.command(ctx, map[string]any{"command": "getConfiguration"}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Status polls the current state of the given destinations.
func (c *Client) Status(ctx context.Context, destinationIDs []int) (map[int]DestinationStatus, error) {
	var resp struct {
		Destinations []DestinationStatus `json:"destinations"`
	}
	req := map[string]any{
		"command":      "getStatus",
		"destinations": destinationIDs,
	}
	if err := c.command(ctx, req, &resp); err != nil {
		return nil, err
	}

	statuses := make(map[int]DestinationStatus, len(resp.Destinations))
	for _, s := range resp.Destinations {
		statuses[s.ID] = s
	}
	return statuses, nil
}

// Drive moves a destination's percentage action to the given position
// in the hub's scale.
func (c *Client) Drive(ctx context.Context, destinationID, actionID, percentage int) error {
	return c.action(ctx, destinationID, actionID, map[string]any{"percentage": percentage})
}

// Stop halts a destination's stop action.
func (c *Client) Stop(ctx context.Context, destinationID, actionID int) error {
	return c.action(ctx, destinationID, actionID, map[string]any{})
}

func (c *Client) action(ctx context.Context, destinationID, actionID int, parameters map[string]any) error {
	req := map[string]any{
		"command": "action",
		"destinations": []map[string]any{{
			"destinationId": destinationID,
			"actions": []map[string]any{{
				"actionId":   actionID,
				"parameters": parameters,
			}},
		}},
	}
	var resp struct {
		Command string `json:"command"`
	}
	return c.command(ctx, req, &resp)
}

func (c *Client) command(ctx context.Context, request map[string]any, out any) error {
	request["protocolVersion"] = protocolVersion

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encoding %v command: %w", request["command"], err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %v command: %w", request["command"], err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending %v command: %w", request["command"], err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wmspro %v: unexpected status %d", request["command"], resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %v response: %w", request["command"], err)
	}
	return nil
}
