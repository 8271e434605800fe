package starline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hearth-home/hearth/internal/configentry"
)

// DefaultBaseURL is the StarLine cloud endpoint. Overridable for tests.
const DefaultBaseURL = "https://developer.starline.ru"

// Credentials authenticate against the StarLine developer API.
type Credentials struct {
	AppID     string
	AppSecret string
	Username  string
	Password  string
}

// Session is an authenticated slnet session.
type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"slnet_token"`
}

// Balance is a vehicle SIM balance.
type Balance struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// CarState carries the vehicle's contact and alarm states.
type CarState struct {
	Armed     bool `json:"arm"`
	Doors     bool `json:"door"`
	Trunk     bool `json:"trunk"`
	Hood      bool `json:"hood"`
	Handbrake bool `json:"hbrake"`
	Running   bool `json:"run"`
	Ignition  bool `json:"ign"`
	Webasto   bool `json:"webasto"`
}

// Device is one vehicle on the account.
type Device struct {
	DeviceID    string   `json:"device_id"`
	Alias       string   `json:"alias"`
	Battery     float64  `json:"battery"`
	InteriorTmp float64  `json:"ctemp"`
	EngineTmp   float64  `json:"etemp"`
	GSMLevel    int      `json:"gsm_lvl"`
	Balance     Balance  `json:"balance"`
	State       CarState `json:"car_state"`
}

// Client talks to the StarLine cloud.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials

	session *Session
}

// NewClient creates a StarLine client. baseURL may be empty for the
// production endpoint.
func NewClient(baseURL string, httpClient *http.Client, creds Credentials) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, http: httpClient, creds: creds}
}

// Login authenticates and stores the slnet session.
// Returns configentry.ErrAuthFailed for rejected credentials.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     c.creds.AppID,
		"app_secret": c.creds.AppSecret,
		"login":      c.creds.Username,
		"password":   c.creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/apiV3/auth.slnet", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: login rejected with status %d", configentry.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("starline login: unexpected status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	c.session = &session
	return &session, nil
}

// Devices fetches the account's vehicles. Re-authenticates once when
// the session has expired; a second 401 is an auth failure.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices, err := c.fetchDevices(ctx)
	if err == nil {
		return devices, nil
	}
	if !isUnauthorized(err) {
		return nil, err
	}

	// Session expired; one fresh login, then give up.
	if _, err := c.Login(ctx); err != nil {
		return nil, err
	}
	devices, err = c.fetchDevices(ctx)
	if isUnauthorized(err) {
		return nil, fmt.Errorf("%w: session rejected after re-login", configentry.ErrAuthFailed)
	}
	return devices, err
}

type unauthorizedError struct{ status int }

func (e *unauthorizedError) Error() string {
	return fmt.Sprintf("starline: unauthorized (status %d)", e.status)
}

func isUnauthorized(err error) bool {
	var ue *unauthorizedError
	return errors.As(err, &ue)
}

func (c *Client) fetchDevices(ctx context.Context) ([]Device, error) {
	if c.session == nil {
		return nil, &unauthorizedError{status: 0}
	}

	url := fmt.Sprintf("%s/apiV3/user/%s/data", c.baseURL, c.session.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building devices request: %w", err)
	}
	req.Header.Set("Authorization", "SLNet "+c.session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching devices: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &unauthorizedError{status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("starline devices: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Devices []Device `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding devices response: %w", err)
	}
	return payload.Devices, nil
}

// SetState sends a vehicle command: "ign" (engine) or "webasto"
// (heater), on or off.
func (c *Client) SetState(ctx context.Context, deviceID, kind string, on bool) error {
	if c.session == nil {
		return &unauthorizedError{status: 0}
	}

	value := 0
	if on {
		value = 1
	}
	body, err := json.Marshal(map[string]any{"type": kind, "value": value})
	if err != nil {
		return fmt.Errorf("encoding set request: %w", err)
	}

	url := fmt.Sprintf("%s/apiV3/device/%s/set", c.baseURL, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building set request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "SLNet "+c.session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending set command: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: set command rejected with status %d", configentry.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("starline set: unexpected status %d", resp.StatusCode)
	}
	return nil
}
