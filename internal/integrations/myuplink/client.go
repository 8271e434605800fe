package myuplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hearth-home/hearth/internal/configentry"
)

// DefaultBaseURL is the myUplink cloud endpoint. Overridable for tests.
const DefaultBaseURL = "https://api.myuplink.com"

// tokenPath is appended to the base URL for the client-credentials grant.
const tokenPath = "/oauth/token"

// System is one installation on the account.
type System struct {
	SystemID string   `json:"systemId"`
	Name     string   `json:"name"`
	Devices  []Device `json:"devices"`
}

// Device is one heat pump or controller within a system.
type Device struct {
	ID              string `json:"id"`
	ConnectionState string `json:"connectionState"`
	Product         struct {
		SerialNumber string `json:"serialNumber"`
		Name         string `json:"name"`
	} `json:"product"`
}

// EnumValue is one allowed value of an enumerated data point.
type EnumValue struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Point is a single device data point.
type Point struct {
	ParameterID   string      `json:"parameterId"`
	ParameterName string      `json:"parameterName"`
	ParameterUnit string      `json:"parameterUnit"`
	Writable      bool        `json:"writable"`
	Value         float64     `json:"value"`
	StrVal        string      `json:"strVal"`
	EnumValues    []EnumValue `json:"enumValues"`
}

// Client talks to the myUplink v2 API with an OAuth2 client-credentials
// token source.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a myUplink client. baseURL may be empty for the
// production endpoint. The underlying transport of base is wrapped with
// the token source so every request carries a bearer token.
func NewClient(ctx context.Context, baseURL, clientID, clientSecret string, base *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + tokenPath,
		Scopes:       []string{"READSYSTEM", "WRITESYSTEM"},
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return &Client{baseURL: baseURL, http: cfg.Client(ctx)}
}

// Systems fetches the account's installations.
func (c *Client) Systems(ctx context.Context) ([]System, error) {
	var payload struct {
		Systems []System `json:"systems"`
	}
	if err := c.get(ctx, "/v2/systems/me", &payload); err != nil {
		return nil, err
	}
	return payload.Systems, nil
}

// Points fetches all data points of a device.
func (c *Client) Points(ctx context.Context, deviceID string) ([]Point, error) {
	var points []Point
	if err := c.get(ctx, "/v2/devices/"+deviceID+"/points", &points); err != nil {
		return nil, err
	}
	return points, nil
}

// SetPoint writes one data point value on a device.
func (c *Client) SetPoint(ctx context.Context, deviceID, parameterID, value string) error {
	body, err := json.Marshal(map[string]string{parameterID: value})
	if err != nil {
		return fmt.Errorf("encoding point write: %w", err)
	}

	url := c.baseURL + "/v2/devices/" + deviceID + "/points"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building point write: %w", err)
	}
	req.Header.Set("Content-Type", "application/json-patch+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "point write"); err != nil {
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func checkStatus(status int, what string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s rejected with status %d", configentry.ErrAuthFailed, what, status)
	case status < 200 || status > 299:
		return fmt.Errorf("myuplink %s: unexpected status %d", what, status)
	}
	return nil
}

// classifyTransportError surfaces rejected client credentials (the
// token endpoint refusing the grant) as an auth failure rather than a
// transient transport error.
func classifyTransportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token request rejected with status %d",
				configentry.ErrAuthFailed, retrieveErr.Response.StatusCode)
		}
	}
	return fmt.Errorf("myuplink request: %w", err)
}
