package myuplink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
)

// newTestClient wires a client against a fake cloud. The handler only
// covers API paths; the token endpoint is served here.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	var tokens int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			tokens++
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parsing token form: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"access_token": "tok-1",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(context.Background(), srv.URL, "client-1", "secret", &http.Client{Timeout: 5 * time.Second})
}

func TestSystems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/systems/me" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"systems": []map[string]any{{
				"systemId": "sys-1",
				"name":     "Holiday House",
				"devices": []map[string]any{{
					"id":              "dev-1",
					"connectionState": "Connected",
					"product":         map[string]any{"serialNumber": "0401", "name": "F730"},
				}},
			}},
		})
	})

	systems, err := client.Systems(context.Background())
	if err != nil {
		t.Fatalf("Systems: %v", err)
	}
	if len(systems) != 1 || len(systems[0].Devices) != 1 {
		t.Fatalf("unexpected systems %+v", systems)
	}
	if systems[0].SystemID != "sys-1" || systems[0].Devices[0].Product.Name != "F730" {
		t.Errorf("unexpected system %+v", systems[0])
	}
}

func TestSystemsAuthFailed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Systems(context.Background())
	if !errors.Is(err, configentry.ErrAuthFailed) {
		t.Fatalf("Systems error = %v, want ErrAuthFailed", err)
	}
}

func TestRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"}) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	client := NewClient(context.Background(), srv.URL, "client-1", "wrong", &http.Client{Timeout: 5 * time.Second})
	_, err := client.Systems(context.Background())
	if !errors.Is(err, configentry.ErrAuthFailed) {
		t.Fatalf("Systems error = %v, want ErrAuthFailed", err)
	}
}

func TestPoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/devices/dev-1/points" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{
				"parameterId":   "40004",
				"parameterName": "Outdoor temperature",
				"parameterUnit": "°C",
				"writable":      false,
				"value":         -3.5,
			},
			{
				"parameterId":   "50004",
				"parameterName": "Temporary lux",
				"writable":      true,
				"value":         1,
				"enumValues": []map[string]string{
					{"value": "0", "text": "off"},
					{"value": "1", "text": "on"},
				},
			},
		})
	})

	points, err := client.Points(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].ParameterUnit != "°C" || points[0].Value != -3.5 {
		t.Errorf("unexpected point %+v", points[0])
	}
	if !points[1].Writable || len(points[1].EnumValues) != 2 {
		t.Errorf("unexpected point %+v", points[1])
	}
}

func TestSetPoint(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %q", r.Method)
		}
		if r.URL.Path != "/v2/devices/dev-1/points" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding write body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.SetPoint(context.Background(), "dev-1", "50004", "1"); err != nil {
		t.Fatalf("SetPoint: %v", err)
	}
	if got["50004"] != "1" {
		t.Errorf("unexpected write body %v", got)
	}
}
