package starline

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

func testCredentials() Credentials {
	return Credentials{
		AppID:     "app-1",
		AppSecret: "secret",
		Username:  "driver",
		Password:  "hunter2",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, &http.Client{Timeout: 5 * time.Second}, testCredentials())
	return client, srv
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apiV3/auth.slnet" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %q", r.Method)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding login body: %v", err)
		}
		if body["login"] != "driver" || body["app_id"] != "app-1" {
			t.Errorf("unexpected login body %v", body)
		}

		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"user_id":     "42",
			"slnet_token": "tok-abc",
		})
	}))

	session, err := client.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.UserID != "42" || session.Token != "tok-abc" {
		t.Errorf("unexpected session %+v", session)
	}
}

func TestLoginRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Login(context.Background())
	if !errors.Is(err, configentry.ErrAuthFailed) {
		t.Fatalf("Login error = %v, want ErrAuthFailed", err)
	}
}

func TestDevices(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apiV3/auth.slnet":
			json.NewEncoder(w).Encode(map[string]string{"user_id": "42", "slnet_token": "tok-abc"}) //nolint:errcheck
		case "/apiV3/user/42/data":
			if got := r.Header.Get("Authorization"); got != "SLNet tok-abc" {
				t.Errorf("Authorization = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"devices": []map[string]any{{
					"device_id": "dev-1",
					"alias":     "Family Car",
					"battery":   12.4,
					"ctemp":     21.5,
					"etemp":     84.0,
					"gsm_lvl":   18,
					"balance":   map[string]any{"value": 250.0, "currency": "RUB"},
					"car_state": map[string]any{"arm": true, "ign": false, "run": false},
				}},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	if _, err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	devices, err := client.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}

	dev := devices[0]
	if dev.DeviceID != "dev-1" || dev.Alias != "Family Car" {
		t.Errorf("unexpected device %+v", dev)
	}
	if dev.Battery != 12.4 || dev.GSMLevel != 18 {
		t.Errorf("unexpected telemetry %+v", dev)
	}
	if !dev.State.Armed || dev.State.Running {
		t.Errorf("unexpected car state %+v", dev.State)
	}
}

func TestDevicesReloginOnExpiredSession(t *testing.T) {
	logins := 0
	fetches := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apiV3/auth.slnet":
			logins++
			json.NewEncoder(w).Encode(map[string]string{"user_id": "42", "slnet_token": "tok-fresh"}) //nolint:errcheck
		case "/apiV3/user/42/data":
			fetches++
			// First fetch uses the stale session; only the fresh
			// token succeeds.
			if r.Header.Get("Authorization") != "SLNet tok-fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"devices": []map[string]any{}}) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	client.session = &Session{UserID: "42", Token: "tok-stale"}

	if _, err := client.Devices(context.Background()); err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if logins != 1 {
		t.Errorf("got %d logins, want 1", logins)
	}
	if fetches != 2 {
		t.Errorf("got %d fetches, want 2", fetches)
	}
}

func TestDevicesAuthFailedAfterRelogin(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/apiV3/auth.slnet":
			json.NewEncoder(w).Encode(map[string]string{"user_id": "42", "slnet_token": "tok-fresh"}) //nolint:errcheck
		case "/apiV3/user/42/data":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	client.session = &Session{UserID: "42", Token: "tok-stale"}

	_, err := client.Devices(context.Background())
	if !errors.Is(err, configentry.ErrAuthFailed) {
		t.Fatalf("Devices error = %v, want ErrAuthFailed", err)
	}
}

func TestSetState(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apiV3/device/dev-1/set" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "SLNet tok-abc" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding set body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	client.session = &Session{UserID: "42", Token: "tok-abc"}

	if err := client.SetState(context.Background(), "dev-1", "webasto", true); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if got["type"] != "webasto" || got["value"] != float64(1) {
		t.Errorf("unexpected set body %v", got)
	}
}
