package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
)

// twoStepHandler walks through host then credentials, rejecting empty
// hosts, and finishes with an entry.
type twoStepHandler struct{}

func (twoStepHandler) Begin(_ context.Context) Result {
	return ShowForm(Form{
		StepID: "user",
		Fields: []Field{{Name: "host", Label: "Host", Kind: KindString, Required: true}},
	})
}

func (h twoStepHandler) Handle(_ context.Context, stepID string, input map[string]any) Result {
	switch stepID {
	case "user":
		host, _ := input["host"].(string)
		if host == "" {
			return ShowFormWithErrors(Form{
				StepID: "user",
				Fields: []Field{{Name: "host", Label: "Host", Kind: KindString, Required: true}},
			}, map[string]string{"host": "required"})
		}
		return ShowForm(Form{
			StepID: "credentials",
			Fields: []Field{{Name: "password", Label: "Password", Kind: KindPassword, Required: true}},
		})
	case "credentials":
		return CreateEntry("Test Device", "device-1", configentry.Data{"host": "10.0.0.2"})
	default:
		return Abort("unknown_step")
	}
}

func newTestManager() *Manager {
	return NewManager(logging.Default())
}

func TestManager_StartUnknownDomain(t *testing.T) {
	m := newTestManager()

	if _, _, err := m.Start(context.Background(), "nope"); !errors.Is(err, ErrUnknownHandler) {
		t.Errorf("Start() error = %v, want ErrUnknownHandler", err)
	}
}

func TestManager_FullFlow(t *testing.T) {
	m := newTestManager()
	m.Register("testdev", twoStepHandler{})
	ctx := context.Background()

	f, result, err := m.Start(ctx, "testdev")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if result.Type != ResultShowForm {
		t.Fatalf("Start() result = %q, want form", result.Type)
	}
	if result.Form.StepID != "user" {
		t.Errorf("first step = %q, want user", result.Form.StepID)
	}
	if f.ID == "" {
		t.Fatal("Start() should assign a flow ID")
	}

	// Empty host is rejected with a field error; flow stays on "user".
	result, err = m.Continue(ctx, f.ID, map[string]any{"host": ""})
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if result.Type != ResultShowForm || result.Errors["host"] != "required" {
		t.Fatalf("Continue() with empty host = %+v, want form with host error", result)
	}

	result, err = m.Continue(ctx, f.ID, map[string]any{"host": "10.0.0.2"})
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if result.Type != ResultShowForm || result.Form.StepID != "credentials" {
		t.Fatalf("Continue() = %+v, want credentials form", result)
	}

	result, err = m.Continue(ctx, f.ID, map[string]any{"password": "secret"})
	if err != nil {
		t.Fatalf("Continue() error = %v", err)
	}
	if result.Type != ResultCreateEntry {
		t.Fatalf("Continue() final result = %q, want create_entry", result.Type)
	}
	if result.Title != "Test Device" || result.UniqueID != "device-1" {
		t.Errorf("entry = %q/%q, want Test Device/device-1", result.Title, result.UniqueID)
	}

	// Terminal results remove the flow.
	if _, err := m.Continue(ctx, f.ID, nil); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("Continue() after finish error = %v, want ErrUnknownFlow", err)
	}
}

func TestManager_Abort(t *testing.T) {
	m := newTestManager()
	m.Register("testdev", twoStepHandler{})
	ctx := context.Background()

	f, _, err := m.Start(ctx, "testdev")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.Abort(f.ID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if _, err := m.Get(f.ID); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("Get() after abort error = %v, want ErrUnknownFlow", err)
	}
}

func TestManager_Expiry(t *testing.T) {
	m := newTestManager()
	m.Register("testdev", twoStepHandler{})
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	f, _, err := m.Start(ctx, "testdev")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Just inside the TTL the flow survives.
	current = current.Add(flowTTL - time.Second)
	if _, err := m.Get(f.ID); err != nil {
		t.Fatalf("Get() inside TTL error = %v", err)
	}

	// Past the TTL it is pruned.
	current = current.Add(2 * time.Second)
	if _, err := m.Continue(ctx, f.ID, map[string]any{"host": "10.0.0.2"}); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("Continue() past TTL error = %v, want ErrUnknownFlow", err)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

// abortOnBegin aborts immediately, e.g. single-instance integrations
// that are already configured.
type abortOnBegin struct{}

func (abortOnBegin) Begin(_ context.Context) Result { return Abort("single_instance_allowed") }
func (abortOnBegin) Handle(_ context.Context, _ string, _ map[string]any) Result {
	return Abort("single_instance_allowed")
}

func TestManager_TerminalOnStart(t *testing.T) {
	m := newTestManager()
	m.Register("single", abortOnBegin{})

	f, result, err := m.Start(context.Background(), "single")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if f != nil {
		t.Error("Start() with terminal result should not track a flow")
	}
	if result.Type != ResultAbort || result.Reason != "single_instance_allowed" {
		t.Errorf("result = %+v, want abort single_instance_allowed", result)
	}
	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}
