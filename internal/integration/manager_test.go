package integration

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/coordinator"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/database"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	_ "github.com/hearth-home/hearth/migrations" // register embedded migrations
)

// fakeIntegration scripts setup outcomes for lifecycle tests.
type fakeIntegration struct {
	domain     string
	setupErr   error
	setupCalls atomic.Int32
	runtime    *fakeRuntime
}

func (f *fakeIntegration) Domain() string                   { return f.domain }
func (f *fakeIntegration) FlowHandler(_ *Host) flow.Handler { return nil }

func (f *fakeIntegration) Setup(_ context.Context, _ *Host, _ *configentry.ConfigEntry) (Runtime, error) {
	f.setupCalls.Add(1)
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	if f.runtime == nil {
		f.runtime = &fakeRuntime{}
	}
	return f.runtime, nil
}

type fakeRuntime struct {
	commands []string
	closed   atomic.Bool
}

func (r *fakeRuntime) HandleCommand(_ context.Context, entityID string, _ map[string]any) error {
	r.commands = append(r.commands, entityID)
	return nil
}

func (r *fakeRuntime) Close(_ context.Context) error {
	r.closed.Store(true)
	return nil
}

func newTestManager(t *testing.T, integrations ...Integration) (*Manager, *configentry.Store, *Host) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	store, err := configentry.NewStore(ctx, configentry.NewSQLiteRepository(db.DB))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	entities, err := entity.NewRegistry(ctx, entity.NewSQLiteRepository(db.DB))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	logger := logging.Default()
	host := &Host{
		Logger:        logger,
		Entities:      entities,
		Writer:        entity.NewWriter(entities, nil, logger),
		NewHTTPClient: DefaultHTTPClientFactory,
	}

	registry := NewRegistry()
	for _, i := range integrations {
		registry.Register(i)
	}

	m := NewManager(store, registry, host)
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, store, host
}

func addEntry(t *testing.T, store *configentry.Store, domain string) *configentry.ConfigEntry {
	t.Helper()
	e, err := store.Add(context.Background(), &configentry.ConfigEntry{
		Domain: domain,
		Title:  "Test " + domain,
		Data:   configentry.Data{"host": "10.0.0.2"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return e
}

func TestManager_SetupSuccess(t *testing.T) {
	fake := &fakeIntegration{domain: "fake"}
	m, store, _ := newTestManager(t, fake)
	e := addEntry(t, store, "fake")

	if err := m.Setup(context.Background(), e.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	got, _ := store.Get(e.ID)
	if got.State != configentry.StateLoaded {
		t.Errorf("State = %q, want loaded", got.State)
	}
	if !m.IsLoaded(e.ID) {
		t.Error("IsLoaded() = false, want true")
	}

	// Setting up a loaded entry is a no-op.
	if err := m.Setup(context.Background(), e.ID); err != nil {
		t.Fatalf("Setup() second call error = %v", err)
	}
	if got := fake.setupCalls.Load(); got != 1 {
		t.Errorf("setup called %d times, want 1", got)
	}
}

func TestManager_SetupAuthFailed(t *testing.T) {
	fake := &fakeIntegration{domain: "fake", setupErr: configentry.ErrAuthFailed}
	m, store, _ := newTestManager(t, fake)
	e := addEntry(t, store, "fake")

	err := m.Setup(context.Background(), e.ID)
	if !errors.Is(err, configentry.ErrAuthFailed) {
		t.Fatalf("Setup() error = %v, want ErrAuthFailed", err)
	}

	got, _ := store.Get(e.ID)
	if got.State != configentry.StateAuthFailed {
		t.Errorf("State = %q, want auth_failed", got.State)
	}
}

func TestManager_SetupNotReadySchedulesRetry(t *testing.T) {
	fake := &fakeIntegration{domain: "fake", setupErr: configentry.ErrNotReady}
	m, store, _ := newTestManager(t, fake)
	e := addEntry(t, store, "fake")

	err := m.Setup(context.Background(), e.ID)
	if !errors.Is(err, configentry.ErrNotReady) {
		t.Fatalf("Setup() error = %v, want ErrNotReady", err)
	}

	got, _ := store.Get(e.ID)
	if got.State != configentry.StateSetupRetry {
		t.Errorf("State = %q, want setup_retry", got.State)
	}

	m.mu.Lock()
	_, armed := m.retryTimers[e.ID]
	m.mu.Unlock()
	if !armed {
		t.Error("no retry timer armed after ErrNotReady")
	}
}

func TestManager_SetupUnknownDomain(t *testing.T) {
	m, store, _ := newTestManager(t)
	e := addEntry(t, store, "ghost")

	err := m.Setup(context.Background(), e.ID)
	if !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("Setup() error = %v, want ErrUnknownDomain", err)
	}

	got, _ := store.Get(e.ID)
	if got.State != configentry.StateSetupError {
		t.Errorf("State = %q, want setup_error", got.State)
	}
}

func TestManager_UnloadClosesRuntime(t *testing.T) {
	fake := &fakeIntegration{domain: "fake"}
	m, store, _ := newTestManager(t, fake)
	e := addEntry(t, store, "fake")
	ctx := context.Background()

	if err := m.Setup(ctx, e.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := m.Unload(ctx, e.ID); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	if !fake.runtime.closed.Load() {
		t.Error("runtime not closed by Unload")
	}
	got, _ := store.Get(e.ID)
	if got.State != configentry.StateNotLoaded {
		t.Errorf("State = %q, want not_loaded", got.State)
	}
}

func TestManager_RemoveDeletesEntryAndEntities(t *testing.T) {
	fake := &fakeIntegration{domain: "fake"}
	m, store, host := newTestManager(t, fake)
	e := addEntry(t, store, "fake")
	ctx := context.Background()

	if err := m.Setup(ctx, e.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := host.Entities.Upsert(ctx, &entity.Entity{
		EntryID:  e.ID,
		UniqueID: "dev-1",
		Name:     "Test Sensor",
		Platform: entity.PlatformSensor,
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := m.Remove(ctx, e.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := store.Get(e.ID); !errors.Is(err, configentry.ErrNotFound) {
		t.Errorf("Get() after remove error = %v, want ErrNotFound", err)
	}
	if got := len(host.Entities.ListByEntry(e.ID)); got != 0 {
		t.Errorf("entities after remove = %d, want 0", got)
	}
	if !fake.runtime.closed.Load() {
		t.Error("runtime not closed by Remove")
	}
}

func TestManager_CreateFromFlow(t *testing.T) {
	fake := &fakeIntegration{domain: "fake"}
	m, store, _ := newTestManager(t, fake)
	ctx := context.Background()

	result := flow.CreateEntry("Lounge Device", "dev-42", configentry.Data{"host": "10.0.0.9"})
	created, err := m.CreateFromFlow(ctx, "fake", result)
	if err != nil {
		t.Fatalf("CreateFromFlow() error = %v", err)
	}
	if created.State != configentry.StateLoaded {
		t.Errorf("State = %q, want loaded", created.State)
	}
	if created.Title != "Lounge Device" {
		t.Errorf("Title = %q, want Lounge Device", created.Title)
	}

	// Same unique id again aborts.
	if _, err := m.CreateFromFlow(ctx, "fake", result); !errors.Is(err, configentry.ErrAlreadyConfigured) {
		t.Errorf("CreateFromFlow() duplicate error = %v, want ErrAlreadyConfigured", err)
	}

	if got := len(store.ListByDomain("fake")); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestManager_HandleCommandRouting(t *testing.T) {
	fake := &fakeIntegration{domain: "fake"}
	m, store, host := newTestManager(t, fake)
	e := addEntry(t, store, "fake")
	ctx := context.Background()

	if err := m.Setup(ctx, e.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	ent, err := host.Entities.Upsert(ctx, &entity.Entity{
		EntryID:  e.ID,
		UniqueID: "switch-1",
		Name:     "Test Switch",
		Platform: entity.PlatformSwitch,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := m.HandleCommand(ctx, ent.ID, map[string]any{"action": "turn_on"}); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if len(fake.runtime.commands) != 1 || fake.runtime.commands[0] != ent.ID {
		t.Errorf("runtime commands = %v, want [%s]", fake.runtime.commands, ent.ID)
	}

	// Unloaded entry rejects commands.
	if err := m.Unload(ctx, e.ID); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if err := m.HandleCommand(ctx, ent.ID, map[string]any{"action": "turn_on"}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("HandleCommand() on unloaded entry error = %v, want ErrNotLoaded", err)
	}
}

// authFlipIntegration polls through a real coordinator; the first
// fetch succeeds, every later one reports rejected credentials.
type authFlipIntegration struct {
	runtime *authFlipRuntime
}

func (f *authFlipIntegration) Domain() string                   { return "authflip" }
func (f *authFlipIntegration) FlowHandler(_ *Host) flow.Handler { return nil }

func (f *authFlipIntegration) Setup(ctx context.Context, host *Host, entry *configentry.ConfigEntry) (Runtime, error) {
	rt := &authFlipRuntime{}
	var fetches atomic.Int32
	rt.coord = coordinator.New(coordinator.Options[int]{
		Name:     "authflip",
		Interval: time.Hour,
		Fetch: func(context.Context) (int, error) {
			if fetches.Add(1) == 1 {
				return 1, nil
			}
			return 0, configentry.ErrAuthFailed
		},
		Logger: host.Logger,
		OnAuthFailed: func() {
			if host.ReportAuthFailed != nil {
				host.ReportAuthFailed(entry.ID)
			}
		},
	})
	if err := rt.coord.Start(ctx); err != nil {
		return nil, err
	}
	f.runtime = rt
	return rt, nil
}

type authFlipRuntime struct {
	coord *coordinator.Coordinator[int]
}

func (r *authFlipRuntime) HandleCommand(_ context.Context, _ string, _ map[string]any) error {
	return nil
}

func (r *authFlipRuntime) Close(_ context.Context) error {
	r.coord.Stop()
	return nil
}

func TestManager_MidRunAuthFailureParksEntry(t *testing.T) {
	fake := &authFlipIntegration{}
	m, store, _ := newTestManager(t, fake)
	e := addEntry(t, store, "authflip")

	if err := m.Setup(context.Background(), e.ID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// The next refresh is rejected; the runtime must park its entry,
	// not just stop polling.
	fake.runtime.coord.RequestRefresh()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.Get(e.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.State == configentry.StateAuthFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("State = %q, want auth_failed", got.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if m.IsLoaded(e.ID) {
		t.Error("IsLoaded() = true after mid-run auth failure, want false")
	}
}
