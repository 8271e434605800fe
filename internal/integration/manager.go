package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/infrastructure/mqtt"
)

// Retry backoff for entries that fail setup with ErrNotReady.
// 5s, 10s, 20s, ... capped at 5 minutes, with jitter so a broker
// restart does not line every entry up on the same tick.
const (
	retryBaseDelay = 5 * time.Second
	retryMaxDelay  = 5 * time.Minute
)

// setupTimeout bounds a single setup attempt.
const setupTimeout = 60 * time.Second

// Manager owns the config entry lifecycle: setting entries up against
// their integrations, retrying recoverable failures, routing commands
// to runtimes, and tearing everything down on shutdown.
type Manager struct {
	store    *configentry.Store
	registry *Registry
	host     *Host
	logger   *logging.Logger

	mu          sync.Mutex
	runtimes    map[string]Runtime
	retryTimers map[string]*time.Timer
	attempts    map[string]int
	closed      bool
}

// NewManager creates a manager over the given store and registry.
// The host's ReportAuthFailed and HasEntries callbacks are wired here
// so runtimes can park their own entry when credentials are rejected
// mid-run and single-instance flows can abort up front.
func NewManager(store *configentry.Store, registry *Registry, host *Host) *Manager {
	m := &Manager{
		store:       store,
		registry:    registry,
		host:        host,
		logger:      host.Logger.With("component", "integration"),
		runtimes:    make(map[string]Runtime),
		retryTimers: make(map[string]*time.Timer),
		attempts:    make(map[string]int),
	}
	host.ReportAuthFailed = func(entryID string) {
		if err := m.MarkAuthFailed(context.Background(), entryID); err != nil {
			m.logger.Warn("parking auth-failed entry", "entry_id", entryID, "error", err)
		}
	}
	host.HasEntries = func(domain string) bool {
		return len(store.ListByDomain(domain)) > 0
	}
	return m
}

// SetupAll sets up every stored entry. Called once at startup.
// Individual failures are handled per the entry lifecycle and do not
// abort the others.
func (m *Manager) SetupAll(ctx context.Context) {
	for _, e := range m.store.List() {
		if err := m.Setup(ctx, e.ID); err != nil {
			m.logger.Warn("entry setup deferred", "entry_id", e.ID, "domain", e.Domain, "error", err)
		}
	}
}

// Setup loads a config entry: resolves its integration, runs the
// integration's setup, and records the resulting lifecycle state.
//
// ErrNotReady schedules a retry with increasing backoff. ErrAuthFailed
// parks the entry until reconfiguration. Other errors mark setup_error.
func (m *Manager) Setup(ctx context.Context, entryID string) error {
	entry, err := m.store.Get(entryID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("integration: manager closed")
	}
	if _, loaded := m.runtimes[entryID]; loaded {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	integ, err := m.registry.Get(entry.Domain)
	if err != nil {
		m.setState(ctx, entryID, configentry.StateSetupError)
		return fmt.Errorf("%w: %s", err, entry.Domain)
	}

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	runtime, err := integ.Setup(setupCtx, m.host, entry)
	cancel()

	switch {
	case err == nil:
		m.mu.Lock()
		m.runtimes[entryID] = runtime
		m.attempts[entryID] = 0
		m.mu.Unlock()
		m.setState(ctx, entryID, configentry.StateLoaded)
		m.logger.Info("entry loaded", "entry_id", entryID, "domain", entry.Domain, "title", entry.Title)
		return nil

	case errors.Is(err, configentry.ErrAuthFailed):
		m.setState(ctx, entryID, configentry.StateAuthFailed)
		m.logger.Error("entry auth failed", "entry_id", entryID, "domain", entry.Domain, "error", err)
		return err

	case errors.Is(err, configentry.ErrNotReady):
		m.setState(ctx, entryID, configentry.StateSetupRetry)
		m.scheduleRetry(entryID)
		return err

	default:
		m.setState(ctx, entryID, configentry.StateSetupError)
		m.logger.Error("entry setup failed", "entry_id", entryID, "domain", entry.Domain, "error", err)
		return err
	}
}

// scheduleRetry arms a timer that retries setup after a backoff
// derived from the entry's consecutive attempt count.
func (m *Manager) scheduleRetry(entryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	attempt := m.attempts[entryID]
	m.attempts[entryID] = attempt + 1

	delay := retryBaseDelay << attempt
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	// Up to 10% jitter.
	delay += time.Duration(rand.Int63n(int64(delay)/10 + 1)) //nolint:gosec // Jitter needs no crypto rand

	m.logger.Info("entry setup retry scheduled", "entry_id", entryID, "attempt", attempt+1, "delay", delay)

	if t, ok := m.retryTimers[entryID]; ok {
		t.Stop()
	}
	m.retryTimers[entryID] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.retryTimers, entryID)
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if err := m.Setup(context.Background(), entryID); err != nil {
			m.logger.Debug("entry setup retry failed", "entry_id", entryID, "error", err)
		}
	})
}

// Unload stops an entry's runtime and cancels pending retries.
// The entry and its entities remain stored.
func (m *Manager) Unload(ctx context.Context, entryID string) error {
	m.mu.Lock()
	if t, ok := m.retryTimers[entryID]; ok {
		t.Stop()
		delete(m.retryTimers, entryID)
	}
	m.attempts[entryID] = 0
	runtime, loaded := m.runtimes[entryID]
	delete(m.runtimes, entryID)
	m.mu.Unlock()

	if loaded {
		if err := runtime.Close(ctx); err != nil {
			m.logger.Warn("runtime close failed", "entry_id", entryID, "error", err)
		}
	}
	return m.setState(ctx, entryID, configentry.StateNotLoaded)
}

// MarkAuthFailed unloads a running entry and parks it as auth_failed.
// This is the mid-run counterpart to a Setup returning ErrAuthFailed:
// a poll loop whose credentials stop working reports through
// Host.ReportAuthFailed, and the entry stays parked (no retries) until
// the user reconfigures and reloads it.
func (m *Manager) MarkAuthFailed(ctx context.Context, entryID string) error {
	m.mu.Lock()
	if t, ok := m.retryTimers[entryID]; ok {
		t.Stop()
		delete(m.retryTimers, entryID)
	}
	runtime, loaded := m.runtimes[entryID]
	delete(m.runtimes, entryID)
	m.mu.Unlock()

	if loaded {
		if err := runtime.Close(ctx); err != nil {
			m.logger.Warn("runtime close failed", "entry_id", entryID, "error", err)
		}
	}
	m.logger.Error("entry credentials rejected mid-run", "entry_id", entryID)
	return m.setState(ctx, entryID, configentry.StateAuthFailed)
}

// Reload unloads and sets an entry up again, picking up changed
// data or options.
func (m *Manager) Reload(ctx context.Context, entryID string) error {
	if err := m.Unload(ctx, entryID); err != nil {
		return err
	}
	return m.Setup(ctx, entryID)
}

// Remove unloads an entry and deletes it together with its entities.
func (m *Manager) Remove(ctx context.Context, entryID string) error {
	if _, err := m.store.Get(entryID); err != nil {
		return err
	}
	if err := m.Unload(ctx, entryID); err != nil && !errors.Is(err, configentry.ErrNotFound) {
		return err
	}
	if err := m.host.Entities.DeleteByEntry(ctx, entryID); err != nil {
		return fmt.Errorf("removing entry entities: %w", err)
	}
	return m.store.Delete(ctx, entryID)
}

// CreateFromFlow persists the entry described by a finished config
// flow and sets it up. Returns the created entry.
//
// Setup failures do not fail creation: the entry is stored and the
// lifecycle (retry, auth_failed) takes over, matching what the UI
// expects when a device is added while briefly unreachable.
func (m *Manager) CreateFromFlow(ctx context.Context, domain string, result flow.Result) (*configentry.ConfigEntry, error) {
	if result.Type != flow.ResultCreateEntry {
		return nil, fmt.Errorf("integration: flow result %q cannot create an entry", result.Type)
	}

	if result.UniqueID != "" {
		if _, err := m.store.FindByUniqueID(domain, result.UniqueID); err == nil {
			return nil, configentry.ErrAlreadyConfigured
		}
	}

	entry, err := m.store.Add(ctx, &configentry.ConfigEntry{
		Domain:   domain,
		Title:    result.Title,
		UniqueID: result.UniqueID,
		Data:     result.Data,
		Options:  result.Options,
	})
	if err != nil {
		return nil, err
	}

	if err := m.Setup(ctx, entry.ID); err != nil {
		m.logger.Warn("entry setup after flow deferred", "entry_id", entry.ID, "error", err)
	}
	return m.store.Get(entry.ID)
}

// HandleCommand routes a command to the runtime owning the entity.
func (m *Manager) HandleCommand(ctx context.Context, entityID string, command map[string]any) error {
	e, err := m.host.Entities.Get(entityID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	runtime, loaded := m.runtimes[e.EntryID]
	m.mu.Unlock()
	if !loaded {
		return fmt.Errorf("%w: entry %s", ErrNotLoaded, e.EntryID)
	}
	return runtime.HandleCommand(ctx, entityID, command)
}

// IsLoaded reports whether an entry currently has a running runtime.
func (m *Manager) IsLoaded(entryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runtimes[entryID]
	return ok
}

// BindCommandTopic subscribes to the MQTT command topics and routes
// payloads to HandleCommand, so entities are controllable from the
// broker as well as the REST API. Payloads are JSON objects.
func (m *Manager) BindCommandTopic(client *mqtt.Client) error {
	topics := mqtt.Topics{}
	return client.Subscribe(topics.AllEntityCommands(), 1, func(topic string, payload []byte) error {
		entityID := topic[len(mqtt.TopicPrefix+"/command/"):]

		var command map[string]any
		if err := json.Unmarshal(payload, &command); err != nil {
			m.logger.Warn("discarding malformed command payload", "topic", topic, "error", err)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.HandleCommand(ctx, entityID, command); err != nil {
			m.logger.Warn("mqtt command failed", "entity_id", entityID, "error", err)
			return err
		}
		return nil
	})
}

// Shutdown unloads every runtime. Entry states are left untouched so
// the next start reloads what was loaded.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	for id, t := range m.retryTimers {
		t.Stop()
		delete(m.retryTimers, id)
	}
	runtimes := make(map[string]Runtime, len(m.runtimes))
	for id, rt := range m.runtimes {
		runtimes[id] = rt
		delete(m.runtimes, id)
	}
	m.mu.Unlock()

	for id, rt := range runtimes {
		if err := rt.Close(ctx); err != nil {
			m.logger.Warn("runtime close failed during shutdown", "entry_id", id, "error", err)
		}
	}
}

// setState records an entry lifecycle state, tolerating entries that
// were removed mid-transition.
func (m *Manager) setState(ctx context.Context, entryID string, state configentry.EntryState) error {
	if err := m.store.SetState(ctx, entryID, state); err != nil && !errors.Is(err, configentry.ErrNotFound) {
		return err
	}
	return nil
}
