package flow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearth-home/hearth/internal/infrastructure/logging"
)

// flowTTL is how long an inactive flow survives before it is discarded.
// Users abandoning a half-finished form should not leak state forever.
const flowTTL = 15 * time.Minute

// Flow is an in-progress config flow.
type Flow struct {
	// ID identifies the flow across Start/Continue calls (UUID).
	ID string `json:"id"`

	// Domain is the integration the flow configures.
	Domain string `json:"domain"`

	// StepID is the step currently awaiting input.
	StepID string `json:"step_id"`

	// CreatedAt and lastActive bound the flow's lifetime.
	CreatedAt  time.Time `json:"created_at"`
	lastActive time.Time
}

// Manager runs config flows. Handlers are registered per domain;
// flows are held in memory only and expire after 15 minutes of
// inactivity. Completed entries are the caller's responsibility: the
// manager returns the terminal Result and forgets the flow.
type Manager struct {
	logger *logging.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	active   map[string]*flowState
	now      func() time.Time
}

type flowState struct {
	flow    Flow
	handler Handler
}

// NewManager creates a flow manager.
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		logger:   logger.With("component", "flow"),
		handlers: make(map[string]Handler),
		active:   make(map[string]*flowState),
		now:      time.Now,
	}
}

// Register adds a config flow handler for a domain.
// Later registrations for the same domain replace earlier ones.
func (m *Manager) Register(domain string, h Handler) {
	m.mu.Lock()
	m.handlers[domain] = h
	m.mu.Unlock()
}

// Domains returns the domains with a registered handler.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	domains := make([]string, 0, len(m.handlers))
	for d := range m.handlers {
		domains = append(domains, d)
	}
	return domains
}

// Start begins a new flow for a domain.
//
// Returns the flow (nil when the first step is already terminal) and
// the first result. Returns ErrUnknownHandler for unregistered domains.
func (m *Manager) Start(ctx context.Context, domain string) (*Flow, Result, error) {
	m.mu.Lock()
	handler, ok := m.handlers[domain]
	m.mu.Unlock()
	if !ok {
		return nil, Result{}, ErrUnknownHandler
	}

	result := handler.Begin(ctx)
	if result.Type != ResultShowForm {
		// Terminal on the first step; nothing to track.
		return nil, result, nil
	}

	now := m.now()
	f := &flowState{
		flow: Flow{
			ID:         uuid.New().String(),
			Domain:     domain,
			StepID:     result.Form.StepID,
			CreatedAt:  now,
			lastActive: now,
		},
		handler: handler,
	}

	m.mu.Lock()
	m.pruneExpiredLocked()
	m.active[f.flow.ID] = f
	m.mu.Unlock()

	m.logger.Debug("flow started", "flow_id", f.flow.ID, "domain", domain)

	flowCopy := f.flow
	return &flowCopy, result, nil
}

// Continue submits input for a flow's current step.
//
// On a form result the flow stays active pointing at the new step.
// On a terminal result (create_entry, abort) the flow is removed.
// Returns ErrUnknownFlow for missing or expired flows.
func (m *Manager) Continue(ctx context.Context, flowID string, input map[string]any) (Result, error) {
	m.mu.Lock()
	m.pruneExpiredLocked()
	f, ok := m.active[flowID]
	m.mu.Unlock()
	if !ok {
		return Result{}, ErrUnknownFlow
	}

	result := f.handler.Handle(ctx, f.flow.StepID, input)

	m.mu.Lock()
	switch result.Type {
	case ResultShowForm:
		f.flow.StepID = result.Form.StepID
		f.flow.lastActive = m.now()
	default:
		delete(m.active, flowID)
	}
	m.mu.Unlock()

	if result.Type != ResultShowForm {
		m.logger.Debug("flow finished", "flow_id", flowID, "domain", f.flow.Domain, "result", string(result.Type))
	}
	return result, nil
}

// Get returns an active flow by ID.
func (m *Manager) Get(flowID string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneExpiredLocked()
	f, ok := m.active[flowID]
	if !ok {
		return nil, ErrUnknownFlow
	}
	flowCopy := f.flow
	return &flowCopy, nil
}

// Abort removes an active flow without completing it.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[flowID]; !ok {
		return ErrUnknownFlow
	}
	delete(m.active, flowID)
	return nil
}

// ActiveCount returns the number of flows awaiting input.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneExpiredLocked()
	return len(m.active)
}

// pruneExpiredLocked drops flows idle past the TTL. Callers hold m.mu.
func (m *Manager) pruneExpiredLocked() {
	cutoff := m.now().Add(-flowTTL)
	for id, f := range m.active {
		if f.flow.lastActive.Before(cutoff) {
			delete(m.active, id)
		}
	}
}
