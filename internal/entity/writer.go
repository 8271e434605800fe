package entity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/infrastructure/mqtt"
)

// EventType identifies the kind of change carried by an Event.
type EventType string

const (
	// EventStateChanged indicates an entity's state was updated.
	EventStateChanged EventType = "state_changed"

	// EventAvailabilityChanged indicates an entity's availability flag changed.
	EventAvailabilityChanged EventType = "availability_changed"
)

// Event describes a single entity change fanned out to listeners.
// The Entity field is a deep copy; listeners may hold or mutate it freely.
type Event struct {
	Type   EventType `json:"type"`
	Entity *Entity   `json:"entity"`
}

// Listener receives entity events. Listeners run on the writer's calling
// goroutine and must not block.
type Listener func(Event)

// Publisher is the MQTT surface the writer needs. Satisfied by
// *mqtt.Client; narrowed for testing with fakes.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// statePayload is the JSON document published to entity state topics.
type statePayload struct {
	EntityID  string    `json:"entity_id"`
	Platform  Platform  `json:"platform"`
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Writer applies entity state and availability changes. Every change is
// persisted through the registry, published retained to MQTT, and fanned
// out to in-process listeners (the API WebSocket stream and export
// integrations subscribe here).
//
// A failed MQTT publish is logged but does not fail the write: the
// database is the source of truth, and the retained topic converges on
// the next change.
type Writer struct {
	registry  *Registry
	publisher Publisher
	topics    mqtt.Topics
	logger    *logging.Logger

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

// NewWriter creates a writer over the given registry and MQTT publisher.
// The publisher may be nil, in which case changes are persisted and
// fanned out without MQTT publication.
func NewWriter(registry *Registry, publisher Publisher, logger *logging.Logger) *Writer {
	return &Writer{
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener for entity events.
// Returns a function that removes the listener when called.
func (w *Writer) Subscribe(l Listener) func() {
	w.listenerMu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.listenerMu.Unlock()

	return func() {
		w.listenerMu.Lock()
		delete(w.listeners, id)
		w.listenerMu.Unlock()
	}
}

// SetState records a new state for an entity.
//
// The state is persisted, published retained to
// hearth/state/{platform}/{entity_id}, and fanned out to listeners.
func (w *Writer) SetState(ctx context.Context, id string, state State) error {
	e, err := w.registry.SetState(ctx, id, state)
	if err != nil {
		return err
	}

	w.publishState(e)
	w.dispatch(Event{Type: EventStateChanged, Entity: e})
	return nil
}

// SetAvailability records a new availability flag for an entity.
// A no-op if the flag already matches, so coordinators can report
// availability on every refresh without generating churn.
func (w *Writer) SetAvailability(ctx context.Context, id string, available bool) error {
	current, err := w.registry.Get(id)
	if err != nil {
		return err
	}
	if current.Available == available {
		return nil
	}

	e, err := w.registry.SetAvailability(ctx, id, available)
	if err != nil {
		return err
	}

	w.publishAvailability(e)
	w.dispatch(Event{Type: EventAvailabilityChanged, Entity: e})
	return nil
}

// publishState publishes the entity's state retained to MQTT.
func (w *Writer) publishState(e *Entity) {
	if w.publisher == nil {
		return
	}

	var ts time.Time
	if e.StateUpdatedAt != nil {
		ts = *e.StateUpdatedAt
	}
	payload, err := json.Marshal(statePayload{
		EntityID:  e.ID,
		Platform:  e.Platform,
		State:     e.State,
		Timestamp: ts,
	})
	if err != nil {
		w.logger.Error("marshalling state payload", "entity_id", e.ID, "error", err)
		return
	}

	topic := w.topics.EntityState(string(e.Platform), e.ID)
	if err := w.publisher.PublishRetained(topic, payload); err != nil {
		w.logger.Warn("publishing entity state", "topic", topic, "error", err)
	}
}

// publishAvailability publishes "online" or "offline" retained to MQTT.
func (w *Writer) publishAvailability(e *Entity) {
	if w.publisher == nil {
		return
	}

	payload := []byte("offline")
	if e.Available {
		payload = []byte("online")
	}

	topic := w.topics.EntityAvailability(string(e.Platform), e.ID)
	if err := w.publisher.PublishRetained(topic, payload); err != nil {
		w.logger.Warn("publishing entity availability", "topic", topic, "error", err)
	}
}

// dispatch fans an event out to every listener with a per-listener copy.
func (w *Writer) dispatch(ev Event) {
	w.listenerMu.RLock()
	defer w.listenerMu.RUnlock()

	for _, l := range w.listeners {
		l(Event{Type: ev.Type, Entity: ev.Entity.DeepCopy()})
	}
}
