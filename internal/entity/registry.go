package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry provides cached access to entities with persistence.
// It maintains an in-memory cache backed by a Repository, so read
// operations served by integrations and the API never touch the
// database on the hot path.
type Registry struct {
	repo  Repository
	cache map[string]*Entity
	mu    sync.RWMutex
}

// NewRegistry creates a registry and loads all entities into the cache.
//
// Parameters:
//   - ctx: context for the initial cache load
//   - repo: the repository used for persistence
//
// Returns the initialised registry or an error if the load fails.
func NewRegistry(ctx context.Context, repo Repository) (*Registry, error) {
	r := &Registry{
		repo:  repo,
		cache: make(map[string]*Entity),
	}
	if err := r.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading entity cache: %w", err)
	}
	return r, nil
}

// RefreshCache reloads the entire cache from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Entity, len(entities))
	for i := range entities {
		e := entities[i]
		r.cache[e.ID] = &e
	}
	return nil
}

// Get retrieves an entity by ID from the cache.
// Returns a deep copy so callers cannot mutate cached data.
func (r *Registry) Get(id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.DeepCopy(), nil
}

// GetByUniqueID retrieves an entity by its integration-scoped unique ID.
func (r *Registry) GetByUniqueID(entryID, uniqueID string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.cache {
		if e.EntryID == entryID && e.UniqueID == uniqueID {
			return e.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

// List returns deep copies of all cached entities.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]Entity, 0, len(r.cache))
	for _, e := range r.cache {
		entities = append(entities, *e.DeepCopy())
	}
	return entities
}

// ListByEntry returns all entities owned by a config entry.
func (r *Registry) ListByEntry(entryID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entities []Entity
	for _, e := range r.cache {
		if e.EntryID == entryID {
			entities = append(entities, *e.DeepCopy())
		}
	}
	return entities
}

// ListByPlatform returns all entities on a platform.
func (r *Registry) ListByPlatform(platform Platform) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entities []Entity
	for _, e := range r.cache {
		if e.Platform == platform {
			entities = append(entities, *e.DeepCopy())
		}
	}
	return entities
}

// Count returns the number of cached entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Upsert creates or updates an entity keyed by (entry id, unique id).
// Integrations call this during setup: on the first run the entity is
// created, on later runs the descriptive fields are refreshed while the
// stored ID, state and availability are preserved.
//
// Returns the persisted entity (a deep copy) with its ID populated.
func (r *Registry) Upsert(ctx context.Context, e *Entity) (*Entity, error) {
	existing, err := r.repo.GetByUniqueID(ctx, e.EntryID, e.UniqueID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("looking up entity: %w", err)
	}

	if existing == nil {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.State == nil {
			e.State = State{}
		}
		if err := r.repo.Create(ctx, e); err != nil {
			return nil, fmt.Errorf("creating entity: %w", err)
		}

		r.mu.Lock()
		r.cache[e.ID] = e.DeepCopy()
		r.mu.Unlock()
		return e.DeepCopy(), nil
	}

	existing.Name = e.Name
	existing.Platform = e.Platform
	existing.DeviceClass = e.DeviceClass
	existing.Unit = e.Unit
	existing.Device = e.Device
	if err := r.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("updating entity: %w", err)
	}

	r.mu.Lock()
	r.cache[existing.ID] = existing.DeepCopy()
	r.mu.Unlock()
	return existing.DeepCopy(), nil
}

// Delete removes an entity from the repository and the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
	return nil
}

// DeleteByEntry removes all entities owned by a config entry.
func (r *Registry) DeleteByEntry(ctx context.Context, entryID string) error {
	if err := r.repo.DeleteByEntry(ctx, entryID); err != nil {
		return err
	}

	r.mu.Lock()
	for id, e := range r.cache {
		if e.EntryID == entryID {
			delete(r.cache, id)
		}
	}
	r.mu.Unlock()
	return nil
}

// SetState persists and caches a new state for an entity.
// Returns the updated entity as a deep copy.
func (r *Registry) SetState(ctx context.Context, id string, state State) (*Entity, error) {
	now := time.Now().UTC()
	if err := r.repo.UpdateState(ctx, id, state, now); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	// Clone: the cache must not share the caller's map, or a caller
	// reusing it would mutate cached state behind the lock.
	e.State = deepCopyState(state)
	e.StateUpdatedAt = &now
	e.UpdatedAt = now
	return e.DeepCopy(), nil
}

// SetAvailability persists and caches a new availability flag.
// Returns the updated entity as a deep copy.
func (r *Registry) SetAvailability(ctx context.Context, id string, available bool) (*Entity, error) {
	if err := r.repo.UpdateAvailability(ctx, id, available); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.Available = available
	e.UpdatedAt = time.Now().UTC()
	return e.DeepCopy(), nil
}
