package configentry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store provides cached access to config entries with persistence.
// Reads are served from memory and return deep copies; writes go
// through the repository first.
type Store struct {
	repo  Repository
	cache map[string]*ConfigEntry
	mu    sync.RWMutex
}

// NewStore creates a store and loads all entries into the cache.
func NewStore(ctx context.Context, repo Repository) (*Store, error) {
	s := &Store{
		repo:  repo,
		cache: make(map[string]*ConfigEntry),
	}
	if err := s.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading config entry cache: %w", err)
	}
	return s, nil
}

// RefreshCache reloads the entire cache from the repository.
func (s *Store) RefreshCache(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing config entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]*ConfigEntry, len(entries))
	for i := range entries {
		e := entries[i]
		s.cache[e.ID] = &e
	}
	return nil
}

// Get retrieves an entry by ID. Returns a deep copy.
func (s *Store) Get(id string) (*ConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.DeepCopy(), nil
}

// List returns deep copies of all entries, ordered by domain then title.
func (s *Store) List() []ConfigEntry {
	s.mu.RLock()
	entries := make([]ConfigEntry, 0, len(s.cache))
	for _, e := range s.cache {
		entries = append(entries, *e.DeepCopy())
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Domain != entries[j].Domain {
			return entries[i].Domain < entries[j].Domain
		}
		return entries[i].Title < entries[j].Title
	})
	return entries
}

// ListByDomain returns all entries for an integration domain.
func (s *Store) ListByDomain(domain string) []ConfigEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []ConfigEntry
	for _, e := range s.cache {
		if e.Domain == domain {
			entries = append(entries, *e.DeepCopy())
		}
	}
	return entries
}

// FindByUniqueID looks up an entry by (domain, unique id).
// Returns ErrNotFound when no entry matches. Empty unique IDs never match.
func (s *Store) FindByUniqueID(domain, uniqueID string) (*ConfigEntry, error) {
	if uniqueID == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.cache {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return e.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

// Add persists a new entry and caches it. An ID is assigned when absent.
// Returns ErrAlreadyConfigured when the (domain, unique id) pair exists.
func (s *Store) Add(ctx context.Context, e *ConfigEntry) (*ConfigEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[e.ID] = e.DeepCopy()
	s.mu.Unlock()
	return e.DeepCopy(), nil
}

// Update persists entry modifications and refreshes the cache.
func (s *Store) Update(ctx context.Context, e *ConfigEntry) error {
	if err := s.repo.Update(ctx, e); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[e.ID] = e.DeepCopy()
	s.mu.Unlock()
	return nil
}

// SetState persists and caches a new lifecycle state.
func (s *Store) SetState(ctx context.Context, id string, state EntryState) error {
	if err := s.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache[id]
	if !ok {
		return ErrNotFound
	}
	e.State = state
	return nil
}

// Delete removes an entry from the repository and the cache.
// Owned entities are removed by the schema's cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return nil
}
