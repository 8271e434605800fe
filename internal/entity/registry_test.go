package entity

import (
	"context"
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	repo, entryID := openTestRepo(t)

	reg, err := NewRegistry(context.Background(), repo)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg, entryID
}

func TestRegistry_UpsertCreates(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Upsert(ctx, testEntity(entryID, "", "dev-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Upsert() should assign an ID")
	}

	got, err := reg.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UniqueID != "dev-1" {
		t.Errorf("UniqueID = %q, want dev-1", got.UniqueID)
	}
}

func TestRegistry_UpsertPreservesState(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Upsert(ctx, testEntity(entryID, "", "dev-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := reg.SetState(ctx, created.ID, State{"value": 18.0}); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	// Second setup of the same entry: descriptive fields refresh, state
	// and ID stay. This is what reconnecting integrations rely on.
	again := testEntity(entryID, "", "dev-1")
	again.Name = "Renamed Sensor"
	updated, err := reg.Upsert(ctx, again)
	if err != nil {
		t.Fatalf("Upsert() second call error = %v", err)
	}

	if updated.ID != created.ID {
		t.Errorf("ID changed across upserts: %q != %q", updated.ID, created.ID)
	}
	if updated.Name != "Renamed Sensor" {
		t.Errorf("Name = %q, want Renamed Sensor", updated.Name)
	}
	if updated.State["value"] != 18.0 {
		t.Errorf("State[value] = %v, want 18.0 (preserved)", updated.State["value"])
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Upsert(ctx, testEntity(entryID, "", "dev-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, _ := reg.Get(created.ID)
	got.State["value"] = 999.0
	got.Name = "Mutated"

	fresh, _ := reg.Get(created.ID)
	if fresh.State["value"] == 999.0 {
		t.Error("cache state mutated through Get() result")
	}
	if fresh.Name == "Mutated" {
		t.Error("cache entity mutated through Get() result")
	}
}

func TestRegistry_SetStateClonesInput(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Upsert(ctx, testEntity(entryID, "", "dev-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	state := State{"value": 21.5}
	if _, err := reg.SetState(ctx, created.ID, state); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	// The caller keeps ownership of its map; mutating it afterwards
	// must not bleed into the registry cache.
	state["value"] = 999.0

	got, _ := reg.Get(created.ID)
	if got.State["value"] == 999.0 {
		t.Error("cache state mutated through caller's map after SetState()")
	}
}

func TestRegistry_SetAvailability(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.Upsert(ctx, testEntity(entryID, "", "dev-1"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	updated, err := reg.SetAvailability(ctx, created.ID, false)
	if err != nil {
		t.Fatalf("SetAvailability() error = %v", err)
	}
	if updated.Available {
		t.Error("Available = true, want false")
	}
}

func TestRegistry_DeleteByEntry(t *testing.T) {
	reg, entryID := newTestRegistry(t)
	ctx := context.Background()

	for _, uid := range []string{"dev-1", "dev-2"} {
		if _, err := reg.Upsert(ctx, testEntity(entryID, "", uid)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", uid, err)
		}
	}
	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}

	if err := reg.DeleteByEntry(ctx, entryID); err != nil {
		t.Fatalf("DeleteByEntry() error = %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() after delete = %d, want 0", reg.Count())
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
