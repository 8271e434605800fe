package configentry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hearth-home/hearth/internal/infrastructure/database"
	_ "github.com/hearth-home/hearth/migrations" // register embedded migrations
)

func newTestStore(t *testing.T) *Store {
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

	store, err := NewStore(ctx, NewSQLiteRepository(db.DB))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func testEntry(domain, title, uniqueID string) *ConfigEntry {
	return &ConfigEntry{
		Domain:   domain,
		Title:    title,
		UniqueID: uniqueID,
		Data:     Data{"host": "192.168.1.50", "port": 9005},
		Options:  Data{},
	}
}

func TestStore_AddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, testEntry("airtouch", "AirTouch Lounge", "console-1"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Add() should assign an ID")
	}
	if created.State != StateNotLoaded {
		t.Errorf("State = %q, want %q", created.State, StateNotLoaded)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Domain != "airtouch" {
		t.Errorf("Domain = %q, want airtouch", got.Domain)
	}
	if got.Data.GetString("host") != "192.168.1.50" {
		t.Errorf("Data host = %q, want 192.168.1.50", got.Data.GetString("host"))
	}
	if got.Data.GetInt("port") != 9005 {
		t.Errorf("Data port = %d, want 9005", got.Data.GetInt("port"))
	}
}

func TestStore_AddDuplicateUniqueID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, testEntry("airtouch", "First", "console-1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err := store.Add(ctx, testEntry("airtouch", "Second", "console-1"))
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("Add() duplicate error = %v, want ErrAlreadyConfigured", err)
	}

	// Same unique id under a different domain is allowed.
	if _, err := store.Add(ctx, testEntry("starline", "Car", "console-1")); err != nil {
		t.Errorf("Add() different domain error = %v", err)
	}
}

func TestStore_AddUnkeyedEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Entries without a unique id do not collide with each other.
	for _, title := range []string{"Export A", "Export B"} {
		if _, err := store.Add(ctx, testEntry("influxdb", title, "")); err != nil {
			t.Fatalf("Add(%s) error = %v", title, err)
		}
	}
	if got := len(store.ListByDomain("influxdb")); got != 2 {
		t.Errorf("ListByDomain() = %d entries, want 2", got)
	}
}

func TestStore_FindByUniqueID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, testEntry("airtouch", "AirTouch", "console-1"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := store.FindByUniqueID("airtouch", "console-1")
	if err != nil {
		t.Fatalf("FindByUniqueID() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}

	if _, err := store.FindByUniqueID("airtouch", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByUniqueID(empty) error = %v, want ErrNotFound", err)
	}
}

func TestStore_SetState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, testEntry("airtouch", "AirTouch", "console-1"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := store.SetState(ctx, created.ID, StateLoaded); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	got, _ := store.Get(created.ID)
	if got.State != StateLoaded {
		t.Errorf("State = %q, want %q", got.State, StateLoaded)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, testEntry("airtouch", "AirTouch", "console-1"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, _ := store.Get(created.ID)
	got.Data["host"] = "tampered"

	fresh, _ := store.Get(created.ID)
	if fresh.Data.GetString("host") == "tampered" {
		t.Error("cache mutated through Get() result")
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Add(ctx, testEntry("airtouch", "AirTouch", "console-1"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() second call error = %v, want ErrNotFound", err)
	}
}
