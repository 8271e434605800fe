package ibeacon

import (
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"
)

type trackerRecorder struct {
	mu          sync.Mutex
	updates     []Update
	unavailable []string
}

func (r *trackerRecorder) onUpdate(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *trackerRecorder) onUnavailable(key string) {
	r.mu.Lock()
	r.unavailable = append(r.unavailable, key)
	r.mu.Unlock()
}

func TestTracker_ProcessUpdates(t *testing.T) {
	rec := &trackerRecorder{}
	tr := NewTracker(rec.onUpdate, rec.onUnavailable)

	tr.Process("aa:bb:cc:dd:ee:ff", -69, buildFrame(testUUID, 100, 40, -59))

	if len(rec.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(rec.updates))
	}
	u := rec.updates[0]
	if u.Key != "f7826da6-4fa2-4e98-8024-bc5b71e0893e_100_40" {
		t.Errorf("Key = %q", u.Key)
	}
	if u.RSSI != -69 {
		t.Errorf("RSSI = %d, want -69", u.RSSI)
	}
	if u.Distance != 3.16 {
		t.Errorf("Distance = %v, want 3.16", u.Distance)
	}
	if tr.TrackedCount() != 1 {
		t.Errorf("TrackedCount() = %d, want 1", tr.TrackedCount())
	}
}

func TestTracker_IgnoresNonBeaconData(t *testing.T) {
	rec := &trackerRecorder{}
	tr := NewTracker(rec.onUpdate, rec.onUnavailable)

	tr.Process("aa:bb:cc:dd:ee:ff", -69, []byte{0x01, 0x02, 0x03})

	if len(rec.updates) != 0 || tr.TrackedCount() != 0 {
		t.Errorf("non-beacon data tracked: updates=%d count=%d", len(rec.updates), tr.TrackedCount())
	}
}

func TestTracker_RotatingAddressDropped(t *testing.T) {
	rec := &trackerRecorder{}
	tr := NewTracker(rec.onUpdate, rec.onUnavailable)
	addr := "11:22:33:44:55:66"

	// One MAC emitting more than maxTriplesPerAddress distinct triples
	// is a rotating-id device; everything it produced is dropped.
	for i := 0; i <= maxTriplesPerAddress; i++ {
		var u [16]byte
		copy(u[:], testUUID[:])
		binary.BigEndian.PutUint16(u[14:16], uint16(i))
		tr.Process(addr, -60, buildFrame(u, 1, 1, -59))
	}

	if tr.TrackedCount() != 0 {
		t.Errorf("TrackedCount() = %d, want 0 after rotating-id detection", tr.TrackedCount())
	}
	if len(rec.unavailable) != maxTriplesPerAddress {
		t.Errorf("unavailable callbacks = %d, want %d", len(rec.unavailable), maxTriplesPerAddress)
	}

	// The address stays ignored even for a stable triple.
	before := len(rec.updates)
	tr.Process(addr, -60, buildFrame(testUUID, 7, 7, -59))
	if len(rec.updates) != before {
		t.Error("ignored address still produced updates")
	}
}

func TestTracker_UnseenBeaconGoesUnavailable(t *testing.T) {
	rec := &trackerRecorder{}
	tr := NewTracker(rec.onUpdate, rec.onUnavailable)

	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.Process("aa:bb:cc:dd:ee:ff", -69, buildFrame(testUUID, 100, 40, -59))

	// Inside the timeout the beacon stays tracked.
	current = current.Add(unseenTimeout - time.Second)
	tr.sweep()
	if tr.TrackedCount() != 1 {
		t.Fatalf("TrackedCount() = %d, want 1 inside timeout", tr.TrackedCount())
	}

	current = current.Add(2 * time.Second)
	tr.sweep()
	if tr.TrackedCount() != 0 {
		t.Errorf("TrackedCount() = %d, want 0 past timeout", tr.TrackedCount())
	}
	if len(rec.unavailable) != 1 {
		t.Fatalf("unavailable callbacks = %d, want 1", len(rec.unavailable))
	}

	// Hearing the beacon again re-tracks it.
	tr.Process("aa:bb:cc:dd:ee:ff", -70, buildFrame(testUUID, 100, 40, -59))
	if tr.TrackedCount() != 1 {
		t.Errorf("TrackedCount() = %d, want 1 after reappearance", tr.TrackedCount())
	}
}

func TestTracker_SeparateBeaconsPerTriple(t *testing.T) {
	rec := &trackerRecorder{}
	tr := NewTracker(rec.onUpdate, rec.onUnavailable)

	for minor := 1; minor <= 3; minor++ {
		addr := fmt.Sprintf("aa:bb:cc:dd:ee:%02d", minor)
		tr.Process(addr, -60, buildFrame(testUUID, 100, uint16(minor), -59))
	}

	if tr.TrackedCount() != 3 {
		t.Errorf("TrackedCount() = %d, want 3", tr.TrackedCount())
	}
}
