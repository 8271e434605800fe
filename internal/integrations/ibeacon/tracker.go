package ibeacon

import (
	"math"
	"sync"
	"time"
)

const (
	// maxTriplesPerAddress is how many distinct uuid/major/minor triples
	// a single MAC address may emit before it is treated as a rotating-id
	// device (phones, watches) and ignored. Real beacons emit one.
	maxTriplesPerAddress = 10

	// unseenTimeout is how long a beacon may go unheard before it is
	// reported unavailable.
	unseenTimeout = 3 * time.Minute

	// sweepInterval is how often unseen beacons are checked.
	sweepInterval = time.Minute
)

// Update is a fresh measurement for a tracked beacon.
type Update struct {
	// Key is the beacon identity triple, see Frame.Key.
	Key string

	Frame   *Frame
	Address string

	// RSSI is the received signal strength in dBm.
	RSSI int

	// Distance is the estimated range in metres, rounded to 2 decimals.
	Distance float64
}

// Tracker distils gateway advertisements into per-beacon measurements.
//
// It keeps the latest RSSI and calibrated power per identity triple,
// estimates distance, reports beacons unheard for three minutes as
// unavailable, and drops addresses that rotate through identities.
type Tracker struct {
	onUpdate      func(Update)
	onUnavailable func(key string)

	mu       sync.Mutex
	beacons  map[string]*beaconState
	triples  map[string]map[string]struct{}
	ignored  map[string]struct{}
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

type beaconState struct {
	frame    *Frame
	address  string
	lastSeen time.Time
}

// NewTracker creates a tracker. onUpdate fires for every accepted
// advertisement; onUnavailable fires once when a beacon goes unheard
// past the timeout. Call Start to begin the unavailability sweep.
func NewTracker(onUpdate func(Update), onUnavailable func(key string)) *Tracker {
	return &Tracker{
		onUpdate:      onUpdate,
		onUnavailable: onUnavailable,
		beacons:       make(map[string]*beaconState),
		triples:       make(map[string]map[string]struct{}),
		ignored:       make(map[string]struct{}),
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the periodic unavailability sweep.
func (t *Tracker) Start() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

// Stop terminates the sweep. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Process ingests one advertisement. Non-iBeacon manufacturer data and
// advertisements from ignored addresses are dropped silently.
func (t *Tracker) Process(address string, rssi int, manufacturerData []byte) {
	frame, err := ParseFrame(manufacturerData)
	if err != nil {
		return
	}
	key := frame.Key()

	t.mu.Lock()
	if _, bad := t.ignored[address]; bad {
		t.mu.Unlock()
		return
	}

	// Rotating-id detection: count distinct triples per address.
	seen, ok := t.triples[address]
	if !ok {
		seen = make(map[string]struct{})
		t.triples[address] = seen
	}
	seen[key] = struct{}{}
	if len(seen) > maxTriplesPerAddress {
		t.ignored[address] = struct{}{}
		delete(t.triples, address)
		// Drop every beacon this address produced; they are noise.
		var dropped []string
		for k, b := range t.beacons {
			if b.address == address {
				delete(t.beacons, k)
				dropped = append(dropped, k)
			}
		}
		t.mu.Unlock()
		for _, k := range dropped {
			if t.onUnavailable != nil {
				t.onUnavailable(k)
			}
		}
		return
	}

	t.beacons[key] = &beaconState{
		frame:    frame,
		address:  address,
		lastSeen: t.now(),
	}
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(Update{
			Key:      key,
			Frame:    frame,
			Address:  address,
			RSSI:     rssi,
			Distance: Distance(frame.TxPower, rssi),
		})
	}
}

// TrackedCount returns the number of beacons currently tracked.
func (t *Tracker) TrackedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.beacons)
}

// sweep reports beacons unheard past the timeout as unavailable and
// forgets them; they are re-announced when heard again.
func (t *Tracker) sweep() {
	cutoff := t.now().Add(-unseenTimeout)

	t.mu.Lock()
	var gone []string
	for key, b := range t.beacons {
		if b.lastSeen.Before(cutoff) {
			delete(t.beacons, key)
			gone = append(gone, key)
		}
	}
	t.mu.Unlock()

	for _, key := range gone {
		if t.onUnavailable != nil {
			t.onUnavailable(key)
		}
	}
}

// Distance estimates beacon range in metres from the calibrated power
// at one metre and the received RSSI, using the standard path-loss
// model with exponent 2. Rounded to 2 decimals.
func Distance(txPower int8, rssi int) float64 {
	d := math.Pow(10, float64(int(txPower)-rssi)/20)
	return math.Round(d*100) / 100
}
