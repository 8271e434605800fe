package wmspro

import (
	"testing"

	"github.com/hearth-home/hearth/internal/entity"
)

func TestTrackMovement(t *testing.T) {
	rt := &runtime{positions: make(map[int]int)}

	// First sighting is never moving.
	if got := rt.trackMovement(17, 100); got != entity.CoverIdle {
		t.Errorf("first poll = %q, want idle", got)
	}
	// Hub position decreasing means the cover is opening.
	if got := rt.trackMovement(17, 80); got != entity.CoverOpening {
		t.Errorf("decreasing = %q, want opening", got)
	}
	if got := rt.trackMovement(17, 80); got != entity.CoverIdle {
		t.Errorf("settled = %q, want idle", got)
	}
	if got := rt.trackMovement(17, 95); got != entity.CoverClosing {
		t.Errorf("increasing = %q, want closing", got)
	}
}

func TestDeviceClassFor(t *testing.T) {
	if got := deviceClassFor(AnimationAwning); got != entity.ClassAwning {
		t.Errorf("awning class = %q", got)
	}
	if got := deviceClassFor(AnimationRollerShutter); got != entity.ClassShutter {
		t.Errorf("shutter class = %q", got)
	}
}

func TestDestinationNameFallback(t *testing.T) {
	d := Destination{ID: 42, Names: []string{"", "", ""}}
	if got := d.Name(); got != "Destination 42" {
		t.Errorf("Name() = %q", got)
	}
}
