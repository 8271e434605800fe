package influxdb

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
)

func TestNumericFields(t *testing.T) {
	state := entity.State{
		"value":     21.5,
		"on":        true,
		"position":  40,
		"target":    float32(22),
		"hvac_mode": "heat", // strings have no field representation
		"nested":    map[string]any{"x": 1},
	}

	want := map[string]any{
		"value":    21.5,
		"on":       true,
		"position": 40,
		"target":   float32(22),
	}
	if diff := cmp.Diff(want, numericFields(state)); diff != "" {
		t.Errorf("numericFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestNumericFieldsEmpty(t *testing.T) {
	if got := numericFields(entity.State{"moving": "idle"}); len(got) != 0 {
		t.Errorf("numericFields() = %v, want empty", got)
	}
}

func TestExcludedDomains(t *testing.T) {
	data := configentry.Data{
		"excluded_domains": []any{"ibeacon", "", "wmspro"},
	}

	excluded := excludedDomains(data)
	if !excluded["ibeacon"] || !excluded["wmspro"] {
		t.Errorf("excludedDomains() = %v", excluded)
	}
	if excluded[""] {
		t.Error("empty domain names should be dropped")
	}

	if got := excludedDomains(configentry.Data{}); len(got) != 0 {
		t.Errorf("excludedDomains(empty) = %v", got)
	}
}
