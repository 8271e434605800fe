package configentry

import "time"

// EntryState describes the setup lifecycle state of a config entry.
type EntryState string

const (
	// StateNotLoaded means the entry exists but has not been set up yet.
	StateNotLoaded EntryState = "not_loaded"

	// StateLoaded means setup succeeded and the integration is running.
	StateLoaded EntryState = "loaded"

	// StateSetupError means setup failed with a non-recoverable error.
	StateSetupError EntryState = "setup_error"

	// StateSetupRetry means setup failed with a recoverable error and
	// retries are scheduled with increasing backoff.
	StateSetupRetry EntryState = "setup_retry"

	// StateAuthFailed means the stored credentials were rejected.
	// No retries are scheduled; the entry needs reconfiguration.
	StateAuthFailed EntryState = "auth_failed"
)

// Data holds the configuration payload of an entry: credentials,
// addresses and identifiers collected by a config flow.
type Data map[string]any

// ConfigEntry is a configured instance of an integration. An
// integration may have several entries (two AirTouch consoles, say),
// each with its own credentials and its own entities.
type ConfigEntry struct {
	// ID is the entry's unique identifier (UUID).
	ID string `json:"id"`

	// Domain names the integration this entry configures, e.g. "airtouch".
	Domain string `json:"domain"`

	// Title is the human-readable name shown in the UI, chosen by the
	// config flow from what it discovers (device name, account email).
	Title string `json:"title"`

	// UniqueID deduplicates entries within a domain: a flow that
	// discovers a device already configured aborts instead of creating
	// a second entry. Empty when the integration allows unkeyed entries.
	UniqueID string `json:"unique_id,omitempty"`

	// Data holds connection configuration and credentials.
	Data Data `json:"data"`

	// Options holds user-adjustable settings that do not require
	// re-authentication, such as poll intervals.
	Options Data `json:"options"`

	// State is the current setup lifecycle state.
	State EntryState `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the entry.
// Data and Options maps are cloned so cached entries cannot be mutated
// through returned references.
func (e *ConfigEntry) DeepCopy() *ConfigEntry {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Data = deepCopyData(e.Data)
	cpy.Options = deepCopyData(e.Options)
	return &cpy
}

func deepCopyData(d Data) Data {
	if d == nil {
		return nil
	}
	cpy := make(Data, len(d))
	for k, v := range d {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, elem := range val {
			cpy[k] = deepCopyValue(elem)
		}
		return cpy
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// GetString returns a string value from the data map, or empty string
// if the key is absent or holds a different type.
func (d Data) GetString(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// GetInt returns an integer value from the data map. JSON decoding
// stores numbers as float64, so both representations are accepted.
func (d Data) GetInt(key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
