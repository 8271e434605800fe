package entity

import "time"

// Entity represents a single state-bearing object surfaced by an integration:
// a sensor reading, a switch, a climate unit, a cover.
// This matches the database schema in migrations/20260301_000000_initial_schema.up.sql.
type Entity struct {
	// Identity
	ID       string `json:"id"`
	EntryID  string `json:"entry_id"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`

	// Classification
	Platform    Platform    `json:"platform"`
	DeviceClass DeviceClass `json:"device_class,omitempty"`
	Unit        string      `json:"unit,omitempty"`

	// Source device metadata
	Device DeviceInfo `json:"device"`

	// Current state
	Available      bool       `json:"available"`
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceInfo describes the physical or logical device an entity belongs to.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
}

// State holds the current entity state as a JSON map.
//
// Examples:
//   - Sensor: {"value": 21.5}
//   - Binary sensor: {"on": true}
//   - Climate: {"hvac_mode": "heat", "current_temperature": 19.5, "target_temperature": 21.0, "fan_mode": "auto"}
//   - Cover: {"position": 40, "moving": "closing"}
type State map[string]any

// DeepCopy creates a complete independent copy of the Entity.
// Map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.State = deepCopyState(e.State)
	if e.StateUpdatedAt != nil {
		t := *e.StateUpdatedAt
		cpy.StateUpdatedAt = &t
	}
	return &cpy
}

// deepCopyState creates a deep copy of a State map.
// Nested maps and slices are recursively copied.
func deepCopyState(s State) State {
	if s == nil {
		return nil
	}
	cpy := make(State, len(s))
	for k, v := range s {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
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
		// Primitives are safe to copy by value
		return v
	}
}

// Platform identifies the entity platform an entity belongs to.
type Platform string

// Platform constants.
const (
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformSwitch       Platform = "switch"
	PlatformClimate      Platform = "climate"
	PlatformCover        Platform = "cover"
)

// AllPlatforms returns all valid platform values.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformSensor, PlatformBinarySensor, PlatformSwitch,
		PlatformClimate, PlatformCover,
	}
}

// DeviceClass refines what an entity measures or controls.
// It drives unit selection and presentation, nothing more.
type DeviceClass string

// Sensor device classes.
const (
	ClassTemperature    DeviceClass = "temperature"
	ClassHumidity       DeviceClass = "humidity"
	ClassVoltage        DeviceClass = "voltage"
	ClassBattery        DeviceClass = "battery"
	ClassSignalStrength DeviceClass = "signal_strength"
	ClassDistance       DeviceClass = "distance"
	ClassPower          DeviceClass = "power"
	ClassEnergy         DeviceClass = "energy"
	ClassCurrent        DeviceClass = "current"
	ClassMonetary       DeviceClass = "monetary"
	ClassEnum           DeviceClass = "enum"
)

// Binary sensor device classes.
const (
	ClassConnectivity DeviceClass = "connectivity"
	ClassDoor         DeviceClass = "door"
	ClassLock         DeviceClass = "lock"
	ClassMotion       DeviceClass = "motion"
	ClassPresence     DeviceClass = "presence"
	ClassProblem      DeviceClass = "problem"
	ClassRunning      DeviceClass = "running"
	ClassSafety       DeviceClass = "safety"
	ClassBatteryLow   DeviceClass = "battery_low"
)

// Cover device classes.
const (
	ClassAwning  DeviceClass = "awning"
	ClassShutter DeviceClass = "shutter"
	ClassDamper  DeviceClass = "damper"
)

// Common units of measurement.
const (
	UnitCelsius    = "°C"
	UnitPercent    = "%"
	UnitVolt       = "V"
	UnitDecibelMW  = "dBm"
	UnitMetre      = "m"
	UnitWatt       = "W"
	UnitKWh        = "kWh"
	UnitAmpere     = "A"
)

// HVACMode is the climate operating mode, shared by climate integrations.
type HVACMode string

// HVACMode constants.
const (
	HVACOff     HVACMode = "off"
	HVACHeat    HVACMode = "heat"
	HVACCool    HVACMode = "cool"
	HVACAuto    HVACMode = "auto"
	HVACDry     HVACMode = "dry"
	HVACFanOnly HVACMode = "fan_only"
)

// Cover movement states published under the "moving" state key.
const (
	CoverIdle    = "idle"
	CoverOpening = "opening"
	CoverClosing = "closing"
)
