package airtouch

import "github.com/hearth-home/hearth/internal/entity"

// Console AC modes as reported on the wire.
const (
	acModeAuto     = "AUTO"
	acModeHeat     = "HEAT"
	acModeDry      = "DRY"
	acModeFan      = "FAN"
	acModeCool     = "COOL"
	acModeAutoHeat = "AUTO_HEAT"
	acModeAutoCool = "AUTO_COOL"
)

// ACModeToHVACMode maps console AC modes to hub HVAC modes.
// The console reports which half of an auto cycle it is in
// (AUTO_HEAT/AUTO_COOL); both present as auto.
var ACModeToHVACMode = map[string]entity.HVACMode{
	acModeAuto:     entity.HVACAuto,
	acModeHeat:     entity.HVACHeat,
	acModeDry:      entity.HVACDry,
	acModeFan:      entity.HVACFanOnly,
	acModeCool:     entity.HVACCool,
	acModeAutoHeat: entity.HVACAuto,
	acModeAutoCool: entity.HVACAuto,
}

// HVACModeToACMode is the reverse mapping used for commands.
// Off is not here: it is a power state, not a mode.
var HVACModeToACMode = map[entity.HVACMode]string{
	entity.HVACAuto:    acModeAuto,
	entity.HVACHeat:    acModeHeat,
	entity.HVACDry:     acModeDry,
	entity.HVACFanOnly: acModeFan,
	entity.HVACCool:    acModeCool,
}

// Console fan speeds as reported on the wire.
const (
	fanSpeedQuiet    = "QUIET"
	fanSpeedLow      = "LOW"
	fanSpeedMedium   = "MEDIUM"
	fanSpeedHigh     = "HIGH"
	fanSpeedPowerful = "POWERFUL"
	fanSpeedTurbo    = "TURBO"
	fanSpeedAuto     = "AUTO"
)

// FanSpeedToMode maps console fan speeds to hub fan modes.
var FanSpeedToMode = map[string]string{
	fanSpeedQuiet:    "quiet",
	fanSpeedLow:      "low",
	fanSpeedMedium:   "medium",
	fanSpeedHigh:     "high",
	fanSpeedPowerful: "powerful",
	fanSpeedTurbo:    "turbo",
	fanSpeedAuto:     "auto",
}

// FanModeToSpeed is the reverse mapping used for commands.
var FanModeToSpeed = map[string]string{
	"quiet":    fanSpeedQuiet,
	"low":      fanSpeedLow,
	"medium":   fanSpeedMedium,
	"high":     fanSpeedHigh,
	"powerful": fanSpeedPowerful,
	"turbo":    fanSpeedTurbo,
	"auto":     fanSpeedAuto,
}

// hvacModeFor derives the hub HVAC mode from an AC status: off when
// powered down, otherwise the mapped console mode.
func hvacModeFor(ac ACStatus) entity.HVACMode {
	if ac.Power != "on" {
		return entity.HVACOff
	}
	if mode, ok := ACModeToHVACMode[ac.Mode]; ok {
		return mode
	}
	return entity.HVACAuto
}

// clampSetpoint bounds a requested temperature to the console limits.
func clampSetpoint(value, minimum, maximum float64) float64 {
	if minimum != 0 && value < minimum {
		return minimum
	}
	if maximum != 0 && value > maximum {
		return maximum
	}
	return value
}
