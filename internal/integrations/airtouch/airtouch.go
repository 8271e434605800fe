package airtouch

import (
	"context"
	"fmt"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/coordinator"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/integration"
)

// DomainName is the integration domain.
const DomainName = "airtouch"

// pollInterval is the background poll cadence. Push frames and the
// refresh after each command deliver most changes sooner, so this is
// only the reconciliation rate.
const pollInterval = 30 * time.Second

// Integration exposes AirTouch consoles: one climate per AC, a climate
// or damper cover per zone, and battery-low binary sensors.
type Integration struct{}

// New creates the airtouch integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the host/port config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{}
}

// Setup connects to the console, subscribes to its push frames and
// starts the 30 second background poll. A console that does not answer
// is ErrNotReady; the entry retries.
func (*Integration) Setup(ctx context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	client := NewClient(entry.Data.GetString("host"), entry.Data.GetInt("port"))
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
	}

	rt := &runtime{
		host:   host,
		entry:  entry,
		client: client,
		logger: host.Logger.With("component", "airtouch", "entry_id", entry.ID),
	}

	rt.coord = coordinator.New(coordinator.Options[State]{
		Name:                 DomainName,
		Fetch:                client.FetchState,
		Interval:             pollInterval,
		Logger:               host.Logger,
		OnAvailabilityChange: rt.setAllAvailability,
	})
	rt.coord.AddListener(rt.applyState)

	// Unsolicited console pushes bypass the poll cycle so remote
	// changes land immediately.
	client.SetOnPush(rt.applyState)

	if err := rt.coord.Start(ctx); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: first console poll: %w", configentry.ErrNotReady, err)
	}
	return rt, nil
}

type runtime struct {
	host   *integration.Host
	entry  *configentry.ConfigEntry
	client *Client
	coord  *coordinator.Coordinator[State]
	logger *logging.Logger
}

// Unique id builders for the entities one console produces.
func acUniqueID(n int) string          { return fmt.Sprintf("ac_%d_climate", n) }
func zoneClimateUniqueID(n int) string { return fmt.Sprintf("zone_%d_climate", n) }
func zoneDamperUniqueID(n int) string  { return fmt.Sprintf("zone_%d_damper", n) }
func zoneBatteryUniqueID(n int) string { return fmt.Sprintf("zone_%d_battery", n) }

// applyState registers entities on first sight and writes fresh state
// for every AC and zone in the snapshot.
func (rt *runtime) applyState(s State) {
	ctx := context.Background()
	device := entity.DeviceInfo{Manufacturer: "Polyaire", Model: "AirTouch"}

	for _, ac := range s.ACs {
		e, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
			EntryID:  rt.entry.ID,
			UniqueID: acUniqueID(ac.Number),
			Name:     ac.Name,
			Platform: entity.PlatformClimate,
			Device:   device,
		})
		if err != nil {
			rt.logger.Warn("registering ac climate", "ac", ac.Number, "error", err)
			continue
		}
		rt.writeState(ctx, e.ID, entity.State{
			"hvac_mode":           string(hvacModeFor(ac)),
			"fan_mode":            FanSpeedToMode[ac.FanSpeed],
			"current_temperature": ac.Temperature,
			"target_temperature":  ac.Setpoint,
			"min_temp":            ac.MinSetpoint,
			"max_temp":            ac.MaxSetpoint,
		})
	}

	for _, zone := range s.Zones {
		rt.applyZone(ctx, zone, device)
	}
}

// applyZone writes one zone: a climate when it has a temperature
// sensor, otherwise a percentage damper cover, plus the battery sensor.
func (rt *runtime) applyZone(ctx context.Context, zone ZoneStatus, device entity.DeviceInfo) {
	if zone.HasSensor {
		e, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
			EntryID:  rt.entry.ID,
			UniqueID: zoneClimateUniqueID(zone.Number),
			Name:     zone.Name,
			Platform: entity.PlatformClimate,
			Device:   device,
		})
		if err != nil {
			rt.logger.Warn("registering zone climate", "zone", zone.Number, "error", err)
		} else {
			mode := entity.HVACOff
			if zone.Power == "on" {
				mode = entity.HVACAuto
			}
			var current float64
			if zone.Temperature != nil {
				current = *zone.Temperature
			}
			rt.writeState(ctx, e.ID, entity.State{
				"hvac_mode":           string(mode),
				"current_temperature": current,
				"target_temperature":  zone.Setpoint,
				"damper_percentage":   zone.Percentage,
			})
		}
	} else {
		e, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
			EntryID:     rt.entry.ID,
			UniqueID:    zoneDamperUniqueID(zone.Number),
			Name:        zone.Name + " Damper",
			Platform:    entity.PlatformCover,
			DeviceClass: entity.ClassDamper,
			Unit:        entity.UnitPercent,
			Device:      device,
		})
		if err != nil {
			rt.logger.Warn("registering zone damper", "zone", zone.Number, "error", err)
		} else {
			rt.writeState(ctx, e.ID, entity.State{
				"position": zone.Percentage,
				"moving":   entity.CoverIdle,
				"power":    zone.Power,
			})
		}
	}

	e, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
		EntryID:     rt.entry.ID,
		UniqueID:    zoneBatteryUniqueID(zone.Number),
		Name:        zone.Name + " Battery",
		Platform:    entity.PlatformBinarySensor,
		DeviceClass: entity.ClassBatteryLow,
		Device:      device,
	})
	if err != nil {
		rt.logger.Warn("registering zone battery sensor", "zone", zone.Number, "error", err)
		return
	}
	rt.writeState(ctx, e.ID, entity.State{"value": zone.BatteryLow})
}

func (rt *runtime) writeState(ctx context.Context, entityID string, state entity.State) {
	if err := rt.host.Writer.SetState(ctx, entityID, state); err != nil {
		rt.logger.Warn("writing entity state", "entity_id", entityID, "error", err)
		return
	}
	if err := rt.host.Writer.SetAvailability(ctx, entityID, true); err != nil {
		rt.logger.Warn("writing entity availability", "entity_id", entityID, "error", err)
	}
}

// setAllAvailability flips every entity of this entry when the console
// crosses the failure threshold or recovers.
func (rt *runtime) setAllAvailability(available bool) {
	ctx := context.Background()
	for _, e := range rt.host.Entities.ListByEntry(rt.entry.ID) {
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, available); err != nil {
			rt.logger.Warn("writing entity availability", "entity_id", e.ID, "error", err)
		}
	}
}

// HandleCommand executes climate and damper commands. The console
// confirms asynchronously, so a refresh is requested after each write.
func (rt *runtime) HandleCommand(ctx context.Context, entityID string, command map[string]any) error {
	e, err := rt.host.Entities.Get(entityID)
	if err != nil {
		return err
	}

	var n int
	switch {
	case parseUniqueID(e.UniqueID, "ac_%d_climate", &n):
		err = rt.handleACCommand(ctx, n, command)
	case parseUniqueID(e.UniqueID, "zone_%d_climate", &n):
		err = rt.handleZoneClimateCommand(ctx, n, command)
	case parseUniqueID(e.UniqueID, "zone_%d_damper", &n):
		err = rt.handleDamperCommand(ctx, n, command)
	default:
		return fmt.Errorf("%w: entity %s accepts no commands", integration.ErrUnknownCommand, entityID)
	}
	if err != nil {
		return err
	}

	rt.coord.RequestRefresh()
	return nil
}

func (rt *runtime) handleACCommand(ctx context.Context, ac int, command map[string]any) error {
	action, _ := command["action"].(string)
	switch action {
	case "set_hvac_mode":
		mode, _ := command["hvac_mode"].(string)
		if mode == string(entity.HVACOff) {
			return rt.client.SetAC(ctx, ac, "off", "", "", nil)
		}
		consoleMode, ok := HVACModeToACMode[entity.HVACMode(mode)]
		if !ok {
			return fmt.Errorf("%w: hvac mode %q", integration.ErrUnknownCommand, mode)
		}
		return rt.client.SetAC(ctx, ac, "on", consoleMode, "", nil)

	case "set_temperature":
		value, ok := command["temperature"].(float64)
		if !ok {
			return fmt.Errorf("%w: set_temperature needs a numeric temperature", integration.ErrUnknownCommand)
		}
		var minimum, maximum float64
		for _, status := range rt.coord.Data().ACs {
			if status.Number == ac {
				minimum, maximum = status.MinSetpoint, status.MaxSetpoint
			}
		}
		clamped := clampSetpoint(value, minimum, maximum)
		return rt.client.SetAC(ctx, ac, "", "", "", &clamped)

	case "set_fan_mode":
		mode, _ := command["fan_mode"].(string)
		speed, ok := FanModeToSpeed[mode]
		if !ok {
			return fmt.Errorf("%w: fan mode %q", integration.ErrUnknownCommand, mode)
		}
		return rt.client.SetAC(ctx, ac, "", "", speed, nil)

	default:
		return fmt.Errorf("%w: %q", integration.ErrUnknownCommand, action)
	}
}

func (rt *runtime) handleZoneClimateCommand(ctx context.Context, zone int, command map[string]any) error {
	action, _ := command["action"].(string)
	switch action {
	case "set_hvac_mode":
		mode, _ := command["hvac_mode"].(string)
		power := "on"
		if mode == string(entity.HVACOff) {
			power = "off"
		}
		return rt.client.SetZone(ctx, zone, power, nil, nil)

	case "set_temperature":
		value, ok := command["temperature"].(float64)
		if !ok {
			return fmt.Errorf("%w: set_temperature needs a numeric temperature", integration.ErrUnknownCommand)
		}
		return rt.client.SetZone(ctx, zone, "on", nil, &value)

	default:
		return fmt.Errorf("%w: %q", integration.ErrUnknownCommand, action)
	}
}

func (rt *runtime) handleDamperCommand(ctx context.Context, zone int, command map[string]any) error {
	action, _ := command["action"].(string)
	switch action {
	case "set_position":
		value, ok := command["position"].(float64)
		if !ok {
			return fmt.Errorf("%w: set_position needs a numeric position", integration.ErrUnknownCommand)
		}
		position := int(value)
		if position < 0 {
			position = 0
		}
		if position > 100 {
			position = 100
		}
		return rt.client.SetZone(ctx, zone, "on", &position, nil)

	case "open":
		full := 100
		return rt.client.SetZone(ctx, zone, "on", &full, nil)

	case "close":
		return rt.client.SetZone(ctx, zone, "off", nil, nil)

	default:
		return fmt.Errorf("%w: %q", integration.ErrUnknownCommand, action)
	}
}

// Close stops polling and drops the console connection.
func (rt *runtime) Close(_ context.Context) error {
	rt.coord.Stop()
	return rt.client.Close()
}

// parseUniqueID matches a unique id against a single-%d pattern.
func parseUniqueID(id, pattern string, n *int) bool {
	matched, err := fmt.Sscanf(id, pattern, n)
	return err == nil && matched == 1
}
