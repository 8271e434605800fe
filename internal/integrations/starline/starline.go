package starline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/coordinator"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/integration"
)

// DomainName is the integration domain.
const DomainName = "starline"

// pollInterval matches the cloud's rate expectations for telemetry.
const pollInterval = 90 * time.Second

// httpTimeout bounds individual cloud requests.
const httpTimeout = 15 * time.Second

// Integration exposes StarLine vehicle telemetry and remote start.
type Integration struct{}

// New creates the starline integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the credentials config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{host: host}
}

// Setup logs in and starts the 90 second telemetry poll.
func (*Integration) Setup(ctx context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	client := NewClient(
		entry.Data.GetString("base_url"),
		host.NewHTTPClient(httpTimeout),
		Credentials{
			AppID:     entry.Data.GetString("app_id"),
			AppSecret: entry.Data.GetString("app_secret"),
			Username:  entry.Data.GetString("username"),
			Password:  entry.Data.GetString("password"),
		},
	)

	if _, err := client.Login(ctx); err != nil {
		return nil, wrapSetupError(err)
	}

	rt := &runtime{
		host:   host,
		entry:  entry,
		client: client,
		logger: host.Logger.With("component", "starline", "entry_id", entry.ID),
	}

	rt.coord = coordinator.New(coordinator.Options[[]Device]{
		Name:                 DomainName,
		Fetch:                client.Devices,
		Interval:             pollInterval,
		Logger:               host.Logger,
		OnAvailabilityChange: rt.setAllAvailability,
		OnAuthFailed:         rt.markAuthFailed,
	})
	rt.coord.AddListener(rt.applyDevices)

	if err := rt.coord.Start(ctx); err != nil {
		return nil, wrapSetupError(err)
	}
	return rt, nil
}

// wrapSetupError keeps auth failures as-is and turns everything else
// into a retryable not-ready.
func wrapSetupError(err error) error {
	if errors.Is(err, configentry.ErrAuthFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
}

type runtime struct {
	host   *integration.Host
	entry  *configentry.ConfigEntry
	client *Client
	coord  *coordinator.Coordinator[[]Device]
	logger *logging.Logger
}

// vehicleSensors describes the numeric sensors per vehicle.
var vehicleSensors = []struct {
	suffix      string
	name        string
	deviceClass entity.DeviceClass
	unit        string
	value       func(Device) any
}{
	{"battery", "Battery", entity.ClassVoltage, entity.UnitVolt, func(d Device) any { return d.Battery }},
	{"interior_temp", "Interior Temperature", entity.ClassTemperature, entity.UnitCelsius, func(d Device) any { return d.InteriorTmp }},
	{"engine_temp", "Engine Temperature", entity.ClassTemperature, entity.UnitCelsius, func(d Device) any { return d.EngineTmp }},
	{"gsm_level", "GSM Signal", entity.ClassSignalStrength, "", func(d Device) any { return d.GSMLevel }},
	{"balance", "SIM Balance", entity.ClassMonetary, "", func(d Device) any { return d.Balance.Value }},
}

// vehicleBinarySensors describes the contact and alarm states.
var vehicleBinarySensors = []struct {
	suffix      string
	name        string
	deviceClass entity.DeviceClass
	value       func(Device) bool
}{
	{"armed", "Armed", entity.ClassLock, func(d Device) bool { return d.State.Armed }},
	{"doors", "Doors", entity.ClassDoor, func(d Device) bool { return d.State.Doors }},
	{"trunk", "Trunk", entity.ClassDoor, func(d Device) bool { return d.State.Trunk }},
	{"hood", "Hood", entity.ClassDoor, func(d Device) bool { return d.State.Hood }},
	{"handbrake", "Handbrake", entity.ClassSafety, func(d Device) bool { return d.State.Handbrake }},
	{"running", "Engine Running", entity.ClassRunning, func(d Device) bool { return d.State.Running }},
}

// vehicleSwitches describes the controllable relays.
var vehicleSwitches = []struct {
	suffix string
	name   string
	kind   string // wire command type
	value  func(Device) bool
}{
	{"engine", "Engine", "ign", func(d Device) bool { return d.State.Ignition }},
	{"heater", "Heater", "webasto", func(d Device) bool { return d.State.Webasto }},
}

// applyDevices registers entities on first sight and writes telemetry.
func (rt *runtime) applyDevices(devices []Device) {
	ctx := context.Background()

	for _, d := range devices {
		info := entity.DeviceInfo{Manufacturer: "StarLine", Model: d.DeviceID}

		for _, spec := range vehicleSensors {
			rt.upsertAndWrite(ctx, &entity.Entity{
				EntryID:     rt.entry.ID,
				UniqueID:    d.DeviceID + "_" + spec.suffix,
				Name:        d.Alias + " " + spec.name,
				Platform:    entity.PlatformSensor,
				DeviceClass: spec.deviceClass,
				Unit:        spec.unit,
				Device:      info,
			}, entity.State{"value": spec.value(d)})
		}

		for _, spec := range vehicleBinarySensors {
			rt.upsertAndWrite(ctx, &entity.Entity{
				EntryID:     rt.entry.ID,
				UniqueID:    d.DeviceID + "_" + spec.suffix,
				Name:        d.Alias + " " + spec.name,
				Platform:    entity.PlatformBinarySensor,
				DeviceClass: spec.deviceClass,
				Device:      info,
			}, entity.State{"value": spec.value(d)})
		}

		for _, spec := range vehicleSwitches {
			rt.upsertAndWrite(ctx, &entity.Entity{
				EntryID:  rt.entry.ID,
				UniqueID: d.DeviceID + "_" + spec.suffix,
				Name:     d.Alias + " " + spec.name,
				Platform: entity.PlatformSwitch,
				Device:   info,
			}, entity.State{"value": spec.value(d)})
		}
	}
}

func (rt *runtime) upsertAndWrite(ctx context.Context, e *entity.Entity, state entity.State) {
	stored, err := rt.host.Entities.Upsert(ctx, e)
	if err != nil {
		rt.logger.Warn("registering vehicle entity", "unique_id", e.UniqueID, "error", err)
		return
	}
	if err := rt.host.Writer.SetState(ctx, stored.ID, state); err != nil {
		rt.logger.Warn("writing vehicle state", "entity_id", stored.ID, "error", err)
		return
	}
	if err := rt.host.Writer.SetAvailability(ctx, stored.ID, true); err != nil {
		rt.logger.Warn("writing vehicle availability", "entity_id", stored.ID, "error", err)
	}
}

func (rt *runtime) setAllAvailability(available bool) {
	ctx := context.Background()
	for _, e := range rt.host.Entities.ListByEntry(rt.entry.ID) {
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, available); err != nil {
			rt.logger.Warn("writing vehicle availability", "entity_id", e.ID, "error", err)
		}
	}
}

// markAuthFailed runs once when a refresh reports rejected
// credentials: entities go unavailable and the entry is parked as
// auth_failed so the failure is visible outside the logs.
func (rt *runtime) markAuthFailed() {
	rt.logger.Error("starline credentials rejected; entry needs reconfiguration")
	rt.setAllAvailability(false)
	if rt.host.ReportAuthFailed != nil {
		rt.host.ReportAuthFailed(rt.entry.ID)
	}
}

// HandleCommand drives the engine and heater switches. The relay takes
// seconds to confirm, so the state is written optimistically and a
// refresh requested.
func (rt *runtime) HandleCommand(ctx context.Context, entityID string, command map[string]any) error {
	e, err := rt.host.Entities.Get(entityID)
	if err != nil {
		return err
	}

	var kind, deviceID string
	for _, spec := range vehicleSwitches {
		if strings.HasSuffix(e.UniqueID, "_"+spec.suffix) {
			kind = spec.kind
			deviceID = strings.TrimSuffix(e.UniqueID, "_"+spec.suffix)
			break
		}
	}
	if kind == "" {
		return fmt.Errorf("%w: entity %s accepts no commands", integration.ErrUnknownCommand, entityID)
	}

	action, _ := command["action"].(string)
	var on bool
	switch action {
	case "turn_on":
		on = true
	case "turn_off":
		on = false
	default:
		return fmt.Errorf("%w: %q", integration.ErrUnknownCommand, action)
	}

	if err := rt.client.SetState(ctx, deviceID, kind, on); err != nil {
		return err
	}

	// Optimistic: reflect the requested state now, verify on refresh.
	if err := rt.host.Writer.SetState(ctx, entityID, entity.State{"value": on}); err != nil {
		rt.logger.Warn("writing optimistic switch state", "entity_id", entityID, "error", err)
	}
	rt.coord.RequestRefresh()
	return nil
}

// Close stops polling.
func (rt *runtime) Close(_ context.Context) error {
	rt.coord.Stop()
	return nil
}
