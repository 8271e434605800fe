package myuplink

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
const DomainName = "myuplink"

// pollInterval respects the cloud rate limits for data points.
const pollInterval = 60 * time.Second

// httpTimeout bounds individual cloud requests.
const httpTimeout = 15 * time.Second

// Integration exposes myUplink heat pump telemetry and controls.
type Integration struct{}

// New creates the myuplink integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the client-credentials config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{host: host}
}

// trackedDevice pairs a device with the system it belongs to, for
// entity naming.
type trackedDevice struct {
	device     Device
	systemName string
}

// Setup fetches the account's systems and starts the 60 second point
// poll across every device.
func (*Integration) Setup(ctx context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	client := NewClient(
		ctx,
		entry.Data.GetString("base_url"),
		entry.Data.GetString("client_id"),
		entry.Data.GetString("client_secret"),
		host.NewHTTPClient(httpTimeout),
	)

	systems, err := client.Systems(ctx)
	if err != nil {
		return nil, wrapSetupError(err)
	}

	var devices []trackedDevice
	for _, sys := range systems {
		for _, dev := range sys.Devices {
			devices = append(devices, trackedDevice{device: dev, systemName: sys.Name})
		}
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: account has no devices", configentry.ErrNotReady)
	}

	rt := &runtime{
		host:    host,
		entry:   entry,
		client:  client,
		devices: devices,
		logger:  host.Logger.With("component", "myuplink", "entry_id", entry.ID),
	}

	rt.coord = coordinator.New(coordinator.Options[map[string][]Point]{
		Name:                 DomainName,
		Fetch:                rt.fetchPoints,
		Interval:             pollInterval,
		Logger:               host.Logger,
		OnAvailabilityChange: rt.setAllAvailability,
		OnAuthFailed:         rt.markAuthFailed,
	})
	rt.coord.AddListener(rt.applyPoints)

	if err := rt.coord.Start(ctx); err != nil {
		return nil, wrapSetupError(err)
	}
	return rt, nil
}

func wrapSetupError(err error) error {
	if errors.Is(err, configentry.ErrAuthFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
}

type runtime struct {
	host    *integration.Host
	entry   *configentry.ConfigEntry
	client  *Client
	devices []trackedDevice
	coord   *coordinator.Coordinator[map[string][]Point]
	logger  *logging.Logger
}

// fetchPoints pulls the full point list of every tracked device.
func (rt *runtime) fetchPoints(ctx context.Context) (map[string][]Point, error) {
	points := make(map[string][]Point, len(rt.devices))
	for _, td := range rt.devices {
		pts, err := rt.client.Points(ctx, td.device.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching points for %s: %w", td.device.ID, err)
		}
		points[td.device.ID] = pts
	}
	return points, nil
}

// applyPoints registers entities on first sight and writes point values.
//
// Non-writable points become sensors; enumerated ones carry the enum
// text as their state. Writable boolean points become switches.
// Writable non-boolean points have no entity platform here and are
// skipped.
func (rt *runtime) applyPoints(points map[string][]Point) {
	ctx := context.Background()

	for _, td := range rt.devices {
		info := entity.DeviceInfo{
			Manufacturer: "myUplink",
			Model:        td.device.Product.Name,
		}

		for _, p := range points[td.device.ID] {
			e := &entity.Entity{
				EntryID:  rt.entry.ID,
				UniqueID: td.device.ID + "_" + p.ParameterID,
				Name:     td.systemName + " " + p.ParameterName,
				Device:   info,
			}

			var state entity.State
			switch {
			case p.Writable && isBooleanPoint(p):
				e.Platform = entity.PlatformSwitch
				state = entity.State{"value": p.Value != 0}
			case p.Writable:
				continue
			case len(p.EnumValues) > 0:
				e.Platform = entity.PlatformSensor
				e.DeviceClass = entity.ClassEnum
				state = entity.State{"value": enumText(p)}
			default:
				e.Platform = entity.PlatformSensor
				e.Unit = p.ParameterUnit
				state = entity.State{"value": p.Value}
			}

			rt.upsertAndWrite(ctx, e, state)
		}
	}
}

// isBooleanPoint reports whether a writable point is a plain on/off
// toggle: exactly the enum values 0 and 1.
func isBooleanPoint(p Point) bool {
	if len(p.EnumValues) != 2 {
		return false
	}
	values := map[string]bool{}
	for _, ev := range p.EnumValues {
		values[ev.Value] = true
	}
	return values["0"] && values["1"]
}

// enumText resolves the point's numeric value to its enum label,
// falling back to the raw string value.
func enumText(p Point) string {
	key := fmt.Sprintf("%d", int(p.Value))
	for _, ev := range p.EnumValues {
		if ev.Value == key {
			return ev.Text
		}
	}
	return p.StrVal
}

func (rt *runtime) upsertAndWrite(ctx context.Context, e *entity.Entity, state entity.State) {
	stored, err := rt.host.Entities.Upsert(ctx, e)
	if err != nil {
		rt.logger.Warn("registering point entity", "unique_id", e.UniqueID, "error", err)
		return
	}
	if err := rt.host.Writer.SetState(ctx, stored.ID, state); err != nil {
		rt.logger.Warn("writing point state", "entity_id", stored.ID, "error", err)
		return
	}
	if err := rt.host.Writer.SetAvailability(ctx, stored.ID, true); err != nil {
		rt.logger.Warn("writing point availability", "entity_id", stored.ID, "error", err)
	}
}

func (rt *runtime) setAllAvailability(available bool) {
	ctx := context.Background()
	for _, e := range rt.host.Entities.ListByEntry(rt.entry.ID) {
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, available); err != nil {
			rt.logger.Warn("writing point availability", "entity_id", e.ID, "error", err)
		}
	}
}

// markAuthFailed runs once when a refresh reports rejected
// credentials: entities go unavailable and the entry is parked as
// auth_failed so the failure is visible outside the logs.
func (rt *runtime) markAuthFailed() {
	rt.logger.Error("myuplink credentials rejected; entry needs reconfiguration")
	rt.setAllAvailability(false)
	if rt.host.ReportAuthFailed != nil {
		rt.host.ReportAuthFailed(rt.entry.ID)
	}
}

// HandleCommand toggles writable boolean points. The cloud applies the
// write asynchronously, so the state is written optimistically and a
// refresh requested.
func (rt *runtime) HandleCommand(ctx context.Context, entityID string, command map[string]any) error {
	e, err := rt.host.Entities.Get(entityID)
	if err != nil {
		return err
	}
	if e.Platform != entity.PlatformSwitch {
		return fmt.Errorf("%w: entity %s accepts no commands", integration.ErrUnknownCommand, entityID)
	}

	// Unique ids are {deviceID}_{parameterID}; parameter ids carry no
	// underscores, so the split is on the last one.
	idx := strings.LastIndex(e.UniqueID, "_")
	if idx < 0 {
		return fmt.Errorf("%w: malformed unique id %q", integration.ErrUnknownCommand, e.UniqueID)
	}
	deviceID, parameterID := e.UniqueID[:idx], e.UniqueID[idx+1:]

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

	value := "0"
	if on {
		value = "1"
	}
	if err := rt.client.SetPoint(ctx, deviceID, parameterID, value); err != nil {
		return err
	}

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
