package ibeacon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth/internal/integration"
)

// DomainName is the integration domain.
const DomainName = "ibeacon"

// advertisement is the JSON payload BLE gateways publish to
// hearth/ble/{gateway}/advertisement.
type advertisement struct {
	Address          string `json:"address"`
	RSSI             int    `json:"rssi"`
	ManufacturerData string `json:"manufacturer_data"`
}

// Integration tracks iBeacons heard by MQTT BLE gateways.
type Integration struct{}

// New creates the ibeacon integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the single-confirm config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{host: host}
}

// Setup subscribes to the gateway advertisement topics and starts the
// beacon tracker. Requires MQTT; without a broker connection the entry
// is not ready.
func (*Integration) Setup(ctx context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	if host.MQTT == nil || !host.MQTT.IsConnected() {
		return nil, fmt.Errorf("%w: mqtt broker not connected", configentry.ErrNotReady)
	}

	rt := &runtime{
		host:   host,
		entry:  entry,
		logger: host.Logger.With("component", "ibeacon"),
	}
	rt.tracker = NewTracker(rt.handleUpdate, rt.handleUnavailable)

	topic := mqtt.Topics{}.AllBLEAdvertisements()
	if err := host.MQTT.Subscribe(topic, 0, rt.handleMessage); err != nil {
		return nil, fmt.Errorf("%w: subscribing to %s: %w", configentry.ErrNotReady, topic, err)
	}
	rt.topic = topic
	rt.tracker.Start()

	return rt, nil
}

type runtime struct {
	host    *integration.Host
	entry   *configentry.ConfigEntry
	logger  *logging.Logger
	tracker *Tracker
	topic   string
}

// handleMessage decodes a gateway advertisement and feeds the tracker.
func (rt *runtime) handleMessage(_ string, payload []byte) error {
	var adv advertisement
	if err := json.Unmarshal(payload, &adv); err != nil {
		rt.logger.Debug("discarding malformed advertisement", "error", err)
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(adv.ManufacturerData)
	if err != nil {
		rt.logger.Debug("discarding advertisement with bad manufacturer data", "error", err)
		return nil
	}

	rt.tracker.Process(adv.Address, adv.RSSI, data)
	return nil
}

// beaconEntities describes the four entities each beacon gets.
var beaconEntities = []struct {
	suffix      string
	name        string
	platform    entity.Platform
	deviceClass entity.DeviceClass
	unit        string
}{
	{"distance", "Distance", entity.PlatformSensor, entity.ClassDistance, entity.UnitMetre},
	{"rssi", "RSSI", entity.PlatformSensor, entity.ClassSignalStrength, entity.UnitDecibelMW},
	{"power", "Power", entity.PlatformSensor, entity.ClassSignalStrength, entity.UnitDecibelMW},
	{"presence", "Presence", entity.PlatformBinarySensor, entity.ClassPresence, ""},
}

// handleUpdate registers the beacon's entities on first sight and
// writes the fresh measurements.
func (rt *runtime) handleUpdate(u Update) {
	ctx := context.Background()
	label := fmt.Sprintf("iBeacon %d/%d %.8s", u.Frame.Major, u.Frame.Minor, u.Frame.UUID)

	states := map[string]entity.State{
		"distance": {"value": u.Distance},
		"rssi":     {"value": u.RSSI},
		"power":    {"value": int(u.Frame.TxPower)},
		"presence": {"value": true},
	}

	for _, spec := range beaconEntities {
		e, err := rt.host.Entities.Upsert(ctx, &entity.Entity{
			EntryID:     rt.entry.ID,
			UniqueID:    u.Key + "_" + spec.suffix,
			Name:        label + " " + spec.name,
			Platform:    spec.platform,
			DeviceClass: spec.deviceClass,
			Unit:        spec.unit,
			Device:      entity.DeviceInfo{Manufacturer: "Apple iBeacon"},
			Available:   true,
		})
		if err != nil {
			rt.logger.Warn("registering beacon entity", "beacon", u.Key, "error", err)
			continue
		}

		if err := rt.host.Writer.SetState(ctx, e.ID, states[spec.suffix]); err != nil {
			rt.logger.Warn("writing beacon state", "beacon", u.Key, "error", err)
			continue
		}
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, true); err != nil {
			rt.logger.Warn("writing beacon availability", "beacon", u.Key, "error", err)
		}
	}
}

// handleUnavailable marks a silent beacon's entities unavailable and
// clears presence.
func (rt *runtime) handleUnavailable(key string) {
	ctx := context.Background()

	for _, spec := range beaconEntities {
		e, err := rt.host.Entities.GetByUniqueID(rt.entry.ID, key+"_"+spec.suffix)
		if err != nil {
			continue
		}
		if spec.suffix == "presence" {
			if err := rt.host.Writer.SetState(ctx, e.ID, entity.State{"value": false}); err != nil {
				rt.logger.Warn("clearing beacon presence", "beacon", key, "error", err)
			}
		}
		if err := rt.host.Writer.SetAvailability(ctx, e.ID, false); err != nil {
			rt.logger.Warn("marking beacon unavailable", "beacon", key, "error", err)
		}
	}
	rt.logger.Info("beacon unavailable", "beacon", key)
}

// HandleCommand rejects all commands; beacons are observe-only.
func (rt *runtime) HandleCommand(_ context.Context, _ string, command map[string]any) error {
	return fmt.Errorf("%w: %v", integration.ErrUnknownCommand, command["action"])
}

// Close unsubscribes from the gateway topics and stops the tracker.
func (rt *runtime) Close(_ context.Context) error {
	rt.tracker.Stop()
	if rt.host.MQTT != nil && rt.host.MQTT.IsConnected() {
		return rt.host.MQTT.Unsubscribe(rt.topic)
	}
	return nil
}

// flowHandler is the single-step confirm flow: there is nothing to
// configure, only the subscription to enable. One entry allowed.
type flowHandler struct {
	host *integration.Host
}

func (h *flowHandler) Begin(_ context.Context) flow.Result {
	if h.host.HasEntries != nil && h.host.HasEntries(DomainName) {
		return flow.Abort("single_instance_allowed")
	}
	return flow.ShowForm(flow.Form{
		StepID: "confirm",
		Fields: []flow.Field{},
	})
}

func (h *flowHandler) Handle(_ context.Context, stepID string, _ map[string]any) flow.Result {
	if stepID != "confirm" {
		return flow.Abort("unknown_step")
	}
	// The fixed unique id still limits the integration to a single
	// entry if one races past the Begin check.
	return flow.CreateEntry("iBeacon Tracker", DomainName, configentry.Data{})
}
