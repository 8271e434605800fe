package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	influx "github.com/hearth-home/hearth/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/integration"
)

// DomainName is the integration domain.
const DomainName = "influxdb"

// measurement is the single measurement all entity points land in.
const measurement = "entity_state"

// Integration exports entity state changes to an InfluxDB 2.x bucket.
type Integration struct{}

// New creates the influxdb integration.
func New() *Integration { return &Integration{} }

// Domain returns the integration domain.
func (*Integration) Domain() string { return DomainName }

// FlowHandler returns the connection config flow.
func (*Integration) FlowHandler(host *integration.Host) flow.Handler {
	return &flowHandler{host: host}
}

// Setup connects to the server and starts forwarding entity events
// through the non-blocking write API.
func (*Integration) Setup(_ context.Context, host *integration.Host, entry *configentry.ConfigEntry) (integration.Runtime, error) {
	client, err := influx.Connect(connectOptions(entry.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", configentry.ErrNotReady, err)
	}

	rt := &runtime{
		host:     host,
		client:   client,
		excluded: excludedDomains(entry.Data),
		logger:   host.Logger.With("component", "influxdb", "entry_id", entry.ID),
	}
	client.SetOnError(func(err error) {
		rt.logger.Warn("influxdb write failed", "error", err)
	})

	rt.unsubscribe = host.Writer.Subscribe(rt.onEvent)
	return rt, nil
}

func connectOptions(data configentry.Data) influx.Options {
	return influx.Options{
		URL:    data.GetString("url"),
		Token:  data.GetString("token"),
		Org:    data.GetString("org"),
		Bucket: data.GetString("bucket"),
	}
}

// excludedDomains reads the optional excluded_domains list from the
// entry data.
func excludedDomains(data configentry.Data) map[string]bool {
	excluded := make(map[string]bool)
	raw, ok := data["excluded_domains"].([]any)
	if !ok {
		return excluded
	}
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			excluded[s] = true
		}
	}
	return excluded
}

type runtime struct {
	host        *integration.Host
	client      *influx.Client
	excluded    map[string]bool
	logger      *logging.Logger
	unsubscribe func()
}

// onEvent converts a state change into a point. Availability events
// carry no new values and are skipped.
func (rt *runtime) onEvent(ev entity.Event) {
	if ev.Type != entity.EventStateChanged {
		return
	}
	e := ev.Entity

	domainTag := ""
	if rt.host.EntryDomain != nil {
		domainTag = rt.host.EntryDomain(e.EntryID)
	}
	if rt.excluded[domainTag] {
		return
	}

	fields := numericFields(e.State)
	if len(fields) == 0 {
		return
	}

	timestamp := time.Now()
	if e.StateUpdatedAt != nil {
		timestamp = *e.StateUpdatedAt
	}

	rt.client.WritePointWithTime(measurement, map[string]string{
		"domain":    domainTag,
		"platform":  string(e.Platform),
		"entity":    e.Name,
		"unique_id": e.UniqueID,
	}, fields, timestamp)
}

// numericFields keeps the numeric and boolean state values; strings
// and nested structures have no field representation.
func numericFields(state entity.State) map[string]any {
	fields := make(map[string]any)
	for key, value := range state {
		switch v := value.(type) {
		case float64, float32, int, int64, bool:
			fields[key] = v
		}
	}
	return fields
}

// HandleCommand rejects everything; the exporter owns no entities.
func (rt *runtime) HandleCommand(_ context.Context, entityID string, _ map[string]any) error {
	return fmt.Errorf("%w: influxdb export has no commandable entities (%s)", integration.ErrUnknownCommand, entityID)
}

// Close unsubscribes and flushes pending batches.
func (rt *runtime) Close(_ context.Context) error {
	rt.unsubscribe()
	return rt.client.Close()
}
