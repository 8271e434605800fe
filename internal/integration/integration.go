package integration

import (
	"context"
	"net/http"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/infrastructure/mqtt"
)

// Integration is the contract every built-in integration implements.
//
// An integration is stateless; all per-instance state lives in the
// Runtime returned by Setup. Several config entries of the same domain
// produce several independent runtimes.
type Integration interface {
	// Domain returns the integration's unique domain name, e.g. "airtouch".
	Domain() string

	// FlowHandler returns the config flow used to create entries.
	FlowHandler(host *Host) flow.Handler

	// Setup connects to the configured device or service and registers
	// entities through the host. Error semantics steer the lifecycle:
	//   - configentry.ErrNotReady: recoverable, retried with backoff
	//   - configentry.ErrAuthFailed: credentials rejected, not retried
	//   - anything else: setup_error, not retried
	Setup(ctx context.Context, host *Host, entry *configentry.ConfigEntry) (Runtime, error)
}

// Runtime is a running instance of an integration for one config entry.
type Runtime interface {
	// HandleCommand executes a command against one of the runtime's
	// entities, e.g. {"action": "set_position", "position": 50}.
	HandleCommand(ctx context.Context, entityID string, command map[string]any) error

	// Close releases connections and stops background work.
	Close(ctx context.Context) error
}

// Host bundles the hub services integrations build on. One host is
// shared by all integrations; it carries no per-entry state.
type Host struct {
	// Logger is the hub logger; integrations derive component loggers
	// from it.
	Logger *logging.Logger

	// Entities is the entity registry for lookups and registration.
	Entities *entity.Registry

	// Writer applies entity state and availability changes.
	Writer *entity.Writer

	// MQTT is the hub's broker connection. Nil when MQTT is disabled;
	// integrations that require it (ibeacon) fail setup with ErrNotReady.
	MQTT *mqtt.Client

	// NewHTTPClient builds an HTTP client with the given timeout.
	// Cloud integrations use this instead of http.DefaultClient so
	// transport settings stay in one place.
	NewHTTPClient func(timeout time.Duration) *http.Client

	// EntryDomain resolves a config entry id to its integration
	// domain, "" when unknown. Used by exporters that tag entity data
	// by origin. May be nil.
	EntryDomain func(entryID string) string

	// ReportAuthFailed parks a running entry as auth_failed after the
	// vendor rejects its credentials mid-run (first-poll rejections go
	// through Setup's error return instead). Wired by the manager;
	// may be nil on a bare host.
	ReportAuthFailed func(entryID string)

	// HasEntries reports whether any config entry exists for a domain.
	// Single-instance flows abort on it before showing a form. Wired
	// by the manager; may be nil on a bare host.
	HasEntries func(domain string) bool
}

// DefaultHTTPClientFactory is the standard NewHTTPClient implementation.
func DefaultHTTPClientFactory(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
