// Hearth - Home Integration Hub
//
// This is the main entry point for the Hearth hub daemon. Hearth
// connects third-party devices and cloud services to a single entity
// model exposed over a REST/WebSocket API and MQTT:
//   - Built-in integrations (AirTouch, iBeacon, StarLine, myUplink,
//     WMS WebControl pro, InfluxDB export)
//   - Config-flow driven onboarding, credentials stored per entry
//   - SQLite persistence with embedded migrations
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearth-home/hearth/migrations"

	"github.com/hearth-home/hearth/internal/api"
	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/config"
	"github.com/hearth-home/hearth/internal/infrastructure/database"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth/internal/integration"
	"github.com/hearth-home/hearth/internal/integrations/airtouch"
	"github.com/hearth-home/hearth/internal/integrations/ibeacon"
	"github.com/hearth-home/hearth/internal/integrations/influxdb"
	"github.com/hearth-home/hearth/internal/integrations/myuplink"
	"github.com/hearth-home/hearth/internal/integrations/starline"
	"github.com/hearth-home/hearth/internal/integrations/wmspro"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Config entry store
	entries, err := configentry.NewStore(ctx, configentry.NewSQLiteRepository(db.DB))
	if err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}
	log.Info("config entries loaded", "entries", len(entries.List()))

	// Entity registry
	entities, err := entity.NewRegistry(ctx, entity.NewSQLiteRepository(db.DB))
	if err != nil {
		return fmt.Errorf("loading entity registry: %w", err)
	}
	log.Info("entity registry initialised", "entities", entities.Count())

	// Connect to MQTT broker. An empty broker host disables MQTT:
	// entity state stays available over the REST/WebSocket API, and
	// integrations that require the broker park with not_ready.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Broker.Host != "" {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled (no broker host configured)")
	}

	// Entity writer publishes state changes to MQTT (when connected)
	// and fans events out to in-process listeners.
	var publisher entity.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	writer := entity.NewWriter(entities, publisher, log)

	// Built-in integrations
	registry := integration.NewRegistry()
	registry.Register(airtouch.New())
	registry.Register(ibeacon.New())
	registry.Register(starline.New())
	registry.Register(myuplink.New())
	registry.Register(wmspro.New())
	registry.Register(influxdb.New())
	log.Info("integrations registered", "domains", registry.Domains())

	host := &integration.Host{
		Logger:        log,
		Entities:      entities,
		Writer:        writer,
		MQTT:          mqttClient,
		NewHTTPClient: integration.DefaultHTTPClientFactory,
		EntryDomain: func(entryID string) string {
			e, err := entries.Get(entryID)
			if err != nil {
				return ""
			}
			return e.Domain
		},
	}

	manager := integration.NewManager(entries, registry, host)
	defer func() {
		log.Info("unloading integrations")
		manager.Shutdown(context.Background())
	}()

	// Set up every stored config entry. Failures are per-entry; the
	// hub keeps running and retries entries that report not_ready.
	manager.SetupAll(ctx)

	// Commands arrive over MQTT as well as the REST API.
	if mqttClient != nil {
		if bindErr := manager.BindCommandTopic(mqttClient); bindErr != nil {
			return fmt.Errorf("binding MQTT command topic: %w", bindErr)
		}
	}

	// Config flows for onboarding new entries.
	flows := flow.NewManager(log)
	for _, domain := range registry.Domains() {
		i, getErr := registry.Get(domain)
		if getErr != nil {
			continue
		}
		if h := i.FlowHandler(host); h != nil {
			flows.Register(domain, h)
		}
	}

	// HTTP/WebSocket API
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Entities:     entities,
		Writer:       writer,
		Entries:      entries,
		Integrations: registry,
		Manager:      manager,
		Flows:        flows,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Integration runtimes
	// 3. MQTT (if connected)
	// 4. Database

	log.Info("Hearth stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
