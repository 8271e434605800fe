// Package logging provides structured logging for the Hearth hub.
//
// It wraps the standard library's log/slog with hub-specific defaults:
// a service/version attribute pair on every record, configurable output
// format (JSON or text) and destination, and level filtering from the
// logging section of config.yaml.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("mqtt connected", "broker", host)
//
//	// Component-scoped logger
//	apiLog := log.With("component", "api")
package logging
