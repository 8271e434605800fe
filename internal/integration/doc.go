// Package integration defines the contract built-in integrations
// implement and the manager that runs them.
//
// An Integration turns a config entry into a Runtime: a live,
// connected instance owning entities and handling commands. The
// Manager drives the lifecycle around it: setup at startup and after
// config flows, backoff retries when devices are not ready, parking
// entries whose credentials fail, and routing commands (REST or MQTT)
// to the right runtime.
//
// The Host carries the shared hub services (logger, entity registry
// and writer, MQTT, HTTP client factory) so integrations stay free of
// global state.
package integration
