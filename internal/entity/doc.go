// Package entity provides the entity model, persistence and state
// distribution for Hearth.
//
// An entity is a single addressable state-bearing thing exposed by an
// integration: a temperature sensor, a climate unit, a cover. Entities
// are owned by a config entry and identified within it by an
// integration-assigned unique ID, so repeated setups of the same entry
// reattach to the same stored entities.
//
// Components:
//   - Repository: SQLite persistence for entities
//   - Registry: in-memory cache over the repository with deep-copied reads
//   - Writer: applies state/availability changes, publishes retained MQTT
//     topics and fans events out to in-process listeners
//
// State flows one way: integrations write through the Writer, and
// consumers (the API WebSocket stream, export integrations, MQTT
// subscribers) observe the results.
package entity
