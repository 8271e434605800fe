// Package influxdb exports entity state changes to an InfluxDB 2.x
// bucket.
//
// The runtime subscribes to the entity event bus and converts every
// state change into one point in the entity_state measurement, tagged
// with the owning integration domain, platform, entity name and unique
// id. Only numeric and boolean state values become fields; string
// states are skipped. Writes go through the client's non-blocking
// batch API, so a slow or absent server never stalls state updates.
//
// This is an export sink, not a recorder: it runs no queries and keeps
// no statistics.
package influxdb
