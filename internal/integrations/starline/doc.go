// Package starline integrates StarLine vehicle security and remote
// start systems through the StarLine developer cloud API.
//
// One config entry covers one cloud account; every vehicle on the
// account gets sensors (battery voltage, interior and engine
// temperature, GSM signal, SIM balance), binary sensors (armed, doors,
// trunk, hood, handbrake, engine running) and two switches (remote
// engine start, pre-heater). The coordinator polls telemetry every 90
// seconds; switch commands write optimistically and request a refresh.
//
// Expired slnet sessions are re-established once per request; a second
// rejection marks the entry as needing re-authentication.
package starline
