// Package airtouch integrates Polyaire AirTouch ducted air conditioning
// consoles over their local TCP interface.
//
// One config entry covers one console. The coordinator polls the full
// AC and zone snapshot every 30 seconds and requests an extra refresh
// after each command. Entities per console:
//   - a climate per air conditioner (hvac and fan modes mapped through
//     the console tables in mapping.go)
//   - a climate per zone with a temperature sensor, otherwise a
//     percentage damper cover
//   - a battery-low binary sensor per zone
//
// The config flow validates the address by connecting and reading the
// console identity; the console id keys the entry.
package airtouch
