// Package ibeacon tracks Apple iBeacons heard by MQTT BLE gateways.
//
// Gateways (ESP32 scanners and the like) publish raw advertisements to
// hearth/ble/{gateway}/advertisement. The integration parses Apple
// manufacturer frames, tracks beacons by their uuid/major/minor triple
// across rotating MAC addresses, estimates distance from calibrated
// power and RSSI, and exposes distance/rssi/power sensors plus a
// presence binary sensor per beacon.
//
// Addresses that emit more than ten distinct triples are rotating-id
// devices (phones), not beacons; they are dropped entirely. A beacon
// unheard for three minutes goes unavailable until it is heard again.
package ibeacon
