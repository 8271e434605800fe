// Package mqtt provides the MQTT client for the Hearth hub.
//
// The hub uses MQTT for three things:
//   - publishing retained entity state and availability for dashboards
//     and external consumers (hearth/state/..., hearth/availability/...)
//   - receiving entity commands (hearth/command/+)
//   - ingesting BLE advertisements from gateway devices
//     (hearth/ble/+/advertisement), consumed by the ibeacon integration
//
// The client wraps paho.mqtt.golang with:
//   - Last Will and Testament on hearth/system/status for offline detection
//   - automatic reconnection with exponential backoff
//   - subscription tracking and restoration after reconnect
//   - panic-safe handler dispatch
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.PublishRetained(topics.EntityState("sensor", id), payload)
package mqtt
