package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT namespace.
//
// All topics use the flat scheme: hearth/{category}/{...}
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"

	// TopicPrefixBLE is the base for BLE gateway ingestion topics.
	TopicPrefixBLE = "hearth/ble"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("sensor", "b4f1...")
//	// Returns: "hearth/state/sensor/b4f1..."
type Topics struct{}

// EntityState returns the retained topic for entity state publication.
//
// Example: hearth/state/climate/7f3a9c10
func (Topics) EntityState(platform, entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, platform, entityID)
}

// EntityAvailability returns the retained topic for entity availability.
//
// Example: hearth/availability/sensor/7f3a9c10
func (Topics) EntityAvailability(platform, entityID string) string {
	return fmt.Sprintf("%s/availability/%s/%s", TopicPrefix, platform, entityID)
}

// EntityCommand returns the topic for commands addressed to an entity.
//
// Example: hearth/command/7f3a9c10
func (Topics) EntityCommand(entityID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, entityID)
}

// SystemStatus returns the hub status topic (LWT target).
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// BLEAdvertisement returns the advertisement topic for a specific BLE gateway.
//
// Example: hearth/ble/gw-hallway/advertisement
func (Topics) BLEAdvertisement(gatewayID string) string {
	return fmt.Sprintf("%s/%s/advertisement", TopicPrefixBLE, gatewayID)
}

// AllEntityStates returns a pattern matching all entity state topics.
//
// Pattern: hearth/state/+/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllEntityCommands returns a pattern matching all entity command topics.
//
// Pattern: hearth/command/+
func (Topics) AllEntityCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllBLEAdvertisements returns a pattern matching advertisements from every gateway.
//
// Pattern: hearth/ble/+/advertisement
func (Topics) AllBLEAdvertisements() string {
	return fmt.Sprintf("%s/+/advertisement", TopicPrefixBLE)
}
