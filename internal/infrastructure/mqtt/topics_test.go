package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"entity state", topics.EntityState("sensor", "abc123"), "hearth/state/sensor/abc123"},
		{"entity availability", topics.EntityAvailability("climate", "abc123"), "hearth/availability/climate/abc123"},
		{"entity command", topics.EntityCommand("abc123"), "hearth/command/abc123"},
		{"system status", topics.SystemStatus(), "hearth/system/status"},
		{"ble advertisement", topics.BLEAdvertisement("gw-hall"), "hearth/ble/gw-hall/advertisement"},
		{"all entity states", topics.AllEntityStates(), "hearth/state/+/+"},
		{"all entity commands", topics.AllEntityCommands(), "hearth/command/+"},
		{"all ble advertisements", topics.AllBLEAdvertisements(), "hearth/ble/+/advertisement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
