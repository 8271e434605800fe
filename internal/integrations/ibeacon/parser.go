package ibeacon

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Apple iBeacon manufacturer frame layout.
const (
	appleCompanyID = 0x004C
	frameType      = 0x02
	frameLength    = 0x15

	// frameSize is the full manufacturer data size: 2 bytes company id,
	// type, length, 16 byte proximity UUID, major, minor, tx power.
	frameSize = 25
)

// ErrNotIBeacon is returned for manufacturer data that is not an Apple
// iBeacon frame. Advertisements from other BLE devices are expected on
// the gateway topics and are simply skipped.
var ErrNotIBeacon = errors.New("ibeacon: not an ibeacon frame")

// Frame is a decoded iBeacon advertisement.
type Frame struct {
	// UUID is the proximity UUID in canonical 8-4-4-4-12 form.
	UUID string

	// Major and Minor subdivide beacons sharing a UUID.
	Major uint16
	Minor uint16

	// TxPower is the calibrated signal strength at one metre, in dBm.
	// Used together with the received RSSI to estimate distance.
	TxPower int8
}

// Key returns the identity triple as "uuid_major_minor". Beacons are
// tracked by this key, not by MAC address: many beacons rotate their
// address while keeping the triple stable.
func (f *Frame) Key() string {
	return fmt.Sprintf("%s_%d_%d", f.UUID, f.Major, f.Minor)
}

// ParseFrame decodes Apple iBeacon manufacturer data.
//
// Layout (little-endian company id, rest big-endian):
//
//	[0:2]   company id (0x004C)
//	[2]     frame type (0x02)
//	[3]     payload length (0x15)
//	[4:20]  proximity UUID
//	[20:22] major
//	[22:24] minor
//	[24]    calibrated tx power (signed)
//
// Returns ErrNotIBeacon when the data is a different vendor or frame type.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < frameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotIBeacon, len(data))
	}
	if binary.LittleEndian.Uint16(data[0:2]) != appleCompanyID {
		return nil, fmt.Errorf("%w: company id %#04x", ErrNotIBeacon, binary.LittleEndian.Uint16(data[0:2]))
	}
	if data[2] != frameType || data[3] != frameLength {
		return nil, fmt.Errorf("%w: frame type %#02x length %#02x", ErrNotIBeacon, data[2], data[3])
	}

	u := data[4:20]
	return &Frame{
		UUID:    fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16]),
		Major:   binary.BigEndian.Uint16(data[20:22]),
		Minor:   binary.BigEndian.Uint16(data[22:24]),
		TxPower: int8(data[24]),
	}, nil
}
