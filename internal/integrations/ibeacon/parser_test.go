package ibeacon

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildFrame assembles valid iBeacon manufacturer data for tests.
func buildFrame(uuid [16]byte, major, minor uint16, txPower int8) []byte {
	data := make([]byte, frameSize)
	binary.LittleEndian.PutUint16(data[0:2], appleCompanyID)
	data[2] = frameType
	data[3] = frameLength
	copy(data[4:20], uuid[:])
	binary.BigEndian.PutUint16(data[20:22], major)
	binary.BigEndian.PutUint16(data[22:24], minor)
	data[24] = byte(txPower)
	return data
}

var testUUID = [16]byte{
	0xf7, 0x82, 0x6d, 0xa6, 0x4f, 0xa2, 0x4e, 0x98,
	0x80, 0x24, 0xbc, 0x5b, 0x71, 0xe0, 0x89, 0x3e,
}

func TestParseFrame(t *testing.T) {
	frame, err := ParseFrame(buildFrame(testUUID, 100, 40, -59))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}

	if frame.UUID != "f7826da6-4fa2-4e98-8024-bc5b71e0893e" {
		t.Errorf("UUID = %q, want f7826da6-4fa2-4e98-8024-bc5b71e0893e", frame.UUID)
	}
	if frame.Major != 100 || frame.Minor != 40 {
		t.Errorf("Major/Minor = %d/%d, want 100/40", frame.Major, frame.Minor)
	}
	if frame.TxPower != -59 {
		t.Errorf("TxPower = %d, want -59", frame.TxPower)
	}
	if frame.Key() != "f7826da6-4fa2-4e98-8024-bc5b71e0893e_100_40" {
		t.Errorf("Key() = %q", frame.Key())
	}
}

func TestParseFrame_Rejections(t *testing.T) {
	valid := buildFrame(testUUID, 1, 1, -59)

	wrongCompany := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(wrongCompany[0:2], 0x0075) // Samsung

	wrongType := append([]byte(nil), valid...)
	wrongType[2] = 0x15

	wrongLength := append([]byte(nil), valid...)
	wrongLength[3] = 0x14

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:10]},
		{"wrong company", wrongCompany},
		{"wrong frame type", wrongType},
		{"wrong length byte", wrongLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.data); !errors.Is(err, ErrNotIBeacon) {
				t.Errorf("ParseFrame() error = %v, want ErrNotIBeacon", err)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name    string
		txPower int8
		rssi    int
		want    float64
	}{
		{"at calibration point", -59, -59, 1.0},
		{"further away", -59, -79, 10.0},
		{"closer", -59, -39, 0.1},
		{"half decade", -59, -69, 3.16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.txPower, tt.rssi); got != tt.want {
				t.Errorf("Distance(%d, %d) = %v, want %v", tt.txPower, tt.rssi, got, tt.want)
			}
		})
	}
}
