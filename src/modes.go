package mrf49xa

import (
	"fmt"
	"strings"
)

// Mode is what the device does with its host link.  Only the two serial
// modes can be stored as the boot mode; the rest are entered by command.
type Mode byte

const (
	ModeInvalid   Mode = 0x00
	ModeSerial    Mode = 0x01 // Raw bytes, one packet per burst
	ModeSerialECC Mode = 0x02 // Same, Hamming coded on the air
	ModeCapture   Mode = 0x03 // Dump every received packet
	ModeTestAlt   Mode = 0x04
	ModeTestZero  Mode = 0x05
	ModeTestOne   Mode = 0x06
	ModeTestPing  Mode = 0x07 // Send a fixed packet periodically
)

var modeNames = map[Mode]string{
	ModeInvalid:   "invalid",
	ModeSerial:    "serial",
	ModeSerialECC: "serial-ecc",
	ModeCapture:   "capture",
	ModeTestAlt:   "test-alt",
	ModeTestZero:  "test-zero",
	ModeTestOne:   "test-one",
	ModeTestPing:  "test-ping",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode-%d", byte(m))
}

// Bootable reports whether m may be stored as the boot mode.
func (m Mode) Bootable() bool {
	return m == ModeSerial || m == ModeSerialECC
}

// PacketType is the type byte sent for data entered in mode m.
func (m Mode) PacketType() PacketType {
	if m == ModeSerialECC {
		return PacketTypeSerialECC
	}
	return PacketTypeSerial
}

// ParseMode accepts the names printed by String.
func ParseMode(s string) (Mode, error) {
	var want = strings.ToLower(strings.TrimSpace(s))

	for m, name := range modeNames {
		if m != ModeInvalid && name == want {
			return m, nil
		}
	}

	return ModeInvalid, fmt.Errorf("unknown mode %q", s)
}
