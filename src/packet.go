package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Packet buffers shared by the interrupt handler and the
 *		application.
 *
 * Description:	On the air a frame looks like this:
 *
 *			0xAA		preamble
 *			0x2D 0xD4	sync
 *			size		payload length, 1..64
 *			type		PacketType
 *			payload		size bytes, or 2*size bytes for the
 *					ECC types (one Hamming symbol per nibble)
 *			dummy		pushes the last payload byte out of
 *					the transmit register
 *
 *		The chip strips preamble and sync, so the receive side
 *		counts from the size byte.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
)

// PayloadLen is the capacity of a packet payload.
const PayloadLen = 64

// Bytes on the receive side that are not counted by PayloadSize: size and type.
const PacketOverhead = 2

// Bytes on the transmit side that are not counted by PayloadSize:
// preamble, two sync bytes, size, type and the trailing dummy.
const TxPacketOverhead = 6

const (
	preambleByte = 0xAA
	syncByte1    = 0x2D
	syncByte2    = 0xD4
)

// PacketType hints at the structure of the payload.  The numeric values are
// part of the wire format.
type PacketType byte

const (
	PacketTypeSerial    PacketType = 0x01
	PacketTypeSerialECC PacketType = 0x02
	PacketTypePacket    PacketType = 0x03
	PacketTypePacketECC PacketType = 0x04
)

var ErrPayloadTooLarge = errors.New("payload larger than 64 bytes")
var ErrBadPacketType = errors.New("unknown packet type")

// ECC reports whether payload bytes travel as two Hamming symbols.
func (pt PacketType) ECC() bool {
	return pt == PacketTypeSerialECC || pt == PacketTypePacketECC
}

// Valid reports whether pt is one of the four defined types.
func (pt PacketType) Valid() bool {
	return pt >= PacketTypeSerial && pt <= PacketTypePacketECC
}

func (pt PacketType) String() string {
	switch pt {
	case PacketTypeSerial:
		return "serial"
	case PacketTypeSerialECC:
		return "serial-ecc"
	case PacketTypePacket:
		return "packet"
	case PacketTypePacketECC:
		return "packet-ecc"
	default:
		return fmt.Sprintf("type-%d", byte(pt))
	}
}

// Packet is one radio packet.  PayloadSize never exceeds PayloadLen.
type Packet struct {
	PayloadSize byte
	Type        PacketType
	Payload     [PayloadLen]byte
}

// NewPacket builds a packet from a byte slice.
func NewPacket(pt PacketType, payload []byte) (*Packet, error) {
	if len(payload) > PayloadLen {
		return nil, ErrPayloadTooLarge
	}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrBadPacketType, byte(pt))
	}

	var p = &Packet{PayloadSize: byte(len(payload)), Type: pt}
	copy(p.Payload[:], payload)

	return p, nil
}

// Bytes returns the used part of the payload.  It aliases the packet.
func (p *Packet) Bytes() []byte {
	return p.Payload[:p.PayloadSize]
}

// encodedLen is the number of payload bytes on the air.
func (p *Packet) encodedLen() int {
	if p.Type.ECC() {
		return int(p.PayloadSize) * 2
	}
	return int(p.PayloadSize)
}

// TxFrameLen is the number of bytes clocked into the transmit register for p.
func (p *Packet) TxFrameLen() int {
	return TxPacketOverhead + p.encodedLen()
}

// RxFrameLen is the number of FIFO bytes the receiver consumes for p.
func (p *Packet) RxFrameLen() int {
	return PacketOverhead + p.encodedLen()
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s[%d] % x", p.Type, p.PayloadSize, p.Bytes())
}
