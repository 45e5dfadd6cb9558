package mrf49xa

/*-------------------------------------------------------------
 *
 * Purpose:	(8,4) extended Hamming code used to protect payload nibbles
 *		on the air and the boot mode byte in non-volatile storage.
 *
 * Description:	Each symbol carries the nibble in bits 0-3, three parity
 *		bits in bits 4-6 and an overall parity bit in bit 7.
 *
 *			p0 = d0 ^ d1 ^ d3
 *			p1 = d0 ^ d2 ^ d3
 *			p2 = d1 ^ d2 ^ d3
 *			p3 = parity of bits 0-6
 *
 *		Any two symbols differ in at least 4 bits so a single
 *		flipped bit is always corrected.  Two flipped bits are
 *		noticed but not reported; the received data bits are
 *		returned as they are.
 *
 *--------------------------------------------------------------*/

var hammingEncode = [16]byte{
	0x00, 0xb1, 0xd2, 0x63, 0xe4, 0x55, 0x36, 0x87,
	0x78, 0xc9, 0xaa, 0x1b, 0x9c, 0x2d, 0x4e, 0xff,
}

// Maps a non-zero syndrome to the data bit it blames.
// Syndromes naming a single parity bit leave the data alone.
var hammingSyndromeBit = [8]byte{
	0b000: 0,
	0b001: 0,
	0b010: 0,
	0b011: 1 << 0,
	0b100: 0,
	0b101: 1 << 1,
	0b110: 1 << 2,
	0b111: 1 << 3,
}

// EncodeNibble returns the 8-bit symbol for the low 4 bits of nibble.
func EncodeNibble(nibble byte) byte {
	return hammingEncode[nibble&0x0f]
}

/*-------------------------------------------------------------
 *
 * Name:	DecodeNibble
 *
 * Purpose:	Recover a nibble from a received symbol.
 *
 * Inputs:	symbol	- 8 bits as received, possibly with errors.
 *
 * Returns:	4-bit value.  Best effort when two or more bits are bad.
 *
 *--------------------------------------------------------------*/

func DecodeNibble(symbol byte) byte {
	var data = symbol & 0x0f
	var syndrome = ((symbol >> 4) ^ (hammingEncode[data] >> 4)) & 0x07

	if parity8(symbol) == 0 {
		// Either no error or a double error.  Nothing we can fix.
		return data
	}

	return data ^ hammingSyndromeBit[syndrome]
}

// EncodeByte protects both nibbles of b, high nibble in the high byte.
func EncodeByte(b byte) uint16 {
	return uint16(EncodeNibble(b>>4))<<8 | uint16(EncodeNibble(b&0x0f))
}

// DecodeByte is the inverse of EncodeByte.
func DecodeByte(symbols uint16) byte {
	return DecodeNibble(byte(symbols>>8))<<4 | DecodeNibble(byte(symbols))
}

func parity8(b byte) byte {
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	return b & 1
}
