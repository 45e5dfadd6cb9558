package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Packets to and from a plain byte stream.
 *
 * Description:	On the host link in the serial modes each packet is
 *
 *			size	1..64
 *			type	ignored, replaced according to the mode
 *			payload	size bytes
 *
 *		Received packets go back to the host in the same form,
 *		with the type they arrived with.
 *
 *		There is no resynchronisation beyond dropping length
 *		bytes that can't be right; the host is expected to
 *		send whole packets.
 *
 *---------------------------------------------------------------*/

// Framer collects host bytes into packets.
type Framer struct {
	// Mode picks the packet type: ModeSerialECC sends Hamming coded,
	// everything else sends raw.
	Mode Mode

	// Send is called for each complete packet.  The packet is reused
	// afterwards, so Send must copy it (Transceiver.Transmit does).
	Send func(p *Packet) error

	counter int
	packet  Packet
}

/*-------------------------------------------------------------------
 *
 * Name:	ByteReceived
 *
 * Purpose:	Take one byte from the host.
 *
 * Returns:	Whatever Send returned, when this byte completed a packet.
 *
 *--------------------------------------------------------------------*/

func (f *Framer) ByteReceived(b byte) error {
	switch f.counter {
	case 0:
		if b == 0 || b > PayloadLen {
			logger.Debug("framer dropped length byte", "length", b)
			return nil
		}
		f.packet.PayloadSize = b
	case 1:
		f.packet.Type = f.Mode.PacketType()
	default:
		f.packet.Payload[f.counter-PacketOverhead] = b
	}

	f.counter++

	if f.counter < int(f.packet.PayloadSize)+PacketOverhead {
		return nil
	}

	f.counter = 0

	return f.Send(&f.packet)
}

// Write feeds every byte of data through ByteReceived.  It stops at the
// first Send error.
func (f *Framer) Write(data []byte) (int, error) {
	for i, b := range data {
		if err := f.ByteReceived(b); err != nil {
			return i + 1, err
		}
	}

	return len(data), nil
}

// Pending is the number of bytes of an incomplete packet held so far.
func (f *Framer) Pending() int {
	return f.counter
}

// AppendPacket appends p in host link form to dst.
func AppendPacket(dst []byte, p *Packet) []byte {
	dst = append(dst, p.PayloadSize, byte(p.Type))
	return append(dst, p.Bytes()...)
}
