package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	One step of the radio protocol per byte-ready interrupt.
 *
 * Description:	Runs with irq held, never blocks, never allocates.
 *		The counter is the position in the current frame.
 *
 *---------------------------------------------------------------*/

/*-------------------------------------------------------------------
 *
 * Name:	HandleInterrupt
 *
 * Purpose:	Service the chip after it signalled the FIFO.
 *
 * Description:	Hook this to the falling edge of the chip's IRQ line.
 *		The attention line says whether the FIFO really wants
 *		service; if not, this was a spurious wake and nothing
 *		else happens.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) HandleInterrupt() {
	t.irq.Lock()
	defer t.irq.Unlock()

	if !t.enabled.Load() {
		return
	}

	t.selectChip()

	if !t.attention() {
		t.deselect()
		return
	}

	t.alive.Store(true)

	switch t.State() {
	case Idle:
		t.idleStep()
	case TransmittingPacket:
		t.transmitStep()
	case ReceivingPacket:
		t.receiveStep()
	case TransmitZero:
		t.write(TXBREG | 0x00)
	case TransmitOne:
		t.write(TXBREG | 0xFF)
	case TransmitAlternating:
		t.write(TXBREG | preambleByte)
	}

	t.deselect()
}

func (t *Transceiver) attention() bool {
	if t.hw.Attention == nil {
		return true
	}

	var v, err = t.hw.Attention.Value()

	return err == nil && v != 0
}

func (t *Transceiver) readFIFO() byte {
	return byte(Command(t.transfer(RXFIFOREG)) & RXDB_MASK)
}

// First byte of a frame is the payload length.
func (t *Transceiver) idleStep() {
	var length = t.readFIFO()

	if length == 0 || length > PayloadLen {
		// Out of step with the sender.  Start over.
		logger.Debug("bad length byte, resetting", "length", length)
		t.counter.Store(0)
		t.reset()
		return
	}

	var rx = t.receiving.Load()

	t.state.Store(uint32(ReceivingPacket))
	rx.PayloadSize = length
	// ECC nibbles are OR-ed in, so start from zero.
	clear(rx.Payload[:length])
	t.counter.Store(1)
}

func (t *Transceiver) transmitStep() {
	var tx = &t.txPacket
	var counter = int(t.counter.Load())

	if counter >= tx.TxFrameLen() {
		// Transmitter off, receiver on.
		var user = t.fifoUserBits()
		t.write(PMCREG | RXCEN)
		t.write(GENCREG_SET | FIFOEN)
		t.write(FIFORST_BASE | user)
		t.write(FIFORST_BASE | user | FSCF)

		t.state.Store(uint32(Idle))
		t.counter.Store(0)
		return
	}

	var b byte

	switch counter {
	case 0:
		b = preambleByte
	case 1:
		b = syncByte1
	case 2:
		b = syncByte2
	case 3:
		b = tx.PayloadSize
	case 4:
		b = byte(tx.Type)
	default:
		var pos = counter - 5
		switch {
		case pos >= tx.encodedLen():
			// Dummy byte, pushes the last payload byte out.
			b = preambleByte
		case tx.Type.ECC():
			var data = tx.Payload[pos>>1]
			if pos&1 == 1 {
				b = EncodeNibble(data >> 4)
			} else {
				b = EncodeNibble(data & 0x0F)
			}
		default:
			b = tx.Payload[pos]
		}
	}

	t.write(TXBREG | Command(b))
	t.counter.Store(uint32(counter + 1))
}

// Second byte of a frame is the type, the rest is payload.
func (t *Transceiver) receiveStep() {
	var b = t.readFIFO()
	var rx = t.receiving.Load()
	var counter = int(t.counter.Load())

	if counter == 1 {
		rx.Type = PacketType(b)
		t.counter.Store(2)
		return
	}

	var pos = counter - PacketOverhead
	if rx.Type.ECC() {
		// Low nibble first.
		if pos&1 == 1 {
			rx.Payload[pos>>1] |= DecodeNibble(b) << 4
		} else {
			rx.Payload[pos>>1] |= DecodeNibble(b) & 0x0F
		}
	} else {
		rx.Payload[pos] = b
	}

	counter++
	t.counter.Store(uint32(counter))

	if counter < rx.RxFrameLen() {
		return
	}

	// Clear the FIFO and wait for the next sync word.
	var user = t.fifoUserBits()
	t.write(FIFORST_BASE | user)
	t.write(FIFORST_BASE | user | FSCF)

	// Contents are complete.  The pointer is the only thing published.
	t.finished.Store(rx)

	var next = &t.rxA
	if rx == &t.rxA {
		next = &t.rxB
	}
	t.receiving.Store(next)

	t.state.Store(uint32(Idle))
	t.counter.Store(0)
	next.PayloadSize = 0
}
