package mrf49xa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recordingBus logs every command word and answers FIFO reads from a queue.
type recordingBus struct {
	mu     sync.Mutex
	writes []Command
	fifo   []byte
	status uint16

	// repeat, if non-zero, is returned for FIFO reads once the queue is empty.
	repeat byte
}

func (b *recordingBus) Transfer(cmd Command) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes = append(b.writes, cmd)

	switch cmd.Register() {
	case STSREG:
		return b.status
	case RXFIFOREG:
		if len(b.fifo) == 0 {
			// High byte set to check it's masked off.
			return 0xFF00 | uint16(b.repeat)
		}
		var v = b.fifo[0]
		b.fifo = b.fifo[1:]
		return 0xFF00 | uint16(v)
	}

	return 0
}

func (b *recordingBus) push(data ...byte) {
	b.mu.Lock()
	b.fifo = append(b.fifo, data...)
	b.mu.Unlock()
}

func (b *recordingBus) take() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	var w = b.writes
	b.writes = nil

	return w
}

func txBytes(writes []Command) []byte {
	var out []byte
	for _, w := range writes {
		if w.Register() == TXBREG {
			out = append(out, byte(w&TXDB_MASK))
		}
	}
	return out
}

type testingT interface {
	require.TestingT
	Helper()
}

func newTestTransceiver(t testingT) (*Transceiver, *recordingBus) {
	t.Helper()

	var bus = &recordingBus{}
	var tr = NewTransceiver(Hardware{Bus: bus}, Options{TransmitRetry: 100 * time.Microsecond})
	require.NoError(t, tr.Initialize())
	bus.take()

	return tr, bus
}

// feed runs one interrupt per byte.
func feed(tr *Transceiver, bus *recordingBus, data ...byte) {
	for _, b := range data {
		bus.push(b)
		tr.HandleInterrupt()
	}
}

// onAir is what a receiver's FIFO would get for p: size, type, payload.
func onAir(p *Packet) []byte {
	var out = []byte{p.PayloadSize, byte(p.Type)}
	for _, b := range p.Bytes() {
		if p.Type.ECC() {
			out = append(out, EncodeNibble(b&0x0F), EncodeNibble(b>>4))
		} else {
			out = append(out, b)
		}
	}
	return out
}

func TestInitializeLeavesReceiverListening(t *testing.T) {
	var bus = &recordingBus{status: uint16(POR)}
	var tr = NewTransceiver(Hardware{Bus: bus}, Options{})
	require.NoError(t, tr.Initialize())

	var writes = bus.take()
	require.NotEmpty(t, writes)

	assert.Equal(t, FIFORST_BASE|DRSTM, writes[0])
	assert.Contains(t, writes, RXCREG|FINTDIO|RXBW_67K|DRSSIT_103db)
	assert.Equal(t, STSREG, writes[len(writes)-1], "dummy status read comes last")
	assert.Equal(t, FIFORST_BASE|DRSTM|FSCF, writes[len(writes)-2])

	assert.True(t, tr.IsIdle())
	assert.Equal(t, 0, tr.Counter())
	assert.Nil(t, tr.Receive())
}

func TestInterruptIgnoredBeforeInitialize(t *testing.T) {
	var bus = &recordingBus{}
	var tr = NewTransceiver(Hardware{Bus: bus}, Options{})

	bus.push(5)
	tr.HandleInterrupt()

	assert.Empty(t, bus.take())
	assert.Equal(t, 0, tr.Counter())
}

func TestTransmitFrame(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	var p, _ = NewPacket(PacketTypeSerial, []byte{0x11, 0x22, 0x33})
	require.NoError(t, tr.Transmit(context.Background(), p))

	assert.Equal(t, []Command{PMCREG, GENCREG_SET | TXDEN, PMCREG | TXCEN}, bus.take())
	assert.Equal(t, TransmittingPacket, tr.State())

	for i := 0; i < 20 && !tr.IsIdle(); i++ {
		tr.HandleInterrupt()
	}
	require.True(t, tr.IsIdle())

	var writes = bus.take()
	assert.Equal(t, []byte{0xAA, 0x2D, 0xD4, 3, 1, 0x11, 0x22, 0x33, 0xAA}, txBytes(writes))

	// Back to receive with the sync latch rearmed.
	assert.Equal(t, []Command{
		PMCREG | RXCEN,
		GENCREG_SET | FIFOEN,
		FIFORST_BASE | DRSTM,
		FIFORST_BASE | DRSTM | FSCF,
	}, writes[len(writes)-4:])
	assert.Equal(t, 0, tr.Counter())
}

func TestTransmitFrameECC(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	var p, _ = NewPacket(PacketTypeSerialECC, []byte{0x5A})
	require.NoError(t, tr.Transmit(context.Background(), p))
	bus.take()

	for i := 0; i < 20 && !tr.IsIdle(); i++ {
		tr.HandleInterrupt()
	}

	// Low nibble first.
	assert.Equal(t,
		[]byte{0xAA, 0x2D, 0xD4, 1, 2, EncodeNibble(0xA), EncodeNibble(0x5), 0xAA},
		txBytes(bus.take()))
}

func TestTransmitFrameLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var payload = rapid.SliceOfN(rapid.Byte(), 1, PayloadLen).Draw(rt, "payload")
		var pt = rapid.SampledFrom([]PacketType{
			PacketTypeSerial, PacketTypeSerialECC, PacketTypePacket, PacketTypePacketECC,
		}).Draw(rt, "type")

		var bus = &recordingBus{}
		var tr = NewTransceiver(Hardware{Bus: bus}, Options{})
		require.NoError(rt, tr.Initialize())

		var p, err = NewPacket(pt, payload)
		require.NoError(rt, err)
		require.NoError(rt, tr.Transmit(context.Background(), p))
		bus.take()

		var events = 0
		for !tr.IsIdle() {
			tr.HandleInterrupt()
			events++
			require.LessOrEqual(rt, events, 200)
		}

		var want = 6 + len(payload)
		if pt.ECC() {
			want = 6 + 2*len(payload)
		}

		var sent = txBytes(bus.take())
		assert.Len(rt, sent, want)
		assert.Equal(rt, want, p.TxFrameLen())
		// One more event than bytes: the last one switches back to receive.
		assert.Equal(rt, want+1, events)

		// The receive side of the frame decodes back to the payload.
		var rx, rbus = newTestTransceiver(rt)
		feed(rx, rbus, sent[3:len(sent)-1]...)
		var got = rx.Receive()
		require.NotNil(rt, got)
		assert.Equal(rt, payload, got.Bytes())
		assert.Equal(rt, pt, got.Type)
	})
}

func TestTransmitCopiesPacket(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	var p, _ = NewPacket(PacketTypeSerial, []byte{1, 2})
	require.NoError(t, tr.Transmit(context.Background(), p))
	p.Payload[0] = 9
	bus.take()

	for i := 0; i < 20 && !tr.IsIdle(); i++ {
		tr.HandleInterrupt()
	}

	assert.Equal(t, []byte{0xAA, 0x2D, 0xD4, 2, 1, 1, 2, 0xAA}, txBytes(bus.take()))
}

func TestTransmitTooLarge(t *testing.T) {
	var tr, _ = newTestTransceiver(t)

	var p = &Packet{PayloadSize: PayloadLen + 1, Type: PacketTypeSerial}
	assert.ErrorIs(t, tr.Transmit(context.Background(), p), ErrPayloadTooLarge)
	assert.True(t, tr.IsIdle())
}

func TestTransmitWaitsForIdle(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	// Start receiving a 3 byte packet.
	feed(tr, bus, 3)
	require.Equal(t, ReceivingPacket, tr.State())

	var p, _ = NewPacket(PacketTypeSerial, []byte{7})

	var ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Transmit(ctx, p), context.DeadlineExceeded)
	assert.Equal(t, ReceivingPacket, tr.State())

	// Finishing the reception lets the transmit through.
	var done = make(chan error, 1)
	go func() { done <- tr.Transmit(context.Background(), p) }()

	feed(tr, bus, 1, 'a', 'b', 'c')

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Transmit did not return after the receiver went idle")
	}
	assert.Equal(t, TransmittingPacket, tr.State())
	assert.Equal(t, []byte("abc"), tr.Receive().Bytes())
}

func TestReceivePacket(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	feed(tr, bus, 3)
	assert.Equal(t, ReceivingPacket, tr.State())
	assert.Equal(t, 1, tr.Counter())
	assert.Nil(t, tr.Receive())

	feed(tr, bus, 1, 0x11, 0x22)
	assert.Equal(t, 4, tr.Counter())
	assert.Nil(t, tr.Receive())

	feed(tr, bus, 0x33)

	assert.True(t, tr.IsIdle())
	assert.Equal(t, 0, tr.Counter())

	var writes = bus.take()
	assert.Equal(t, []Command{FIFORST_BASE | DRSTM, FIFORST_BASE | DRSTM | FSCF}, writes[len(writes)-2:])

	var got = tr.Receive()
	require.NotNil(t, got)
	assert.Equal(t, PacketTypeSerial, got.Type)
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, got.Bytes())

	assert.Nil(t, tr.Receive(), "a packet is handed out once")
}

func TestReceiveECCCorrectsSingleBitErrors(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var payload = rapid.SliceOfN(rapid.Byte(), 1, PayloadLen).Draw(rt, "payload")
		var p, _ = NewPacket(PacketTypeSerialECC, payload)

		var air = onAir(p)
		var pos = rapid.IntRange(2, len(air)-1).Draw(rt, "pos")
		var bit = rapid.IntRange(0, 7).Draw(rt, "bit")
		air[pos] ^= 1 << bit

		var tr, bus = newTestTransceiver(rt)
		feed(tr, bus, air...)

		var got = tr.Receive()
		require.NotNil(rt, got)
		assert.Equal(rt, payload, got.Bytes())
	})
}

func TestReceiveBadLengthResets(t *testing.T) {
	for _, length := range []byte{0, PayloadLen + 1, 0xFF} {
		var tr, bus = newTestTransceiver(t)

		// A good packet waiting to be picked up must survive.
		feed(tr, bus, 2, 1, 'o', 'k')
		bus.take()

		feed(tr, bus, length)

		assert.True(t, tr.IsIdle(), "length %d", length)
		assert.Equal(t, 0, tr.Counter())

		var writes = bus.take()
		require.NotEmpty(t, writes)
		assert.Equal(t, RXFIFOREG, writes[0])
		assert.Equal(t, []Command{
			PMCREG,
			FIFORST_BASE | DRSTM,
			GENCREG_SET,
			GENCREG_SET | FIFOEN,
			FIFORST_BASE | FSCF | DRSTM,
			PMCREG | RXCEN,
		}, writes[1:])

		var got = tr.Receive()
		require.NotNil(t, got)
		assert.Equal(t, []byte("ok"), got.Bytes())

		// And the other buffer still works.
		feed(tr, bus, 1, 1, 'x')
		got = tr.Receive()
		require.NotNil(t, got)
		assert.Equal(t, []byte("x"), got.Bytes())
	}
}

func TestReceiveDoubleBuffer(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	feed(tr, bus, 3, 1, 'o', 'n', 'e')
	var first = tr.Receive()
	require.NotNil(t, first)

	// The next packet fills the other buffer.
	feed(tr, bus, 3, 1, 't', 'w', 'o')
	assert.Equal(t, []byte("one"), first.Bytes())

	var second = tr.Receive()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, []byte("two"), second.Bytes())
}

func TestReceiveUnconsumedPacketIsReplaced(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	feed(tr, bus, 1, 1, 'a')
	feed(tr, bus, 1, 1, 'b')

	var got = tr.Receive()
	require.NotNil(t, got)
	assert.Equal(t, []byte("b"), got.Bytes())
	assert.Nil(t, tr.Receive())
}

func TestReceiveTakesEachPacketOnce(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	assert.Nil(t, tr.Receive())

	feed(tr, bus, 1, 1, 'a')
	var got = tr.Receive()
	require.NotNil(t, got)
	assert.Equal(t, []byte("a"), got.Bytes())
	assert.Nil(t, tr.Receive())

	// Completion between two polls.
	feed(tr, bus, 1, 1)
	assert.Nil(t, tr.Receive())
	feed(tr, bus, 'b')
	got = tr.Receive()
	require.NotNil(t, got)
	assert.Equal(t, []byte("b"), got.Bytes())
	assert.Nil(t, tr.Receive())
}

func TestReceiveConcurrentWithCompletion(t *testing.T) {
	const count = 200

	var tr, bus = newTestTransceiver(t)

	var taken = make(chan byte)
	var done = make(chan struct{})
	var seen []byte

	go func() {
		defer close(done)
		for len(seen) < count {
			var p = tr.Receive()
			if p == nil {
				continue
			}
			seen = append(seen, p.Payload[0])
			taken <- p.Payload[0]
		}
	}()

	// Each packet completes while the consumer is polling.  The consumer
	// finishes reading packet i before i+1 starts, so the buffer it holds
	// is never the one being filled.
	for i := 0; i < count; i++ {
		feed(tr, bus, 1, 1, byte(i))
		select {
		case <-taken:
		case <-time.After(2 * time.Second):
			t.Fatalf("packet %d not delivered", i)
		}
	}
	<-done

	require.Len(t, seen, count)
	for i, b := range seen {
		assert.Equal(t, byte(i), b, "packet %d delivered once, in order", i)
	}
	assert.Nil(t, tr.Receive())
}

func TestIdleAcquisitionIsAtomic(t *testing.T) {
	for i := 0; i < 20; i++ {
		// Every FIFO read looks like the start of a 5 byte packet.
		var bus = &recordingBus{repeat: 5}
		var tr = NewTransceiver(Hardware{Bus: bus}, Options{TransmitRetry: 50 * time.Microsecond})
		require.NoError(t, tr.Initialize())

		var p, _ = NewPacket(PacketTypeSerial, []byte{1})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.HandleInterrupt()
		}()

		var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
		var err = tr.Transmit(ctx, p)
		cancel()
		wg.Wait()

		switch tr.State() {
		case ReceivingPacket:
			// The interrupt won; the transmit never got the chip.
			assert.True(t, errors.Is(err, context.DeadlineExceeded), "iteration %d: %v", i, err)
			assert.Equal(t, 1, tr.Counter())
		case TransmittingPacket:
			// The transmit won; the interrupt sent the preamble, or hasn't yet.
			assert.NoError(t, err, "iteration %d", i)
			assert.LessOrEqual(t, tr.Counter(), 1)
		default:
			t.Fatalf("iteration %d: unexpected state %s", i, tr.State())
		}
	}
}

func TestIsAlive(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	assert.True(t, tr.IsAlive(), "idle counts as alive")

	var p, _ = NewPacket(PacketTypeSerial, []byte{1, 2, 3})
	require.NoError(t, tr.Transmit(context.Background(), p))

	assert.False(t, tr.IsAlive(), "busy with no interrupts")

	tr.HandleInterrupt()
	assert.True(t, tr.IsAlive())
	assert.False(t, tr.IsAlive(), "mark is cleared by the check")

	tr.Reset()
	assert.True(t, tr.IsAlive())
	bus.take()
}

func TestSpuriousInterrupt(t *testing.T) {
	var bus = &recordingBus{}
	var attention = &fakeLine{}
	var cs = &fakeLine{value: 1}
	var tr = NewTransceiver(Hardware{Bus: bus, ChipSelect: cs, Attention: attention}, Options{})
	require.NoError(t, tr.Initialize())
	bus.take()

	var p, _ = NewPacket(PacketTypeSerial, []byte{1})
	require.NoError(t, tr.Transmit(context.Background(), p))
	bus.take()

	tr.HandleInterrupt()
	assert.Empty(t, bus.take(), "no attention, no bus traffic")
	assert.Equal(t, 0, tr.Counter())
	assert.False(t, tr.IsAlive())
	assert.Equal(t, 1, cs.value, "chip deselected again")

	attention.value = 1
	tr.HandleInterrupt()
	assert.Equal(t, []byte{0xAA}, txBytes(bus.take()))
	assert.True(t, tr.IsAlive())
	assert.Equal(t, []int{0, 1, 0, 1}, cs.history[len(cs.history)-4:])
}

type fakeLine struct {
	value   int
	history []int
}

func (l *fakeLine) SetValue(v int) error {
	l.value = v
	l.history = append(l.history, v)
	return nil
}

func (l *fakeLine) Value() (int, error) {
	return l.value, nil
}

func TestSetRegisterFIFOResetKeepsOnlyUserBits(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	tr.SetRegister(FIFORSTREG | 0x00FF)
	assert.Equal(t, []Command{FIFORST_BASE | SYCHLEN | DRSTM | FSCF}, bus.take())

	tr.SetRegister(TXCREG | MODBW_30K)
	assert.Equal(t, []Command{TXCREG | MODBW_30K}, bus.take())

	// The remembered bits are used by every later FIFO rewrite.
	tr.Reset()
	assert.Contains(t, bus.take(), FIFORST_BASE|SYCHLEN|DRSTM)

	tr.SetRegister(FIFORSTREG)
	bus.take()
	feed(tr, bus, 1, 1, 'z')
	var writes = bus.take()
	assert.Equal(t, []Command{FIFORST_BASE, FIFORST_BASE | FSCF}, writes[len(writes)-2:])
}

func TestFIFORewritesKeepSensitiveResetOff(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	// A user value with DRSTM clear.
	tr.SetRegister(FIFORSTREG | SYCHLEN)
	tr.Reset()
	feed(tr, bus, 1, 1, 'z')

	var p, _ = NewPacket(PacketTypeSerial, []byte("x"))
	require.NoError(t, tr.Transmit(context.Background(), p))
	for i := 0; i <= p.TxFrameLen(); i++ {
		tr.HandleInterrupt()
	}
	require.True(t, tr.IsIdle())

	var n = 0
	for _, w := range bus.take() {
		if w.Register() == FIFORSTREG {
			assert.NotZero(t, w&DRSTM, "%s", w)
			n++
		}
	}
	assert.GreaterOrEqual(t, n, 7)
}

func TestSetFrequency(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	tr.SetFrequency(96)
	tr.SetFrequency(3904)
	assert.Empty(t, bus.take())

	tr.SetFrequency(97)
	tr.SetFrequency(3903)
	tr.SetFrequency(0xF064) // Upper bits are not part of FREQB.
	assert.Equal(t, []Command{CFSREG | 97, CFSREG | 3903, CFSREG | 100}, bus.take())
}

func TestSetBaudrate(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	tr.SetBaudrate(9600)
	tr.SetBaudrate(1200)
	tr.SetBaudrate(256000)
	assert.Equal(t, []Command{DRSREG | 35, DRSREG | DRPE | 35, DRSREG | 0}, bus.take())

	tr.SetBaudrate(0)
	tr.SetBaudrate(300)
	tr.SetBaudrate(300000)
	assert.Empty(t, bus.take())
}

func TestTestTones(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	tr.TransmitZero()
	assert.Equal(t, TransmitZero, tr.State())
	assert.Equal(t, []Command{GENCREG_SET | TXDEN, TXBREG | 0x00, PMCREG | CLKODIS | TXCEN}, bus.take())

	tr.HandleInterrupt()
	assert.Equal(t, []Command{TXBREG | 0x00}, bus.take())

	// Switching pattern only changes the state.
	tr.TransmitOne()
	assert.Empty(t, bus.take())
	tr.HandleInterrupt()
	assert.Equal(t, []Command{TXBREG | 0xFF}, bus.take())

	tr.TransmitAlternating()
	assert.Empty(t, bus.take())
	tr.HandleInterrupt()
	assert.Equal(t, []Command{TXBREG | 0xAA}, bus.take())
	assert.True(t, tr.State().TestTone())

	// A transmit ends the tone first.
	var p, _ = NewPacket(PacketTypeSerial, []byte{1})
	require.NoError(t, tr.Transmit(context.Background(), p))
	var writes = bus.take()
	assert.Equal(t, PMCREG, writes[0])
	assert.Equal(t, TransmittingPacket, tr.State())
}

func TestAlternatingToneFromIdleKeepsResetPattern(t *testing.T) {
	var tr, bus = newTestTransceiver(t)

	tr.TransmitAlternating()
	assert.Equal(t, []Command{GENCREG_SET | TXDEN, PMCREG | CLKODIS | TXCEN}, bus.take())
}

func TestReadStatus(t *testing.T) {
	var tr, bus = newTestTransceiver(t)
	bus.status = uint16(TXRXFIFO | FIFOEM)

	assert.Equal(t, uint16(TXRXFIFO|FIFOEM), tr.ReadStatus())
	assert.Equal(t, []Command{STSREG}, bus.take())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "tone-alternating", TransmitAlternating.String())
	assert.False(t, ReceivingPacket.TestTone())
	assert.True(t, TransmitOne.TestTone())
}
