package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Packet interface to an MRF49XA transceiver.
 *
 * Description:	The chip raises its interrupt line once per byte while
 *		it is sending or receiving.  HandleInterrupt does one
 *		step of the protocol for each of those events (isr.go).
 *		Everything else here is called by the application.
 *
 *		There are two receive buffers.  The interrupt handler
 *		fills one while the other holds the last finished packet
 *		for the application.  If the application does not pick
 *		up a finished packet before the next one completes, the
 *		older one is lost.
 *
 *		irq stands in for the interrupt mask.  The interrupt
 *		handler holds it for its whole run, so holding it from
 *		application code keeps the handler out.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State is the protocol state.  The test tone states share the 0xC0 bits.
type State uint32

const (
	Idle                State = 0x00 // Listening, nothing heard yet
	TransmittingPacket  State = 0x01
	ReceivingPacket     State = 0x02
	TransmitZero        State = 0x40 // All '0'
	TransmitOne         State = 0x80 // All '1'
	TransmitAlternating State = 0xC0 // '01' repeated

	testToneMask State = 0xC0
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TransmittingPacket:
		return "transmitting"
	case ReceivingPacket:
		return "receiving"
	case TransmitZero:
		return "tone-zero"
	case TransmitOne:
		return "tone-one"
	case TransmitAlternating:
		return "tone-alternating"
	default:
		return "unknown"
	}
}

// TestTone reports whether s is one of the spectrum test states.
func (s State) TestTone() bool {
	return s&testToneMask != 0
}

// Options tune the blocking behaviour of Transmit and Initialize.
type Options struct {
	// TransmitRetry is the sleep between attempts to find the chip idle.
	// Roughly one byte period.
	TransmitRetry time.Duration

	// AntennaTune is how long the transmitter runs during Initialize
	// while the oscillator settles.
	AntennaTune time.Duration
}

// DefaultOptions match the timing of the original firmware at 9600 bps.
var DefaultOptions = Options{
	TransmitRetry: time.Millisecond,
	AntennaTune:   5 * time.Millisecond,
}

// Transceiver owns one chip.
type Transceiver struct {
	hw   Hardware
	opts Options

	irq     sync.Mutex
	enabled atomic.Bool // interrupt unmasked

	state   atomic.Uint32 // State
	alive   atomic.Bool
	counter atomic.Uint32 // position in the current frame
	status  atomic.Uint32 // last status word read

	// Remembered user part of FIFORSTREG, reapplied on every internal rewrite.
	fifoUser atomic.Uint32

	rxA, rxB  Packet
	txPacket  Packet
	receiving atomic.Pointer[Packet]
	finished  atomic.Pointer[Packet] // nil once taken by Receive
}

// NewTransceiver wraps hw.  Call Initialize before anything else.
func NewTransceiver(hw Hardware, opts Options) *Transceiver {
	if opts.TransmitRetry <= 0 {
		opts.TransmitRetry = DefaultOptions.TransmitRetry
	}
	if opts.AntennaTune < 0 {
		opts.AntennaTune = 0
	}

	var t = &Transceiver{hw: hw, opts: opts}
	t.fifoUser.Store(uint32(DRSTM))
	t.receiving.Store(&t.rxA)

	return t
}

/*-------------------------------------------------------------------
 *
 * Name:	Initialize
 *
 * Purpose:	Configure the radio and start listening.
 *
 * Description:	The interrupt stays masked until the chip is fully
 *		configured and the buffers are set up; it is unmasked
 *		last.
 *
 * Returns:	Any error latched by the bus while configuring.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) Initialize() error {
	t.enabled.Store(false)

	t.irq.Lock()

	t.fifoUser.Store(uint32(DRSTM))
	t.deselect()
	if t.hw.FSEL != nil {
		t.hw.FSEL.SetValue(1) //nolint:errcheck
	}

	var user = t.fifoUserBits()

	t.write(FIFORST_BASE | user)        // 8 bit FIFO interrupt count
	t.write(FIFORST_BASE | user | FSCF) // Enable sync latch
	t.write(GENCREG_SET)
	t.write(PMCREG | CLKODIS) // Everything off

	t.write(TXCREG | MODBW_30K | OTXPWR_0)
	t.write(RXCREG | FINTDIO | RXBW_67K | DRSSIT_103db)
	t.write(BBFCREG | ACRLC | (4 & DQTI_MASK))

	// Antenna tuning: run the transmitter while the oscillator settles.
	t.write(PMCREG | CLKODIS | TXCEN)
	time.Sleep(t.opts.AntennaTune)

	t.write(PMCREG | CLKODIS | RXCEN)
	t.write(GENCREG_SET | FIFOEN)
	t.write(FIFORST_BASE | user)
	t.write(FIFORST_BASE | user | FSCF)

	t.receiving.Store(&t.rxA)
	t.finished.Store(nil)
	t.rxA.PayloadSize = 0
	t.counter.Store(0)

	// Dummy status read clears the power-on-reset flag.
	t.status.Store(uint32(t.transfer(STSREG)))

	t.state.Store(uint32(Idle))

	t.irq.Unlock()

	t.enabled.Store(true)

	logger.Debug("transceiver initialized", "status", Command(t.status.Load()))

	return busErr(t.hw.Bus)
}

// IsIdle is true when nothing is being sent or received.
func (t *Transceiver) IsIdle() bool {
	return t.State() == Idle
}

/*-------------------------------------------------------------------
 *
 * Name:	IsAlive
 *
 * Purpose:	Tell a stalled chip from a quiet one.
 *
 * Returns:	true if an interrupt arrived since the last call (and
 *		clears that mark), or if the chip is idle.  An idle chip
 *		goes quiet legitimately.  false means the chip is busy
 *		but has stopped interrupting.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) IsAlive() bool {
	if t.alive.CompareAndSwap(true, false) {
		return true
	}

	return t.IsIdle()
}

// State returns the current protocol state.
func (t *Transceiver) State() State {
	return State(t.state.Load())
}

// Counter returns the position within the current frame.
func (t *Transceiver) Counter() int {
	return int(t.counter.Load())
}

// ReadStatus reads the chip status word.
func (t *Transceiver) ReadStatus() uint16 {
	t.irq.Lock()
	defer t.irq.Unlock()

	var s = t.transfer(STSREG)
	t.status.Store(uint32(s))

	return s
}

/*-------------------------------------------------------------------
 *
 * Name:	SetRegister
 *
 * Purpose:	Write a configuration register.
 *
 * Description:	FIFORSTREG holds both user bits and bits the driver
 *		toggles on its own, so for that register only the user
 *		bits are taken, remembered, and merged with the driver's
 *		bits.  It's a good idea to Reset after changing registers.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) SetRegister(value Command) {
	t.irq.Lock()
	defer t.irq.Unlock()

	if value.Register() == FIFORSTREG {
		t.fifoUser.Store(uint32(value & FIFORST_USER_MASK))
		t.write(FIFORST_BASE | t.fifoUserBits() | FSCF)
		return
	}

	t.write(value)
}

// SetFrequency sets the FREQB field of CFSREG.  Values outside 97..3903
// are ignored.
func (t *Transceiver) SetFrequency(freqb uint16) {
	var f = Command(freqb) & FREQB_MASK
	if f < FREQB_MIN || f > FREQB_MAX {
		logger.Debug("frequency out of range, ignored", "freqb", freqb)
		return
	}

	t.irq.Lock()
	defer t.irq.Unlock()

	t.write(CFSREG | f)
}

/*-------------------------------------------------------------------
 *
 * Name:	SetBaudrate
 *
 * Purpose:	Set the data rate.
 *
 * Inputs:	bps	- Bits per second.
 *
 * Description:	From the data sheet
 *
 *			DRPV = 10000 / (29 * (1 + DPRE * 7) * kbps) - 1
 *
 *		The prescaler is used only when DRPV won't fit in 7 bits.
 *		Rates the chip can't do are ignored, like SetFrequency.
 *
 *--------------------------------------------------------------------*/

const maxBaudrate = 256000

func (t *Transceiver) SetBaudrate(bps uint32) {
	var value, ok = drsValue(bps)
	if !ok {
		logger.Debug("baud rate out of range, ignored", "bps", bps)
		return
	}

	t.irq.Lock()
	defer t.irq.Unlock()

	t.write(DRSREG | value)
}

func drsValue(bps uint32) (Command, bool) {
	if bps == 0 || bps > maxBaudrate {
		return 0, false
	}

	var div = func(prescale uint64) int64 {
		var d = 29 * prescale * uint64(bps)
		return int64((10_000_000+d/2)/d) - 1
	}

	if v := div(1); v >= 0 && v <= int64(DRPV_MASK) {
		return Command(v), true
	}
	if v := div(8); v >= 0 && v <= int64(DRPV_MASK) {
		return DRPE | Command(v), true
	}

	return 0, false
}

/*-------------------------------------------------------------------
 *
 * Name:	Transmit
 *
 * Purpose:	Send a packet.
 *
 * Inputs:	ctx	- Bounds the wait for the chip to become idle.
 *			  With context.Background() this waits forever.
 *		p	- Packet to send.  It is copied; the caller may
 *			  reuse it as soon as Transmit returns.
 *
 * Returns:	After the transmitter is armed.  The bytes go out from
 *		the interrupt handler.  ctx.Err() if the wait was cut
 *		short, ErrPayloadTooLarge for an impossible packet.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) Transmit(ctx context.Context, p *Packet) error {
	if p.PayloadSize > PayloadLen {
		return ErrPayloadTooLarge
	}

	// Only the application enters the test states, so no race here.
	if t.State().TestTone() {
		t.Reset()
	}

	var timer *time.Timer
	for !t.acquire(p) {
		if timer == nil {
			timer = time.NewTimer(t.opts.TransmitRetry)
			defer timer.Stop()
		} else {
			timer.Reset(t.opts.TransmitRetry)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.irq.Lock()
	t.write(PMCREG)
	// The TX register comes up holding 0xAAAA.
	t.write(GENCREG_SET | TXDEN)
	t.write(PMCREG | TXCEN)
	t.irq.Unlock()

	return nil
}

// acquire flips Idle to TransmittingPacket with the interrupt masked, and
// stages p if it won.
func (t *Transceiver) acquire(p *Packet) bool {
	t.irq.Lock()
	defer t.irq.Unlock()

	if !t.state.CompareAndSwap(uint32(Idle), uint32(TransmittingPacket)) {
		return false
	}

	t.txPacket.PayloadSize = p.PayloadSize
	t.txPacket.Type = p.Type
	copy(t.txPacket.Payload[:p.PayloadSize], p.Payload[:p.PayloadSize])
	t.counter.Store(0)

	return true
}

/*-------------------------------------------------------------------
 *
 * Name:	Receive
 *
 * Purpose:	Pick up the last finished packet, if any.
 *
 * Returns:	nil when nothing new has arrived.  The packet belongs to
 *		the caller until the next call; after that the buffer
 *		may be reused for reception.
 *
 *--------------------------------------------------------------------*/

func (t *Transceiver) Receive() *Packet {
	return t.finished.Swap(nil)
}

// TransmitZero sends a continuous '0' for spectrum testing.
func (t *Transceiver) TransmitZero() {
	t.testTone(TransmitZero, 0x00, true)
}

// TransmitOne sends a continuous '1' for spectrum testing.
func (t *Transceiver) TransmitOne() {
	t.testTone(TransmitOne, 0xFF, true)
}

// TransmitAlternating sends '01' repeated for spectrum testing.
func (t *Transceiver) TransmitAlternating() {
	t.testTone(TransmitAlternating, preambleByte, false)
}

func (t *Transceiver) testTone(s State, fill byte, load bool) {
	t.irq.Lock()
	defer t.irq.Unlock()

	// Already in a spectrum test, just change the pattern.
	if t.State().TestTone() {
		t.state.Store(uint32(s))
		return
	}

	t.state.Store(uint32(s))

	t.write(GENCREG_SET | TXDEN)
	// The transmit register resets to 0xAAAA, which is the alternating tone.
	if load {
		t.write(TXBREG | Command(fill))
	}
	t.write(PMCREG | CLKODIS | TXCEN)
}

// Reset puts the chip back into receive and the protocol back to Idle,
// dropping any frame in progress.
func (t *Transceiver) Reset() {
	t.irq.Lock()
	defer t.irq.Unlock()

	t.reset()
}

// reset is Reset for callers already holding irq.
func (t *Transceiver) reset() {
	var user = t.fifoUserBits()

	t.write(PMCREG)
	t.write(FIFORST_BASE | user)
	t.write(GENCREG_SET)
	t.write(GENCREG_SET | FIFOEN)
	t.write(FIFORST_BASE | FSCF | user)
	t.write(PMCREG | RXCEN)

	t.counter.Store(0)
	t.state.Store(uint32(Idle))
}

func (t *Transceiver) fifoUserBits() Command {
	return Command(t.fifoUser.Load())
}

func (t *Transceiver) transfer(cmd Command) uint16 {
	return t.hw.Bus.Transfer(cmd)
}

// write sends cmd and drops whatever came back.
func (t *Transceiver) write(cmd Command) {
	t.hw.Bus.Transfer(cmd)
}

func (t *Transceiver) selectChip() {
	if t.hw.ChipSelect != nil {
		t.hw.ChipSelect.SetValue(0) //nolint:errcheck
	}
}

func (t *Transceiver) deselect() {
	if t.hw.ChipSelect != nil {
		t.hw.ChipSelect.SetValue(1) //nolint:errcheck
	}
}
