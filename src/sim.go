package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	A software MRF49XA, and the air between several of them.
 *
 * Description:	SimChip decodes the command words the driver sends and
 *		keeps just enough state to behave like the real part on
 *		the byte level:
 *
 *		- PMCREG switches the transmitter and receiver.
 *		- GENCREG gates the transmit register and the FIFO.
 *		- Writing FIFORSTREG with FSCF clear empties the FIFO;
 *		  with FSCF set the receiver hunts for 0x2D 0xD4 and
 *		  fills the FIFO with everything after it.
 *		- TXBREG holds the next byte to send.
 *		- RXFIFOREG pops the oldest FIFO byte into the low byte
 *		  of the reply.
 *
 *		Air moves bytes between attached chips one byte time
 *		per Step and calls the interrupt handler of every chip
 *		that wants service, the way the IRQ line would.
 *
 *		Lock order is Air, then the transceiver's irq, then the
 *		chip.  Interrupt handlers are never called with a chip
 *		lock held.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"sync"
	"time"
)

// simFIFODepth is the receive FIFO size of the real part, in bytes.
const simFIFODepth = 16

// SimChip is one simulated transceiver.
type SimChip struct {
	Name string

	mu sync.Mutex

	txOn   bool // PMCREG TXCEN
	rxOn   bool // PMCREG RXCEN
	txData bool // GENCREG TXDEN
	fifoOn bool // GENCREG FIFOEN

	txReg     byte
	txPending bool

	hunting bool // sync latch armed, looking for the sync word
	filling bool // sync seen, bytes go to the FIFO
	last    byte
	fifo    []byte

	status   Command
	selected bool
	regs     map[Command]Command
	sent     []byte
}

// NewSimChip returns a chip in its power-on state.
func NewSimChip(name string) *SimChip {
	return &SimChip{
		Name:   name,
		status: POR,
		regs:   make(map[Command]Command),
	}
}

// Hardware wires the chip up as bus, chip select and attention line.
func (c *SimChip) Hardware() Hardware {
	return Hardware{Bus: c, ChipSelect: c, Attention: c}
}

// Transfer decodes one command word.
func (c *SimChip) Transfer(cmd Command) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var reg = cmd.Register()
	if reg != STSREG && reg != RXFIFOREG && reg != TXBREG {
		c.regs[reg] = cmd
	}

	switch reg {
	case STSREG:
		var s = c.status
		if c.wantsServiceLocked() {
			s |= TXRXFIFO
		}
		if len(c.fifo) == 0 {
			s |= FIFOEM
		}
		c.status &^= POR | TXOWRXOF
		return uint16(s)

	case PMCREG:
		c.txOn = cmd&TXCEN != 0
		c.rxOn = cmd&RXCEN != 0

	case GENCREG:
		c.txData = cmd&TXDEN != 0
		c.fifoOn = cmd&FIFOEN != 0
		if !c.txData {
			c.txPending = false
		}

	case FIFORSTREG:
		if cmd&FSCF == 0 {
			c.fifo = c.fifo[:0]
			c.hunting = false
			c.filling = false
		} else if !c.filling {
			c.hunting = true
			c.last = 0
		}

	case TXBREG:
		c.txReg = byte(cmd & TXDB_MASK)
		c.txPending = true

	case RXFIFOREG:
		if len(c.fifo) == 0 {
			return 0
		}
		var b = c.fifo[0]
		c.fifo = c.fifo[1:]
		return uint16(b)
	}

	return 0
}

// SetValue is the chip select input.  Low selects.
func (c *SimChip) SetValue(value int) error {
	c.mu.Lock()
	c.selected = value == 0
	c.mu.Unlock()

	return nil
}

// Value is the FIFO attention output.
func (c *SimChip) Value() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wantsServiceLocked() {
		return 1, nil
	}
	return 0, nil
}

// Selected reports the level last put on chip select.
func (c *SimChip) Selected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.selected
}

// Transmitting is true while the transmitter is on with its data register enabled.
func (c *SimChip) Transmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transmittingLocked()
}

// Register returns the last word written to reg.
func (c *SimChip) Register(reg Command) (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var v, ok = c.regs[reg]
	return v, ok
}

// Sent returns a copy of every byte this chip has put on the air.
func (c *SimChip) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.sent...)
}

// Hear feeds b into the receiver as if it came over the air.
func (c *SimChip) Hear(b ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, x := range b {
		c.hearLocked(x)
	}
}

func (c *SimChip) hearLocked(b byte) {
	if !c.rxOn || !c.fifoOn {
		return
	}

	switch {
	case c.filling:
		if len(c.fifo) >= simFIFODepth {
			c.status |= TXOWRXOF
			return
		}
		c.fifo = append(c.fifo, b)
	case c.hunting:
		if c.last == syncByte1 && b == syncByte2 {
			c.hunting = false
			c.filling = true
		}
		c.last = b
	}
}

func (c *SimChip) transmittingLocked() bool {
	return c.txOn && c.txData
}

func (c *SimChip) wantsServiceLocked() bool {
	return c.transmittingLocked() || len(c.fifo) > 0
}

// takeTx returns the byte written since the last byte time, if any.
func (c *SimChip) takeTx() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.transmittingLocked() || !c.txPending {
		return 0, false
	}

	c.txPending = false
	c.sent = append(c.sent, c.txReg)

	return c.txReg, true
}

func (c *SimChip) fifoPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.fifo) > 0
}

type simStation struct {
	chip *SimChip
	irq  func()
}

// Air connects simulated chips.  Every chip hears every other chip.
type Air struct {
	mu       sync.Mutex
	stations []simStation

	// Corrupt, if set, may alter each byte on its way to a receiver.
	Corrupt func(from, to *SimChip, b byte) byte
}

// Attach adds chip to the air.  irq is called whenever the chip would pull
// its interrupt line, normally the transceiver's HandleInterrupt.
func (a *Air) Attach(chip *SimChip, irq func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stations = append(a.stations, simStation{chip: chip, irq: irq})
}

/*-------------------------------------------------------------------
 *
 * Name:	Step
 *
 * Purpose:	Advance one byte time.
 *
 * Description:	Each transmitter is asked for its next byte, which is
 *		then heard by every other station.  After that, every
 *		station with something in its FIFO gets one interrupt.
 *
 * Returns:	true if anything happened.
 *
 *--------------------------------------------------------------------*/

func (a *Air) Step() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	var busy = false

	for _, tx := range a.stations {
		if !tx.chip.Transmitting() {
			continue
		}
		busy = true

		tx.irq()

		var b, ok = tx.chip.takeTx()
		if !ok {
			continue
		}

		for _, rx := range a.stations {
			if rx.chip == tx.chip {
				continue
			}
			var heard = b
			if a.Corrupt != nil {
				heard = a.Corrupt(tx.chip, rx.chip, b)
			}
			rx.chip.Hear(heard)
		}
	}

	for _, st := range a.stations {
		if st.chip.fifoPending() {
			busy = true
			st.irq()
		}
	}

	return busy
}

// Run steps the air every byteTime until ctx is done.
func (a *Air) Run(ctx context.Context, byteTime time.Duration) error {
	var ticker = time.NewTicker(byteTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Step()
		}
	}
}
