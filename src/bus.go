package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	What the transceiver needs from the hardware.
 *
 * Description:	The chip is driven through one primitive: clock a
 *		16-bit command word out, low byte first, and collect
 *		whatever the chip clocked back on the same transfer.
 *		The same primitive writes registers and reads the FIFO.
 *
 *		Besides the bus there are a few discrete lines.  All of
 *		them are optional so a simulated chip or a bus that does
 *		its own chip select can leave them out.
 *
 *---------------------------------------------------------------*/

// Bus carries command words to the chip.
type Bus interface {
	// Transfer sends cmd and returns the bits received during the transfer.
	// It must not block for longer than one transfer; failures are latched
	// by the implementation rather than returned.
	Transfer(cmd Command) uint16
}

// OutputLine is a digital output such as chip select.
type OutputLine interface {
	SetValue(value int) error
}

// InputLine is a digital input such as the FIFO attention signal.
type InputLine interface {
	Value() (int, error)
}

// Hardware groups the bus with the discrete lines around the chip.
type Hardware struct {
	Bus Bus

	// ChipSelect is active low.  Nil when the bus selects the chip itself.
	ChipSelect OutputLine

	// Attention is high when the FIFO wants service.  Nil means
	// every interrupt is treated as genuine.
	Attention InputLine

	// FSEL is held high (FIFO select inactive) while the driver is in use.
	FSEL OutputLine
}

// busErr returns the latched bus error, if the bus keeps one.
func busErr(b Bus) error {
	if e, ok := b.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}
