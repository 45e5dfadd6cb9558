package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Bus implementation on a Linux spidev port through periph.
 *
 * Description:	The MRF49XA takes SPI mode 0, 8 bit words, and is
 *		happy up to about 2.5 MHz for FIFO reads.
 *
 *		Transfers happen from the interrupt handler, which has
 *		nowhere to send an error, so the first failure is kept
 *		and reported by Err.  Later transfers still go through
 *		in case the fault was transient.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var ErrNoSPI = errors.New("no SPI port")

// DefaultSPISpeed is used when the configuration leaves the speed at zero.
const DefaultSPISpeed = 2 * physic.MegaHertz

// SPIBus sends command words over a spidev port.
type SPIBus struct {
	port spi.PortCloser
	conn spi.Conn

	mu  sync.Mutex
	w   [2]byte
	r   [2]byte
	err error
}

// OpenSPIBus opens a spidev port by periph name ("/dev/spidev0.0", "SPI0.0",
// or "" for the first one found).
func OpenSPIBus(name string, speed physic.Frequency) (*SPIBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	if speed == 0 {
		speed = DefaultSPISpeed
	}

	var port, openErr = spireg.Open(name)
	if openErr != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrNoSPI, name, openErr)
	}

	var conn, connErr = port.Connect(speed, spi.Mode0, 8)
	if connErr != nil {
		port.Close()
		return nil, fmt.Errorf("spi connect %q at %s: %w", name, speed, connErr)
	}

	logger.Info("SPI port open", "port", port.String(), "speed", speed)

	return &SPIBus{port: port, conn: conn}, nil
}

// Transfer clocks cmd out low byte first.  The reply is assembled in the
// same order.
func (b *SPIBus) Transfer(cmd Command) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.w[0] = byte(cmd)
	b.w[1] = byte(cmd >> 8)

	if err := b.conn.Tx(b.w[:], b.r[:]); err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("spi transfer %s: %w", cmd, err)
			logger.Error("SPI transfer failed", "cmd", cmd, "err", err)
		}
		return 0
	}

	return uint16(b.r[0]) | uint16(b.r[1])<<8
}

// Err returns the first transfer failure, if any.
func (b *SPIBus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.err
}

func (b *SPIBus) Close() error {
	return b.port.Close()
}
