package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Host link over a serial port.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/pkg/term"
)

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerialPort
 *
 * Purpose:	Open serial port in raw mode.
 *
 * Inputs:	devicename	- Usually /dev/tty...
 *				  Could be /dev/rfcomm0 for Bluetooth.
 *
 *		baud		- Speed.  1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 * Returns 	The port, which is an io.ReadWriteCloser.
 *
 *---------------------------------------------------------------*/

func OpenSerialPort(devicename string, baud int) (*term.Term, error) {
	var fd, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", devicename, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := fd.SetSpeed(baud); err != nil {
			fd.Close()
			return nil, fmt.Errorf("serial port %s speed %d: %w", devicename, baud, err)
		}
	default:
		logger.Warn("unsupported serial speed, using 9600", "port", devicename, "baud", baud)
		if err := fd.SetSpeed(9600); err != nil {
			fd.Close()
			return nil, fmt.Errorf("serial port %s speed 9600: %w", devicename, err)
		}
	}

	logger.Info("serial port open", "port", devicename, "baud", baud)

	return fd, nil
}
