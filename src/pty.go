package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Host link over a pseudo terminal, for applications
 *		that only know how to talk to a serial TNC.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// PseudoTerminal is the master side; applications open SlaveName.
type PseudoTerminal struct {
	master *os.File
	slave  *os.File
}

// OpenPseudoTerminal creates a raw mode pseudo terminal pair.
func OpenPseudoTerminal() (*PseudoTerminal, error) {
	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("create pseudo terminal: %w", err)
	}

	// No echo, no line editing, bytes straight through.
	var attr unix.Termios
	if err := termios.Tcgetattr(pts.Fd(), &attr); err == nil {
		termios.Cfmakeraw(&attr)
		attr.Cc[unix.VMIN] = 1
		attr.Cc[unix.VTIME] = 0
		if err := termios.Tcsetattr(pts.Fd(), termios.TCSANOW, &attr); err != nil {
			logger.Warn("can't set pseudo terminal to raw mode", "err", err)
		}
	}

	logger.Info("virtual serial port available", "name", pts.Name())

	// The slave stays open so the device node doesn't vanish before
	// anyone opens it.
	return &PseudoTerminal{master: ptmx, slave: pts}, nil
}

// SlaveName is the device path for applications.
func (p *PseudoTerminal) SlaveName() string {
	return p.slave.Name()
}

func (p *PseudoTerminal) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

func (p *PseudoTerminal) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

func (p *PseudoTerminal) Close() error {
	p.slave.Close()
	return p.master.Close()
}
