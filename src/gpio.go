package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Discrete lines around the chip, through the GPIO
 *		character device (/dev/gpiochipN).
 *
 * Description:	nIRO is the interrupt.  The chip pulls it low when it
 *		wants service; the falling edge runs HandleInterrupt.
 *
 *		nCS, FSEL are outputs, held high when idle.
 *
 *		SDO doubles as the FIFO attention flag while nCS is low,
 *		so it is wired to a spare input as well as to MISO.
 *
 *		Offsets below zero mean "not connected".
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "mrf49xa"

// GPIOConfig names the chip and line offsets.
type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	IRQ        int    `yaml:"irq"`
	ChipSelect int    `yaml:"chip_select"`
	Attention  int    `yaml:"attention"`
	FSEL       int    `yaml:"fsel"`
}

// Lines holds the requested lines.
type Lines struct {
	chip      string
	irq       *gpiocdev.Line
	cs        *gpiocdev.Line
	attention *gpiocdev.Line
	fsel      *gpiocdev.Line
}

// OpenLines requests the output and input lines.  The interrupt line is
// requested separately by EnableInterrupt once there is a handler.
func OpenLines(cfg GPIOConfig) (*Lines, error) {
	var l = &Lines{chip: cfg.Chip}
	var err error

	if cfg.ChipSelect >= 0 {
		l.cs, err = gpiocdev.RequestLine(cfg.Chip, cfg.ChipSelect,
			gpiocdev.AsOutput(1), gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("chip select line %s:%d: %w", cfg.Chip, cfg.ChipSelect, err)
		}
	}

	if cfg.FSEL >= 0 {
		l.fsel, err = gpiocdev.RequestLine(cfg.Chip, cfg.FSEL,
			gpiocdev.AsOutput(1), gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("FSEL line %s:%d: %w", cfg.Chip, cfg.FSEL, err)
		}
	}

	if cfg.Attention >= 0 {
		l.attention, err = gpiocdev.RequestLine(cfg.Chip, cfg.Attention,
			gpiocdev.AsInput, gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("attention line %s:%d: %w", cfg.Chip, cfg.Attention, err)
		}
	}

	return l, nil
}

// Apply fills in the discrete lines of hw.
func (l *Lines) Apply(hw *Hardware) {
	// Avoid storing typed nil pointers in the interfaces.
	if l.cs != nil {
		hw.ChipSelect = l.cs
	}
	if l.fsel != nil {
		hw.FSEL = l.fsel
	}
	if l.attention != nil {
		hw.Attention = l.attention
	}
}

// EnableInterrupt watches the falling edge of the IRQ line and calls
// handler for each one.  The handler runs on the gpiocdev event goroutine,
// one event at a time.
func (l *Lines) EnableInterrupt(offset int, handler func()) error {
	if l.irq != nil {
		return errors.New("interrupt already enabled")
	}

	var line, err = gpiocdev.RequestLine(l.chip, offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithConsumer(gpioConsumer),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }))
	if err != nil {
		return fmt.Errorf("IRQ line %s:%d: %w", l.chip, offset, err)
	}

	l.irq = line

	return nil
}

// Close releases all lines.
func (l *Lines) Close() error {
	var errs []error

	for _, line := range []*gpiocdev.Line{l.irq, l.cs, l.fsel, l.attention} {
		if line != nil {
			errs = append(errs, line.Close())
		}
	}

	return errors.Join(errs...)
}
