package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Bring up a real radio from a configuration.
 *
 * Description:	Order matters:
 *
 *		1. SPI and the discrete lines.
 *		2. Initialize, which leaves the chip listening with
 *		   the built-in settings.
 *		3. Stored registers, then a Reset so they take effect.
 *		4. Frequency and data rate from the configuration.
 *		5. The interrupt line, and one manual service in case
 *		   the chip was already asserting it.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Device is an open radio with everything it owns.
type Device struct {
	Transceiver *Transceiver
	NV          *NVStore // nil when no store is configured
	Mode        Mode

	bus   *SPIBus
	lines *Lines
}

func OpenDevice(cfg Config) (*Device, error) {
	var d = &Device{}
	var err error

	d.bus, err = OpenSPIBus(cfg.SPI.Device, cfg.SPI.Speed())
	if err != nil {
		return nil, err
	}

	d.lines, err = OpenLines(cfg.GPIO)
	if err != nil {
		d.Close()
		return nil, err
	}

	var hw = Hardware{Bus: d.bus}
	d.lines.Apply(&hw)

	d.Transceiver = NewTransceiver(hw, cfg.Options())
	if err := d.Transceiver.Initialize(); err != nil {
		d.Close()
		return nil, fmt.Errorf("initialize transceiver: %w", err)
	}

	d.Mode = ModeSerial

	if cfg.NVStore != "" {
		d.NV, err = OpenNVStore(cfg.NVStore)
		if err != nil {
			d.Close()
			return nil, err
		}

		d.Mode, err = d.NV.BootMode()
		if err != nil {
			logger.Warn("could not rewrite register defaults", "err", err)
		}

		d.NV.ApplySavedRegisters(d.Transceiver)
		d.Transceiver.Reset()
	}

	if cfg.Radio.Mode != "" {
		// Validated already.
		d.Mode, _ = ParseMode(cfg.Radio.Mode)
	}

	if cfg.Radio.Frequency != 0 {
		d.Transceiver.SetFrequency(cfg.Radio.Frequency)
	}
	if cfg.Radio.Baudrate != 0 {
		d.Transceiver.SetBaudrate(cfg.Radio.Baudrate)
	}

	if err := d.lines.EnableInterrupt(cfg.GPIO.IRQ, d.Transceiver.HandleInterrupt); err != nil {
		d.Close()
		return nil, err
	}
	d.Transceiver.HandleInterrupt()

	logger.Info("radio ready", "mode", d.Mode, "status", Command(d.Transceiver.ReadStatus()))

	return d, nil
}

// Close releases the hardware.  The chip is left listening.
func (d *Device) Close() error {
	var errs []error

	if d.lines != nil {
		errs = append(errs, d.lines.Close())
	}
	if d.NV != nil {
		errs = append(errs, d.NV.Close())
	}
	if d.bus != nil {
		errs = append(errs, d.bus.Err(), d.bus.Close())
	}

	return errors.Join(errs...)
}

// PingPayload is what ModeTestPing sends.
var PingPayload = []byte("PING")

/*-------------------------------------------------------------------
 *
 * Name:	RunTestMode
 *
 * Purpose:	Run one of the modes that don't use the host link.
 *
 * Inputs:	m	- ModeCapture, ModeTestAlt/Zero/One, ModeTestPing.
 *		every	- Ping interval.
 *		mon	- Where captured and pinged packets are shown.
 *
 * Returns:	When ctx is done.  The radio is reset on the way out.
 *
 *--------------------------------------------------------------------*/

func RunTestMode(ctx context.Context, t *Transceiver, m Mode, every time.Duration, mon *Monitor) error {
	defer t.Reset()

	switch m {
	case ModeTestAlt:
		t.TransmitAlternating()
	case ModeTestZero:
		t.TransmitZero()
	case ModeTestOne:
		t.TransmitOne()
	case ModeCapture:
	case ModeTestPing:
		if every <= 0 {
			return fmt.Errorf("ping interval %s must be positive", every)
		}
	default:
		return fmt.Errorf("mode %s is not a test mode", m)
	}

	var ping, _ = NewPacket(PacketTypeSerial, PingPayload)

	var poll = time.NewTicker(DefaultPollInterval)
	defer poll.Stop()

	var pingTick <-chan time.Time
	if m == ModeTestPing {
		var pt = time.NewTicker(every)
		defer pt.Stop()
		pingTick = pt.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pingTick:
			if err := t.Transmit(ctx, ping); err != nil {
				return nil
			}
			if mon != nil {
				mon.Packet(ToRadio, ping)
			}
		case <-poll.C:
			if p := t.Receive(); p != nil && mon != nil {
				mon.Packet(FromRadio, p)
			}
		}
	}
}
