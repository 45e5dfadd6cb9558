package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Set up and poke at the radio by hand.
 *
 * Description:	The stored settings can be read and changed without
 *		touching the hardware; everything else opens it.  The
 *		daemon holds the register store lock, so stop it first.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

const ctlUsage = `Commands:
	status			Read the chip status word.
	regs			List the stored registers.
	reg INDEX VALUE		Store register INDEX (0-8) and apply it.  VALUE is hex.
	defaults		Restore the stored registers and boot mode to defaults.
	boot [MODE]		Show or set the boot mode (serial, serial-ecc).
	freq FREQB		Set the carrier until the next restart (97-3903).
	baud BPS		Set the data rate until the next restart.
	tone zero|one|alt	Transmit a test tone until interrupted.
`

func CtlMain() {
	var configFile = pflag.StringP("config", "c", "", "Configuration file.")
	var debug = pflag.BoolP("debug", "d", false, "Debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - MRF49XA setup utility\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] COMMAND [ARGS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprint(os.Stderr, ctlUsage)
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(0)
	}

	var cfg, err = LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	SetLogLevel(cfg.LogLevel) //nolint:errcheck

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runCtl(ctx, cfg, pflag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func runCtl(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	var cmd = args[0]
	args = args[1:]

	switch cmd {
	case "regs", "defaults", "boot":
		return runCtlStore(cfg, cmd, args, out)
	case "status", "reg", "freq", "baud", "tone":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	var dev, err = OpenDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	return ctlCommand(ctx, dev.Transceiver, dev.NV, cmd, args, out)
}

// runCtlStore handles the commands that only need the register store.
func runCtlStore(cfg Config, cmd string, args []string, out io.Writer) error {
	var nv, err = OpenNVStore(cfg.NVStore)
	if err != nil {
		return err
	}
	defer nv.Close()

	switch cmd {
	case "regs":
		return nv.PrintSavedRegisters(out)

	case "defaults":
		return nv.SetDefaults()

	default: // boot
		if len(args) == 0 {
			var m, err = nv.BootMode()
			fmt.Fprintf(out, "%s\n", m)
			return err
		}
		var m, err = ParseMode(args[0])
		if err != nil {
			return err
		}
		return nv.SetBootMode(m)
	}
}

func ctlCommand(ctx context.Context, t *Transceiver, nv *NVStore, cmd string, args []string, out io.Writer) error {
	var needArgs = func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d argument(s)", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "status":
		var s = t.ReadStatus()
		fmt.Fprintf(out, "%04X %s\n", s, FormatStatus(s))
		fmt.Fprintf(out, "state %s\n", t.State())

	case "reg":
		if err := needArgs(2); err != nil {
			return err
		}
		if nv == nil {
			return fmt.Errorf("no register store configured")
		}
		var i, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("register index %q: %w", args[0], err)
		}
		var v, verr = strconv.ParseUint(args[1], 16, 16)
		if verr != nil {
			return fmt.Errorf("register value %q: %w", args[1], verr)
		}
		return nv.SetRegisterValue(t, i, Command(v))

	case "freq":
		if err := needArgs(1); err != nil {
			return err
		}
		var f, err = strconv.ParseUint(args[0], 10, 16)
		if err != nil || Command(f) < FREQB_MIN || Command(f) > FREQB_MAX {
			return fmt.Errorf("frequency %q must be %d to %d", args[0], FREQB_MIN, FREQB_MAX)
		}
		t.SetFrequency(uint16(f))

	case "baud":
		if err := needArgs(1); err != nil {
			return err
		}
		var bps, err = strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("baud rate %q: %w", args[0], err)
		}
		if _, ok := drsValue(uint32(bps)); !ok {
			return fmt.Errorf("baud rate %d not possible", bps)
		}
		t.SetBaudrate(uint32(bps))

	case "tone":
		if err := needArgs(1); err != nil {
			return err
		}
		var m Mode
		switch args[0] {
		case "zero":
			m = ModeTestZero
		case "one":
			m = ModeTestOne
		case "alt":
			m = ModeTestAlt
		default:
			return fmt.Errorf("tone %q must be zero, one or alt", args[0])
		}
		fmt.Fprintf(out, "transmitting %s, interrupt to stop\n", m)
		return RunTestMode(ctx, t, m, time.Second, nil)
	}

	return nil
}
