package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the radio daemon: bring up the chip
 *		and connect it to a serial port, a pseudo terminal or
 *		TCP clients.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

func DaemonMain() {
	var configFile = pflag.StringP("config", "c", "", "Configuration file.  Default is to search "+fmt.Sprint(ConfigSearchLocations)+".")
	var debug = pflag.BoolP("debug", "d", false, "Debug logging.")
	var linkKind = pflag.StringP("link", "l", "", "Host link: serial, pty or tcp.")
	var device = pflag.StringP("device", "D", "", "Serial device for the serial link.")
	var baud = pflag.IntP("baud", "b", 0, "Serial link speed.")
	var port = pflag.IntP("port", "p", 0, "TCP port for the tcp link.")
	var framing = pflag.StringP("framing", "f", "", "Host framing: serial or kiss.")
	var mode = pflag.StringP("mode", "m", "", "Override the stored boot mode.")
	var monitor = pflag.BoolP("monitor", "M", false, "Print every packet to stdout.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", DefaultTimestampFormat, "Precede monitored packets with 'strftime' format time stamp.")
	var pingEvery = pflag.Duration("ping-interval", time.Second, "Interval between packets in test-ping mode.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - MRF49XA radio daemon\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *pingEvery <= 0 {
		fmt.Fprintf(os.Stderr, "Ping interval %s must be positive.\n", *pingEvery)
		os.Exit(1)
	}

	var cfg, err = LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	if *linkKind != "" {
		cfg.Link.Kind = *linkKind
	}
	if *device != "" {
		cfg.Link.Device = *device
	}
	if *baud != 0 {
		cfg.Link.Baud = *baud
	}
	if *port != 0 {
		cfg.Link.Port = *port
	}
	if *framing != "" {
		cfg.Link.Framing = *framing
	}
	if *mode != "" {
		cfg.Radio.Mode = *mode
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	SetLogLevel(cfg.LogLevel) //nolint:errcheck

	var mon *Monitor
	if *monitor {
		mon, err = NewMonitor(os.Stdout, *timestampFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx, cfg, mon, *pingEvery); err != nil {
		logger.Error("stopped", "err", err)
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context, cfg Config, mon *Monitor, pingEvery time.Duration) error {
	var dev, err = OpenDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	var t = dev.Transceiver

	if !dev.Mode.Bootable() {
		logger.Info("running test mode", "mode", dev.Mode)
		return RunTestMode(ctx, t, dev.Mode, pingEvery, mon)
	}

	var fr, _ = ParseFraming(cfg.Link.Framing)

	var newBridge = func(link io.ReadWriter) *Bridge {
		var b = &Bridge{
			Radio:            t,
			Link:             link,
			Framing:          fr,
			Mode:             dev.Mode,
			PollInterval:     cfg.Bridge.PollInterval,
			WatchdogInterval: cfg.Bridge.WatchdogInterval,
		}
		if mon != nil {
			b.OnPacket = mon.Packet
		}
		return b
	}

	switch cfg.Link.Kind {
	case "serial":
		var sp, err = OpenSerialPort(cfg.Link.Device, cfg.Link.Baud)
		if err != nil {
			return err
		}
		return newBridge(sp).Run(ctx)

	case "pty":
		var pt, err = OpenPseudoTerminal()
		if err != nil {
			return err
		}
		fmt.Printf("Virtual serial port is available on %s\n", pt.SlaveName())
		return newBridge(pt).Run(ctx)

	default:
		var srv = &NetServer{
			Port:      cfg.Link.Port,
			DNSSDName: cfg.Link.DNSSDName,
			Serve: func(ctx context.Context, conn net.Conn) error {
				return newBridge(conn).Run(ctx)
			},
		}
		return srv.ListenAndServe(ctx)
	}
}
