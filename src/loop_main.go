package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:   	Loopback test between two simulated radios.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
)

func LoopMain() {
	var count = pflag.IntP("count", "n", 100, "Number of packets to send.")
	var ecc = pflag.BoolP("ecc", "e", false, "Hamming code the payload.")
	var ber = pflag.Float64P("ber", "r", 0, "Bit error rate on the air, 0 to 1.")
	var seed = pflag.Uint64P("seed", "s", 1, "Random seed for bit errors.")
	var quiet = pflag.BoolP("quiet", "q", false, "Only print the totals.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", DefaultTimestampFormat, "Precede packets with 'strftime' format time stamp.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - send packets between two simulated MRF49XA radios\n", os.Args[0])
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

	if *ber < 0 || *ber > 1 {
		fmt.Fprintf(os.Stderr, "Bit error rate %g must be between 0 and 1.\n", *ber)
		os.Exit(1)
	}

	var mon *Monitor
	if !*quiet {
		var err error
		mon, err = NewMonitor(os.Stdout, *timestampFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			os.Exit(1)
		}
	}

	var opts = LoopbackOptions{
		Count:        *count,
		Type:         PacketTypeSerial,
		BitErrorRate: *ber,
		Seed:         *seed,
	}
	if *ecc {
		opts.Type = PacketTypeSerialECC
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var res, err = RunLoopback(ctx, opts, mon)
	fmt.Println(res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
