package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Send packets between two simulated radios and count
 *		what makes it across.
 *
 * Description:	Useful for seeing what the Hamming code buys at a
 *		given bit error rate, and as a smoke test of the whole
 *		driver without hardware.
 *
 *		The air is stepped by hand, so this runs as fast as the
 *		CPU allows and the results depend only on the seed.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
)

type LoopbackOptions struct {
	Count        int
	Type         PacketType
	BitErrorRate float64
	Seed         uint64
}

type LoopbackResult struct {
	Sent      int
	Intact    int
	Corrupted int
	Lost      int
	Resyncs   int
	BitFlips  int
}

func (r LoopbackResult) String() string {
	return fmt.Sprintf("sent %d, intact %d, corrupted %d, lost %d, resyncs %d, bit flips %d",
		r.Sent, r.Intact, r.Corrupted, r.Lost, r.Resyncs, r.BitFlips)
}

// Extra byte times allowed beyond the frame length before a packet counts as lost.
const loopbackSlack = 8

func RunLoopback(ctx context.Context, opts LoopbackOptions, mon *Monitor) (LoopbackResult, error) {
	var res LoopbackResult

	var chipA = NewSimChip("A")
	var chipB = NewSimChip("B")
	var txA = NewTransceiver(chipA.Hardware(), Options{TransmitRetry: DefaultOptions.TransmitRetry})
	var rxB = NewTransceiver(chipB.Hardware(), Options{TransmitRetry: DefaultOptions.TransmitRetry})

	if err := txA.Initialize(); err != nil {
		return res, err
	}
	if err := rxB.Initialize(); err != nil {
		return res, err
	}

	var air Air
	air.Attach(chipA, txA.HandleInterrupt)
	air.Attach(chipB, rxB.HandleInterrupt)

	if opts.BitErrorRate > 0 {
		var rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9E3779B97F4A7C15))
		air.Corrupt = func(_, _ *SimChip, b byte) byte {
			for bit := 0; bit < 8; bit++ {
				if rng.Float64() < opts.BitErrorRate {
					b ^= 1 << bit
					res.BitFlips++
				}
			}
			return b
		}
	}

	for i := 0; i < opts.Count; i++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		var p, err = NewPacket(opts.Type, []byte(fmt.Sprintf("loopback packet %d", i)))
		if err != nil {
			return res, err
		}

		if err := txA.Transmit(ctx, p); err != nil {
			return res, err
		}
		res.Sent++
		if mon != nil {
			mon.Packet(ToRadio, p)
		}

		var got *Packet
		for step := 0; step < p.TxFrameLen()+loopbackSlack; step++ {
			air.Step()
			if got == nil {
				got = rxB.Receive()
			}
			if got != nil && txA.IsIdle() {
				break
			}
		}

		switch {
		case got == nil:
			res.Lost++
		case got.Type == p.Type && bytes.Equal(got.Bytes(), p.Bytes()):
			res.Intact++
		default:
			res.Corrupted++
		}
		if got != nil && mon != nil {
			mon.Packet(FromRadio, got)
		}

		// A damaged length byte leaves the receiver waiting for bytes
		// that will never come.
		if !rxB.IsIdle() {
			rxB.Reset()
			res.Resyncs++
		}
		if !txA.IsIdle() {
			txA.Reset()
		}
	}

	return res, nil
}
