package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Connect a host byte stream to the radio.
 *
 * Description:	Three goroutines for each link:
 *
 *		reader		host bytes -> framing -> Transmit
 *		poller		Receive -> framing -> host
 *		watchdog	IsAlive, Reset when the chip has stalled
 *
 *		The first one to fail stops the others.  The link is
 *		closed when the bridge stops so the blocked read returns.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Radio is the part of Transceiver the bridge uses.
type Radio interface {
	Transmit(ctx context.Context, p *Packet) error
	Receive() *Packet
	IsAlive() bool
	Reset()
}

// Framing selects how packets look on the host link.
type Framing int

const (
	FramingSerial Framing = iota // size, type, payload
	FramingKISS
)

func (f Framing) String() string {
	switch f {
	case FramingSerial:
		return "serial"
	case FramingKISS:
		return "kiss"
	default:
		return fmt.Sprintf("framing-%d", int(f))
	}
}

func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(s) {
	case "serial", "raw":
		return FramingSerial, nil
	case "kiss":
		return FramingKISS, nil
	default:
		return 0, fmt.Errorf("unknown framing %q", s)
	}
}

// Direction of a packet seen by the bridge.
type Direction int

const (
	ToRadio Direction = iota
	FromRadio
)

func (d Direction) String() string {
	if d == ToRadio {
		return "tx"
	}
	return "rx"
}

// Bridge pumps packets between one link and the radio.
type Bridge struct {
	Radio   Radio
	Link    io.ReadWriter
	Framing Framing
	Mode    Mode

	PollInterval     time.Duration
	WatchdogInterval time.Duration // 0 turns the watchdog off

	// OnPacket, if set, sees every packet passing through.
	OnPacket func(d Direction, p *Packet)

	wmu sync.Mutex
}

const DefaultPollInterval = 5 * time.Millisecond

// Run moves packets until ctx is done or the link fails.  End of file on
// the link is a normal stop.
func (b *Bridge) Run(ctx context.Context) error {
	if b.PollInterval <= 0 {
		b.PollInterval = DefaultPollInterval
	}

	var g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error { return b.reader(gctx) })
	g.Go(func() error { return b.poller(gctx) })
	if b.WatchdogInterval > 0 {
		g.Go(func() error { return b.watchdog(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		if c, ok := b.Link.(io.Closer); ok {
			c.Close()
		}
		return nil
	})

	var err = g.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (b *Bridge) send(ctx context.Context, p *Packet) error {
	if b.OnPacket != nil {
		b.OnPacket(ToRadio, p)
	}

	var err = b.Radio.Transmit(ctx, p)
	if errors.Is(err, ErrPayloadTooLarge) {
		logger.Warn("packet from host dropped", "err", err)
		return nil
	}

	return err
}

func (b *Bridge) write(data []byte) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	var _, err = b.Link.Write(data)

	return err
}

func (b *Bridge) reader(ctx context.Context) error {
	var framer = Framer{
		Mode: b.Mode,
		Send: func(p *Packet) error { return b.send(ctx, p) },
	}
	var kd = KissDecoder{
		Reply: func(data []byte) {
			if err := b.write(data); err != nil {
				logger.Debug("KISS reply failed", "err", err)
			}
		},
	}

	var buf = make([]byte, 256)

	for {
		var n, err = b.Link.Read(buf)

		for _, c := range buf[:n] {
			var sendErr error

			switch b.Framing {
			case FramingKISS:
				var frame = kd.Feed(c)
				if frame == nil {
					continue
				}
				var p, perr = PacketFromKiss(frame, b.Mode.PacketType())
				if perr != nil {
					logger.Debug("KISS frame ignored", "err", perr)
					continue
				}
				sendErr = b.send(ctx, p)
			default:
				sendErr = framer.ByteReceived(c)
			}

			if sendErr != nil {
				return sendErr
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("link read: %w", err)
		}
	}
}

func (b *Bridge) poller(ctx context.Context) error {
	var ticker = time.NewTicker(b.PollInterval)
	defer ticker.Stop()

	var out []byte

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var p = b.Radio.Receive()
		if p == nil {
			continue
		}

		if b.OnPacket != nil {
			b.OnPacket(FromRadio, p)
		}

		switch b.Framing {
		case FramingKISS:
			out = KissDataFrame(p)
		default:
			out = AppendPacket(out[:0], p)
		}

		if err := b.write(out); err != nil {
			return fmt.Errorf("link write: %w", err)
		}
	}
}

func (b *Bridge) watchdog(ctx context.Context) error {
	var ticker = time.NewTicker(b.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !b.Radio.IsAlive() {
			logger.Warn("transceiver stalled, resetting")
			b.Radio.Reset()
		}
	}
}
