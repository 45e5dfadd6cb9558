package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	KISS framing for host applications.
 *
 * Description: The KISS TNC protocol is described in http://www.ka9q.net/papers/kiss.html
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Contents - with special escape sequences so a 0xc0
 *				byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		The first byte of the contents has the port in the upper
 *		nybble, which we ignore, and the command in the lower.
 *		Only data frames are carried over the radio.
 *
 *		A data frame here is
 *
 *			type	PacketType, or 0 for the mode default
 *			payload	up to 64 bytes
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const KISS_CMD_DATA_FRAME = 0
const KISS_CMD_TXDELAY = 1
const KISS_CMD_PERSISTENCE = 2
const KISS_CMD_SLOTTIME = 3
const KISS_CMD_TXTAIL = 4
const KISS_CMD_FULLDUPLEX = 5
const KISS_CMD_SET_HARDWARE = 6
const KISS_CMD_END_KISS = 15

// The radio has no use for the channel access settings, so these are
// only named when a client sends them.
var kissCommandNames = map[byte]string{
	KISS_CMD_TXDELAY:      "TXDELAY",
	KISS_CMD_PERSISTENCE:  "PERSISTENCE",
	KISS_CMD_SLOTTIME:     "SLOTTIME",
	KISS_CMD_TXTAIL:       "TXTAIL",
	KISS_CMD_FULLDUPLEX:   "FULLDUPLEX",
	KISS_CMD_SET_HARDWARE: "SET_HARDWARE",
	KISS_CMD_END_KISS:     "END_KISS",
}

/*
 * Special characters used by SLIP protocol.
 */

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

// Longest escaped frame: command, type and 64 payload bytes, all escaped,
// plus both FENDs.  Anything longer is junk.
const MAX_KISS_LEN = 2*(2+PayloadLen) + 2

const MAX_NOISE_LEN = 100

var ErrKissNotData = errors.New("not a KISS data frame")
var ErrKissEmpty = errors.New("empty KISS data frame")

/*-------------------------------------------------------------------
 *
 * Name:        KissEncapsulate
 *
 * Purpose:     Encapsulate a frame into KISS format.
 *
 * Inputs:	in	- First byte is the command byte.  If it happens
 *			  to be FEND or FESC, it is escaped, like any
 *			  other byte.
 *
 * Returns:	FEND, data with FEND and FESC escaped, FEND.
 *
 *-----------------------------------------------------------------*/

func KissEncapsulate(in []byte) []byte {
	var buf bytes.Buffer

	buf.WriteByte(FEND)

	for _, b := range in {
		switch b {
		case FEND:
			buf.WriteByte(FESC)
			buf.WriteByte(TFEND)
		case FESC:
			buf.WriteByte(FESC)
			buf.WriteByte(TFESC)
		default:
			buf.WriteByte(b)
		}
	}

	buf.WriteByte(FEND)

	return buf.Bytes()
}

/*-------------------------------------------------------------------
 *
 * Name:        KissUnwrap
 *
 * Purpose:     Extract original data from a KISS frame.
 *
 * Inputs:	in	- FEND (optional), escaped data, FEND.
 *
 * Returns:	The data without escapes or FENDs.  Protocol errors are
 *		logged and the offending byte skipped.
 *
 *-----------------------------------------------------------------*/

func KissUnwrap(in []byte) []byte {
	if len(in) < 2 {
		logger.Warn("KISS message less than minimum length", "len", len(in))
		return []byte{}
	}

	if in[len(in)-1] == FEND {
		in = in[:len(in)-1]
	} else {
		logger.Warn("KISS frame should end with FEND")
	}

	if in[0] == FEND {
		in = in[1:]
	}

	var escapedMode = false
	var buf bytes.Buffer
	for _, b := range in {
		if b == FEND {
			logger.Warn("KISS frame should not have FEND in the middle")
		}

		if escapedMode {
			switch b {
			case TFESC:
				buf.WriteByte(FESC)
			case TFEND:
				buf.WriteByte(FEND)
			default:
				logger.Warn("KISS protocol error", "after_fesc", fmt.Sprintf("%#02x", b))
			}
			escapedMode = false
		} else if b == FESC {
			escapedMode = true
		} else {
			buf.WriteByte(b)
		}
	}

	return buf.Bytes()
}

type kissState int

const (
	kissSearching kissState = iota // Looking for FEND to start a frame
	kissCollecting
)

// KissDecoder splits a byte stream from a client into frames.
type KissDecoder struct {
	// Reply, if set, is used to answer text a client sends while it
	// thinks the TNC is in command mode.
	Reply func([]byte)

	state kissState
	msg   []byte
	noise []byte
}

/*-------------------------------------------------------------------
 *
 * Name:        Feed
 *
 * Purpose:     Process one byte from a KISS client app.
 *
 * Returns:	The unwrapped frame, command byte first, when ch ends
 *		one.  nil otherwise.
 *
 * Description:	Some applications send a few text commands first to put
 *		a TNC into KISS mode, and keep repeating them if nothing
 *		comes back.  A command prompt keeps them happy.
 *
 *-----------------------------------------------------------------*/

func (kd *KissDecoder) Feed(ch byte) []byte {
	switch kd.state {
	case kissSearching:
		if ch == FEND {
			if len(kd.noise) > 0 {
				logger.Debug("KISS rejected noise", "noise", fmt.Sprintf("% x", kd.noise))
				kd.noise = kd.noise[:0]
			}

			kd.msg = append(kd.msg[:0], ch)
			kd.state = kissCollecting
			return nil
		}

		if len(kd.noise) < MAX_NOISE_LEN {
			kd.noise = append(kd.noise, ch)
		}
		if ch == '\r' {
			var text = string(kd.noise)
			if kd.Reply != nil {
				if strings.EqualFold("restart\r", text) || strings.EqualFold("reset\r", text) {
					kd.Reply([]byte{FEND, FEND})
				} else {
					kd.Reply([]byte("\r\ncmd:"))
				}
			}
			kd.noise = kd.noise[:0]
		}
		return nil

	case kissCollecting:
		if ch == FEND {
			if len(kd.msg) == 1 {
				// FEND FEND, empty frame.  Just go on collecting.
				return nil
			}

			kd.msg = append(kd.msg, ch)
			kd.state = kissSearching

			return KissUnwrap(kd.msg)
		}

		if len(kd.msg) < MAX_KISS_LEN {
			kd.msg = append(kd.msg, ch)
		} else {
			logger.Warn("KISS message exceeded maximum length")
		}
		return nil
	}

	return nil
}

// KissDataFrame encodes a received packet for a client.
func KissDataFrame(p *Packet) []byte {
	var raw = make([]byte, 0, 2+p.PayloadSize)
	raw = append(raw, KISS_CMD_DATA_FRAME, byte(p.Type))
	raw = append(raw, p.Bytes()...)

	return KissEncapsulate(raw)
}

/*-------------------------------------------------------------------
 *
 * Name:        PacketFromKiss
 *
 * Purpose:     Turn an unwrapped frame from a client into a packet.
 *
 * Inputs:	frame	- As returned by Feed.
 *		def	- Type to use when the frame says 0.
 *
 * Returns:	ErrKissNotData for other commands, which the caller may
 *		ignore.
 *
 *-----------------------------------------------------------------*/

func PacketFromKiss(frame []byte, def PacketType) (*Packet, error) {
	if len(frame) == 0 {
		return nil, ErrKissEmpty
	}

	if cmd := frame[0] & 0x0F; cmd != KISS_CMD_DATA_FRAME {
		if name, ok := kissCommandNames[cmd]; ok {
			return nil, fmt.Errorf("%w: %s", ErrKissNotData, name)
		}
		return nil, fmt.Errorf("%w: command %d", ErrKissNotData, cmd)
	}

	var body = frame[1:]
	if len(body) < 2 {
		return nil, ErrKissEmpty
	}

	var pt = PacketType(body[0])
	if pt == 0 {
		pt = def
	}

	return NewPacket(pt, body[1:])
}
