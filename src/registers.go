package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Command words for the MRF49XA.
 *
 * Description:	Every register write is a single 16-bit word.  The top
 *		bits select the register and the rest carry the settings,
 *		so a setting is composed by OR-ing the register address
 *		with the bit fields below.
 *
 *		The only register worth reading is the status register,
 *		which has no settable bits.
 *
 *---------------------------------------------------------------*/

import "fmt"

// Command is one 16-bit command word as clocked out to the chip.
type Command uint16

// Status read register.
const (
	STSREG   Command = 0x0000
	TXRXFIFO Command = 0x8000 // FIFO needs attention
	POR      Command = 0x4000 // Power-on-Reset flag
	TXOWRXOF Command = 0x2000 // Underrun/Overwrite/Overflow
	WUTINT   Command = 0x1000 // Wakeup timer overflow
	LCEXINT  Command = 0x0800 // Logic change interrupt
	LBTD     Command = 0x0400 // Low battery threshold detect
	FIFOEM   Command = 0x0200 // Receiver FIFO empty
	ATTRSSI  Command = 0x0100 // Antenna tuning and RSSI indicator
	DQDO     Command = 0x0080 // Data quality detect output
	CLKRL    Command = 0x0040 // Clock recovery lock
	AFCCT    Command = 0x0020 // AFC cycle toggle
	OFFSV    Command = 0x0010 // Sign of the AFC offset
)

// Automatic frequency control configuration register.
const (
	AFCCREG     Command = 0xC400
	AUTOMS_INDP Command = 0x00C0
	AUTOMS_RECV Command = 0x0080
	AUTOMS_ONCE Command = 0x0040
	ARFO_3to4   Command = 0x0030
	ARFO_7to8   Command = 0x0020
	ARFO_15to16 Command = 0x0010
	MFCS        Command = 0x0008
	HAM         Command = 0x0004
	FOREN       Command = 0x0002
	FOFEN       Command = 0x0001
)

// Transmit byte register.  The low byte is the data.
const (
	TXBREG    Command = 0xB800
	TXDB_MASK Command = 0x00FF
)

// Receiver FIFO read register.  Data comes back in the low byte.
const (
	RXFIFOREG Command = 0xB000
	RXDB_MASK Command = 0x00FF
)

// Baseband filter configuration register.
const (
	BBFCREG   Command = 0xC228
	ACRLC     Command = 0x0080
	MCRLC     Command = 0x0040
	FTYPE     Command = 0x0010
	DQTI_MASK Command = 0x0007
)

// FIFO and reset mode configuration register.
const (
	FIFORSTREG Command = 0xCA00
	FFBC_MASK  Command = 0x00F0 // FIFO fill bit count
	SYCHLEN    Command = 0x0008 // Synchronous character length
	FFSC       Command = 0x0004 // FIFO fill start condition
	FSCF       Command = 0x0002 // FIFO synchronous character fill (sync latch)
	DRSTM      Command = 0x0001 // Disable sensitive reset mode

	// Bits of FIFORSTREG that belong to the user rather than the driver.
	FIFORST_USER_MASK = DRSTM | SYCHLEN
)

// Synchronous byte configuration register.
const (
	SYNBREG Command = 0xCE00
	SYNCB   Command = 0x00FF
)

// Power management configuration register.
const (
	PMCREG  Command = 0x8200
	RXCEN   Command = 0x0080 // Receiver chain enable
	BBCEN   Command = 0x0040 // Baseband chain enable
	TXCEN   Command = 0x0020 // Transmitter chain enable
	SYNEN   Command = 0x0010 // Synthesizer enable
	OSCEN   Command = 0x0008 // Oscillator enable
	LBDEN   Command = 0x0004 // Low battery detector enable
	WUTEN   Command = 0x0002 // Wakeup timer enable
	CLKODIS Command = 0x0001 // Clock output disable
)

// General configuration register.
const (
	GENCREG  Command = 0x8000
	TXDEN    Command = 0x0080 // TX data register enable
	FIFOEN   Command = 0x0040 // FIFO enable
	FBS_MASK Command = 0x0030
	LCS_MASK Command = 0x000F

	LCS     Command = 3 // 10pF crystal load
	FBS_434 Command = 0x0010
	FBS_868 Command = 0x0020
	FBS_915 Command = 0x0030
)

// Center frequency value set register.
const (
	CFSREG     Command = 0xA000
	FREQB_MASK Command = 0x0FFF

	FREQB_MIN = 97
	FREQB_MAX = 3903
)

// Receive control register.
const (
	RXCREG       Command = 0x9000
	FINTDIO      Command = 0x0400 // nFINT/DIO pin is the FIFO interrupt
	DIORT_MASK   Command = 0x0300
	RXBW_MASK    Command = 0x00E0
	RXLNA_MASK   Command = 0x0018
	DRSSIT_MASK  Command = 0x0007
	RXBW_67K     Command = 0x00C0
	RXBW_134K    Command = 0x00A0
	RXBW_200K    Command = 0x0080
	RXBW_270K    Command = 0x0060
	RXBW_340K    Command = 0x0040
	RXBW_400K    Command = 0x0020
	DRSSIT_103db Command = 0x0000
	DRSSIT_97db  Command = 0x0001
	DRSSIT_91db  Command = 0x0002
	DRSSIT_85db  Command = 0x0003
	DRSSIT_79db  Command = 0x0004
	DRSSIT_73db  Command = 0x0005
)

// Transmit configuration register.
const (
	TXCREG      Command = 0x9800
	MODPLY      Command = 0x0100
	MODBW_MASK  Command = 0x00F0
	OTXPWR_MASK Command = 0x0007
	MODBW_30K   Command = 0x0010
	OTXPWR_0    Command = 0x0000
)

// Data rate value set register.
const (
	DRSREG    Command = 0xC600
	DRPE      Command = 0x0080 // Prescaler enable
	DRPV_MASK Command = 0x007F
)

// PLL configuration register.
const (
	PLLCREG Command = 0xCC12
	CBTC_5p Command = 0x0060
	PDDS    Command = 0x0008
	PLLDD   Command = 0x0004
	PLLBWB  Command = 0x0001
)

// Settings fixed by the board: 434 MHz band, 10pF crystal, 8 bit FIFO fill.
const (
	GENCREG_SET = GENCREG | (LCS & LCS_MASK) | FBS_434
	AFCCREG_SET = AFCCREG | AUTOMS_INDP | ARFO_3to4 | HAM | FOFEN
	PLLCREG_SET = PLLCREG | CBTC_5p

	// FIFORSTREG as the driver writes it.  Sensitive reset mode is
	// always disabled.
	FIFORST_BASE = FIFORSTREG | DRSTM | ((8 << 4) & FFBC_MASK)
)

var commandNames = []struct {
	mask Command
	reg  Command
	name string
}{
	{0xFFFF, STSREG, "STSREG"},
	{0xFF00, PMCREG, "PMCREG"},
	{0xFF00, GENCREG, "GENCREG"},
	{0xFF00, TXBREG, "TXBREG"},
	{0xFF00, RXFIFOREG, "RXFIFOREG"},
	{0xFF00, FIFORSTREG, "FIFORSTREG"},
	{0xFF00, SYNBREG, "SYNBREG"},
	{0xFF00, AFCCREG, "AFCCREG"},
	{0xFF00, DRSREG, "DRSREG"},
	{0xFF00, PLLCREG & 0xFF00, "PLLCREG"},
	{0xFF00, BBFCREG & 0xFF00, "BBFCREG"},
	{0xF000, CFSREG, "CFSREG"},
	{0xF800, RXCREG, "RXCREG"},
	{0xF800, TXCREG, "TXCREG"},
}

// Register returns the register address c writes to, without the settings.
func (c Command) Register() Command {
	for _, n := range commandNames {
		if c&n.mask == n.reg {
			return n.reg
		}
	}
	return c & 0xFF00
}

func (c Command) String() string {
	for _, n := range commandNames {
		if c&n.mask == n.reg {
			return fmt.Sprintf("%s(%#04x)", n.name, uint16(c))
		}
	}
	return fmt.Sprintf("%#04x", uint16(c))
}

var statusNames = []struct {
	bit  Command
	name string
}{
	{TXRXFIFO, "TXRXFIFO"},
	{POR, "POR"},
	{TXOWRXOF, "TXOWRXOF"},
	{WUTINT, "WUTINT"},
	{LCEXINT, "LCEXINT"},
	{LBTD, "LBTD"},
	{FIFOEM, "FIFOEM"},
	{ATTRSSI, "ATTRSSI"},
	{DQDO, "DQDO"},
	{CLKRL, "CLKRL"},
	{AFCCT, "AFCCT"},
	{OFFSV, "OFFSV"},
}

// FormatStatus lists the flags set in a status word, e.g. "POR|FIFOEM",
// followed by the AFC offset in the low four bits.
func FormatStatus(s uint16) string {
	var out []byte

	for _, n := range statusNames {
		if Command(s)&n.bit != 0 {
			if len(out) > 0 {
				out = append(out, '|')
			}
			out = append(out, n.name...)
		}
	}
	if len(out) == 0 {
		out = append(out, '-')
	}

	return fmt.Sprintf("%s offset=%d", out, s&0x000F)
}
