package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Register settings and boot mode that survive a restart.
 *
 * Description:	The board keeps these in a small EEPROM.  Here they
 *		live in a file holding the same image: 16-bit words,
 *		little endian, at fixed offsets.
 *
 *			0x00	unused
 *			0x02	boot mode, Hamming coded
 *			0x04	AFCCREG
 *			0x06	TXCREG
 *			0x08	CFSREG
 *			0x0A	RXCREG
 *			0x0C	BBFCREG
 *			0x0E	FIFORSTREG
 *			0x10	SYNBREG
 *			0x12	DRSREG
 *			0x14	PLLCREG
 *
 *		The file is locked while open so two programs can't
 *		both think they own the radio settings.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	nvBootMode  = 0x02
	nvRegisters = 0x04
	nvImageSize = 0x16
)

// SavedRegisterCount is the number of user-controlled registers.
const SavedRegisterCount = 9

// SavedRegisterNames are in storage order, which is also the order they are applied.
var SavedRegisterNames = [SavedRegisterCount]string{
	"AFCCREG", "TXCREG", "CFSREG", "RXCREG", "BBFCREG",
	"FIFORSTREG", "SYNBREG", "DRSREG", "PLLCREG",
}

// DefaultRegisters are written whenever the stored image is unusable.
var DefaultRegisters = [SavedRegisterCount]Command{
	0xC4F7, 0x9810, 0xA348, 0x94C0, 0xC2AC,
	0xCA81, 0xCED4, 0xC623, 0xCC77,
}

const rxcregIndex = 3

var ErrRegisterIndex = errors.New("register index out of range")
var ErrNVLocked = errors.New("register store in use by another process")

// NVStore is an open register image.
type NVStore struct {
	mu    sync.Mutex
	f     *os.File
	image [nvImageSize]byte
}

/*-------------------------------------------------------------------
 *
 * Name:	OpenNVStore
 *
 * Purpose:	Open, lock and read the register image.
 *
 * Inputs:	path	- Image file.  Created if missing; a new or
 *			  short file reads as zeros, which BootMode
 *			  treats as blank and fills with defaults.
 *
 *--------------------------------------------------------------------*/

func OpenNVStore(path string) (*NVStore, error) {
	var f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open register store: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrNVLocked, path)
		}
		return nil, fmt.Errorf("lock register store %s: %w", path, err)
	}

	var s = &NVStore{f: f}

	if _, err := f.ReadAt(s.image[:], 0); err != nil && !errors.Is(err, io.EOF) {
		s.Close()
		return nil, fmt.Errorf("read register store %s: %w", path, err)
	}

	return s, nil
}

// Close unlocks and closes the image file.
func (s *NVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unix.Flock(int(s.f.Fd()), unix.LOCK_UN) //nolint:errcheck

	return s.f.Close()
}

func (s *NVStore) word(off int) uint16 {
	return binary.LittleEndian.Uint16(s.image[off:])
}

func (s *NVStore) putWord(off int, v uint16) {
	binary.LittleEndian.PutUint16(s.image[off:], v)
}

func (s *NVStore) flush() error {
	if _, err := s.f.WriteAt(s.image[:], 0); err != nil {
		return fmt.Errorf("write register store: %w", err)
	}
	return s.f.Sync()
}

/*-------------------------------------------------------------------
 *
 * Name:	BootMode
 *
 * Purpose:	Mode to enter at power up.
 *
 * Returns:	ModeSerial or ModeSerialECC.  Anything else in the image
 *		means it is blank or damaged, so the whole image is
 *		rewritten with defaults and ModeSerial is returned.
 *
 *--------------------------------------------------------------------*/

func (s *NVStore) BootMode() (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m = Mode(DecodeByte(s.word(nvBootMode)))
	if m.Bootable() {
		return m, nil
	}

	logger.Warn("stored boot mode invalid, restoring register defaults", "mode", m)

	return ModeSerial, s.setDefaults()
}

// SetBootMode stores m for the next start.
func (s *NVStore) SetBootMode(m Mode) error {
	if !m.Bootable() {
		return fmt.Errorf("mode %s can't be a boot mode", m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putWord(nvBootMode, EncodeByte(byte(m)))

	return s.flush()
}

// SetDefaults rewrites the whole image with factory values.
func (s *NVStore) SetDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setDefaults()
}

func (s *NVStore) setDefaults() error {
	s.putWord(nvBootMode, EncodeByte(byte(ModeSerial)))
	for i, v := range DefaultRegisters {
		s.putWord(nvRegisters+2*i, uint16(v))
	}

	return s.flush()
}

// Register returns stored register i, in SavedRegisterNames order.
func (s *NVStore) Register(i int) (Command, error) {
	if i < 0 || i >= SavedRegisterCount {
		return 0, fmt.Errorf("%w: %d", ErrRegisterIndex, i)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return Command(s.word(nvRegisters + 2*i)), nil
}

// Registers returns all stored registers.
func (s *NVStore) Registers() [SavedRegisterCount]Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs [SavedRegisterCount]Command
	for i := range regs {
		regs[i] = Command(s.word(nvRegisters + 2*i))
	}

	return regs
}

// ApplySavedRegisters writes every stored register to the chip.
func (s *NVStore) ApplySavedRegisters(t *Transceiver) {
	for _, v := range s.Registers() {
		t.SetRegister(v)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	SetRegisterValue
 *
 * Purpose:	Change one stored register and apply it right away.
 *
 * Inputs:	t	- Transceiver to apply it to.
 *		i	- Index in SavedRegisterNames order.
 *		value	- Full command word.
 *
 * Description:	RXCREG always gets FINTDIO, otherwise the FIFO interrupt
 *		would stop reaching the IRQ pin.  The transceiver is
 *		reset afterwards so the new setting takes effect cleanly.
 *
 * Returns:	ErrRegisterIndex, with nothing changed, for a bad index.
 *
 *--------------------------------------------------------------------*/

func (s *NVStore) SetRegisterValue(t *Transceiver, i int, value Command) error {
	if i < 0 || i >= SavedRegisterCount {
		return fmt.Errorf("%w: %d", ErrRegisterIndex, i)
	}

	if i == rxcregIndex {
		value |= FINTDIO
	}

	s.mu.Lock()
	s.putWord(nvRegisters+2*i, uint16(value))
	var err = s.flush()
	s.mu.Unlock()

	t.SetRegister(value)
	t.Reset()

	return err
}

// PrintSavedRegisters writes the numbered register list shown by the setup menu.
func (s *NVStore) PrintSavedRegisters(w io.Writer) error {
	for i, v := range s.Registers() {
		if _, err := fmt.Fprintf(w, "%d) %-11s %04X\n", i, SavedRegisterNames[i]+":", uint16(v)); err != nil {
			return err
		}
	}

	return nil
}
