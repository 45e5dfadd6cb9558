package mrf49xa

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*NVStore, string) {
	t.Helper()

	var path = filepath.Join(t.TempDir(), "nv.bin")
	var s, err = OpenNVStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, path
}

func TestNVBlankStoreGetsDefaults(t *testing.T) {
	var s, path = openTestStore(t)

	var m, err = s.BootMode()
	require.NoError(t, err)
	assert.Equal(t, ModeSerial, m)

	assert.Equal(t, DefaultRegisters, s.Registers())

	var image, readErr = os.ReadFile(path)
	require.NoError(t, readErr)
	require.Len(t, image, nvImageSize)

	// Boot mode is stored Hamming coded, little endian.
	var bootWord = EncodeByte(byte(ModeSerial))
	assert.Equal(t, []byte{byte(bootWord), byte(bootWord >> 8)}, image[nvBootMode:nvBootMode+2])
	assert.Equal(t, []byte{0xF7, 0xC4}, image[0x04:0x06], "AFCCREG")
	assert.Equal(t, []byte{0x77, 0xCC}, image[0x14:0x16], "PLLCREG")
}

func TestNVBootModeRoundTrip(t *testing.T) {
	var s, path = openTestStore(t)

	require.NoError(t, s.SetBootMode(ModeSerialECC))

	var m, err = s.BootMode()
	require.NoError(t, err)
	assert.Equal(t, ModeSerialECC, m)

	// And across a reopen.
	require.NoError(t, s.Close())
	var s2, openErr = OpenNVStore(path)
	require.NoError(t, openErr)
	defer s2.Close()

	m, err = s2.BootMode()
	require.NoError(t, err)
	assert.Equal(t, ModeSerialECC, m)
}

func TestNVBootModeSurvivesBitError(t *testing.T) {
	var s, path = openTestStore(t)
	require.NoError(t, s.SetBootMode(ModeSerialECC))
	require.NoError(t, s.Close())

	var image, err = os.ReadFile(path)
	require.NoError(t, err)
	image[nvBootMode] ^= 0x01
	require.NoError(t, os.WriteFile(path, image, 0o644))

	var s2, openErr = OpenNVStore(path)
	require.NoError(t, openErr)
	defer s2.Close()

	var m, _ = s2.BootMode()
	assert.Equal(t, ModeSerialECC, m)
}

func TestNVBadBootModeRestoresDefaults(t *testing.T) {
	var s, _ = openTestStore(t)

	var tr, bus = newTestTransceiver(t)
	require.NoError(t, s.SetDefaults())
	require.NoError(t, s.SetRegisterValue(tr, 2, 0xA640))
	bus.take()

	// Capture is a valid mode but not a boot mode.
	s.putWord(nvBootMode, EncodeByte(byte(ModeCapture)))

	var m, err = s.BootMode()
	require.NoError(t, err)
	assert.Equal(t, ModeSerial, m)

	var cfs, _ = s.Register(2)
	assert.Equal(t, Command(0xA348), cfs, "registers back to defaults")

	assert.Error(t, s.SetBootMode(ModeTestPing))
}

func TestNVSetRegisterValue(t *testing.T) {
	var s, _ = openTestStore(t)
	require.NoError(t, s.SetDefaults())

	var tr, bus = newTestTransceiver(t)

	require.NoError(t, s.SetRegisterValue(tr, 7, DRSREG|0x11))
	var writes = bus.take()
	require.NotEmpty(t, writes)
	assert.Equal(t, DRSREG|0x11, writes[0])
	assert.Equal(t, PMCREG, writes[1], "reset follows")
	assert.Equal(t, PMCREG|RXCEN, writes[len(writes)-1])

	var v, err = s.Register(7)
	require.NoError(t, err)
	assert.Equal(t, DRSREG|0x11, v)

	// RXCREG always keeps the FIFO interrupt on the IRQ pin.
	require.NoError(t, s.SetRegisterValue(tr, 3, RXCREG|RXBW_134K))
	v, _ = s.Register(3)
	assert.Equal(t, RXCREG|FINTDIO|RXBW_134K, v)
	assert.Equal(t, RXCREG|FINTDIO|RXBW_134K, bus.take()[0])

	// Bad index changes nothing.
	var before = s.Registers()
	assert.ErrorIs(t, s.SetRegisterValue(tr, 9, 0x1234), ErrRegisterIndex)
	assert.ErrorIs(t, s.SetRegisterValue(tr, -1, 0x1234), ErrRegisterIndex)
	assert.Equal(t, before, s.Registers())
	assert.Empty(t, bus.take())
}

func TestNVApplySavedRegisters(t *testing.T) {
	var s, _ = openTestStore(t)
	require.NoError(t, s.SetDefaults())

	var tr, bus = newTestTransceiver(t)
	s.ApplySavedRegisters(tr)

	var writes = bus.take()
	require.Len(t, writes, SavedRegisterCount)
	assert.Equal(t, Command(0xC4F7), writes[0])
	assert.Equal(t, Command(0xCC77), writes[8])

	// FIFORSTREG (0xCA81) goes through the user-bit filter.
	assert.Equal(t, FIFORST_BASE|DRSTM|FSCF, writes[5])
}

func TestNVPrintSavedRegisters(t *testing.T) {
	var s, _ = openTestStore(t)
	require.NoError(t, s.SetDefaults())

	var buf bytes.Buffer
	require.NoError(t, s.PrintSavedRegisters(&buf))

	assert.Contains(t, buf.String(), "0) AFCCREG:    C4F7\n")
	assert.Contains(t, buf.String(), "5) FIFORSTREG: CA81\n")
	assert.Contains(t, buf.String(), "8) PLLCREG:    CC77\n")
}

func TestNVLocked(t *testing.T) {
	var _, path = openTestStore(t)

	var _, err = OpenNVStore(path)
	assert.ErrorIs(t, err, ErrNVLocked)
}
