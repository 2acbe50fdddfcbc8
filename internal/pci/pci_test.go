package pci

import (
	"errors"
	"testing"

	"github.com/junevm/flashunlock/internal/hw/hwtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDev(t *testing.T) {
	assert.Equal(t, Device(0x8000f800), LPC)
	assert.Equal(t, Device(0x80010a00), Dev(1, 1, 2))
	assert.Equal(t, "00:1f.0", LPC.String())
}

func TestReadWrite32(t *testing.T) {
	p := hwtest.New()
	p.SetPCI(uint32(LPC)|0x40, 0x00001001)
	c := New(p)

	v, err := c.Read32(LPC, 0x40)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00001001), v)

	require.NoError(t, c.Write32(LPC, 0x84, 0x00000911))
	assert.Equal(t, uint32(0x00000911), p.GetPCI(uint32(LPC)|0x84))

	require.Equal(t, []hwtest.Access{
		{Port: ConfigAddress, Width: 32, Value: uint32(LPC) | 0x40},
		{Port: ConfigAddress, Width: 32, Value: uint32(LPC) | 0x84},
		{Port: ConfigData, Width: 32, Value: 0x00000911},
	}, p.Writes)
}

func TestMisalignedRegisterReadsContainingDword(t *testing.T) {
	p := hwtest.New()
	p.SetPCI(uint32(LPC)|0xdc, 0x0000002a)
	c := New(p)

	v, err := c.Read32(LPC, 0xde)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0000002a), v)
}

func TestPortErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	c := New(hwtest.FailingPort{Err: boom})

	_, err := c.Read32(LPC, 0x40)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, c.Write32(LPC, 0x40, 0), boom)
}
