package hw

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionRead(t *testing.T) {
	data := []byte{0x00, 0x20, 0x34, 0x12, 0x78, 0x56}
	r := NewRegion(0xfed18000, data)

	v16, err := r.Read16(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2000), v16)

	v32, err := r.Read32(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x56781234), v32)

	assert.Equal(t, int64(0xfed18000), r.Base())
	assert.Equal(t, 6, r.Len())
}

func TestRegionBounds(t *testing.T) {
	r := NewRegion(0, make([]byte, 8))

	for _, tc := range []struct {
		name   string
		read   func() error
		failed bool
	}{
		{"read16_last", func() error { _, err := r.Read16(6); return err }, false},
		{"read16_past_end", func() error { _, err := r.Read16(7); return err }, true},
		{"read32_last", func() error { _, err := r.Read32(4); return err }, false},
		{"read32_past_end", func() error { _, err := r.Read32(5); return err }, true},
		{"negative", func() error { _, err := r.Read32(-1); return err }, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read()
			if !tc.failed {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrMemoryMap)
			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
		})
	}
}

func TestRegionClose(t *testing.T) {
	r := NewRegion(0, make([]byte, 4))
	require.NoError(t, r.Close())

	_, err := r.Read16(0)
	require.ErrorIs(t, err, ErrMemoryMap)
}

func TestOpErrorUnwrapsErrno(t *testing.T) {
	err := error(&OpError{Op: "iopl", Err: errors.Join(ErrPermissionDenied, syscall.EPERM)})

	require.ErrorIs(t, err, ErrPermissionDenied)
	var errno syscall.Errno
	require.ErrorAs(t, err, &errno)
	assert.Equal(t, syscall.EPERM, errno)
	assert.Contains(t, err.Error(), "iopl")
}
