package hw

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

// DevMem is the character device physical memory is mapped from.
const DevMem = "/dev/mem"

// Region is a read-only window of physical memory.
type Region struct {
	base int64
	data []byte

	// f and unmap are nil for regions that wrap a plain byte slice.
	f     *os.File
	unmap func([]byte) error
}

// NewRegion wraps data as if it had been mapped from physical address base.
func NewRegion(base int64, data []byte) *Region {
	return &Region{base: base, data: data}
}

// Base returns the physical address of the first byte of the window.
func (r *Region) Base() int64 {
	return r.base
}

// Len returns the size of the window in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

func (r *Region) check(offset, width int) error {
	if offset < 0 || offset+width > len(r.data) {
		return &OpError{
			Op:  fmt.Sprintf("read%d 0x%x+0x%x", width*8, r.base, offset),
			Err: fmt.Errorf("%w: offset outside 0x%x byte window", ErrMemoryMap, len(r.data)),
		}
	}
	return nil
}

// Read16 reads a little-endian 16-bit register at offset.
func (r *Region) Read16(offset int) (uint16, error) {
	if err := r.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), nil
}

// Read32 reads a little-endian 32-bit register at offset.
func (r *Region) Read32(offset int) (uint32, error) {
	if err := r.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), nil
}

// Close unmaps the window and closes the backing device.
func (r *Region) Close() error {
	var result *multierror.Error
	if r.unmap != nil && r.data != nil {
		if err := r.unmap(r.data); err != nil {
			result = multierror.Append(result, fmt.Errorf("munmap: %w", err))
		}
	}
	r.data = nil
	if r.f != nil {
		if err := r.f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		r.f = nil
	}
	return result.ErrorOrNil()
}
