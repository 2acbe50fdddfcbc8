//go:build linux

package hw

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapPhysical maps length bytes of physical memory starting at base
// read-only from the device at path (normally DevMem).
func MapPhysical(path string, base int64, length int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_SYNC, 0)
	if err != nil {
		return nil, &OpError{Op: "open " + path, Err: fmt.Errorf("%w: %w", ErrMemoryMap, err)}
	}
	data, err := unix.Mmap(int(f.Fd()), base, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, &OpError{Op: fmt.Sprintf("mmap 0x%x", base), Err: fmt.Errorf("%w: %w", ErrMemoryMap, err)}
	}
	return &Region{base: base, data: data, f: f, unmap: unix.Munmap}, nil
}
