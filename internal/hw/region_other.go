//go:build !linux

package hw

import (
	"fmt"
	"syscall"
)

// MapPhysical is only supported on linux.
func MapPhysical(path string, base int64, length int) (*Region, error) {
	return nil, &OpError{Op: fmt.Sprintf("mmap 0x%x", base), Err: fmt.Errorf("%w: %w", ErrMemoryMap, syscall.ENOSYS)}
}
