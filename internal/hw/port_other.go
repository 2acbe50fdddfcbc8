//go:build !(linux && amd64)

package hw

import (
	"fmt"
	"syscall"
)

// Elevate is only supported on linux/amd64.
func Elevate() error {
	return &OpError{Op: "iopl", Err: fmt.Errorf("%w: %w", ErrPermissionDenied, syscall.ENOSYS)}
}

// ArchPort is unavailable on this platform; every access fails.
type ArchPort struct{}

// NewArchPort always fails on this platform.
func NewArchPort() (*ArchPort, error) {
	return nil, Elevate()
}

func (*ArchPort) In8(port uint16) (uint8, error) {
	return 0, &OpError{Op: fmt.Sprintf("inb 0x%x", port), Err: syscall.ENOSYS}
}

func (*ArchPort) In32(port uint16) (uint32, error) {
	return 0, &OpError{Op: fmt.Sprintf("inl 0x%x", port), Err: syscall.ENOSYS}
}

func (*ArchPort) Out8(port uint16, value uint8) error {
	return &OpError{Op: fmt.Sprintf("outb 0x%x", port), Err: syscall.ENOSYS}
}

func (*ArchPort) Out32(port uint16, value uint32) error {
	return &OpError{Op: fmt.Sprintf("outl 0x%x", port), Err: syscall.ENOSYS}
}
