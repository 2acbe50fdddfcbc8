// Package hw is the raw hardware accessor: x86 port I/O, read-only views of
// physical memory and the process I/O privilege needed to use them.
//
// Everything else in flashunlock talks to the chipset through the Port and
// MMIO interfaces defined here, so tests can swap in the simulated platform
// from the hwtest package.
package hw

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the process could not be granted I/O
	// privilege (not root, or the kernel refused).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMemoryMap means a physical memory window could not be mapped or an
	// access fell outside of it.
	ErrMemoryMap = errors.New("physical memory map failed")

	// ErrHardwareRefusal means a register did not hold the value written to
	// it when read back.
	ErrHardwareRefusal = errors.New("hardware refused register write")
)

// Port is byte and dword access to the x86 I/O port space.
type Port interface {
	In8(port uint16) (uint8, error)
	In32(port uint16) (uint32, error)
	Out8(port uint16, value uint8) error
	Out32(port uint16, value uint32) error
}

// MMIO is fixed-width read access to a mapped physical register block.
// Offsets are relative to the start of the block.
type MMIO interface {
	Read16(offset int) (uint16, error)
	Read32(offset int) (uint32, error)
}

// OpError records the hardware operation that failed.
type OpError struct {
	Op  string
	Err error
}

// Error returns the string representation of OpError
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Context is the hardware a single run works against. It is built once,
// after privileges are granted and RCBA is mapped, and handed to every
// component instead of living in globals.
type Context struct {
	Port Port
	RCBA MMIO

	// PMBase is the power-management I/O base discovered from the LPC
	// bridge. Zero until discovered.
	PMBase uint16
}
