//go:build linux && amd64

package hw

import (
	"fmt"
	"os"
	"sync"

	"github.com/u-root/u-root/pkg/memio"
	"golang.org/x/sys/unix"
)

var elevated struct {
	sync.Mutex
	ok bool
}

// Elevate raises the process I/O privilege level to 3 so ArchPort may issue
// in/out instructions on any port. The PCI, EC and PM blocks we touch are
// spread over the port space and PMBASE is only known after a PCI read, so a
// single iopl is used rather than per-range ioperm calls.
func Elevate() error {
	elevated.Lock()
	defer elevated.Unlock()
	if elevated.ok {
		return nil
	}
	if os.Geteuid() != 0 {
		return &OpError{Op: "iopl", Err: fmt.Errorf("%w: must be run as root", ErrPermissionDenied)}
	}
	if err := unix.Iopl(3); err != nil {
		return &OpError{Op: "iopl", Err: fmt.Errorf("%w: %w", ErrPermissionDenied, err)}
	}
	elevated.ok = true
	return nil
}

// ArchPort issues in/out instructions through u-root's memio.ArchPort.
// Elevate must have succeeded before any method is called.
type ArchPort struct {
	port *memio.ArchPort
}

// NewArchPort returns an ArchPort, or ErrPermissionDenied if Elevate has not
// been called successfully.
func NewArchPort() (*ArchPort, error) {
	elevated.Lock()
	defer elevated.Unlock()
	if !elevated.ok {
		return nil, &OpError{Op: "port", Err: fmt.Errorf("%w: I/O privilege not granted", ErrPermissionDenied)}
	}
	return &ArchPort{port: &memio.ArchPort{}}, nil
}

// In8 implements Port.
func (a *ArchPort) In8(port uint16) (uint8, error) {
	var v memio.Uint8
	if err := a.port.In(port, &v); err != nil {
		return 0, &OpError{Op: fmt.Sprintf("inb 0x%x", port), Err: err}
	}
	return uint8(v), nil
}

// In32 implements Port.
func (a *ArchPort) In32(port uint16) (uint32, error) {
	var v memio.Uint32
	if err := a.port.In(port, &v); err != nil {
		return 0, &OpError{Op: fmt.Sprintf("inl 0x%x", port), Err: err}
	}
	return uint32(v), nil
}

// Out8 implements Port.
func (a *ArchPort) Out8(port uint16, value uint8) error {
	v := memio.Uint8(value)
	if err := a.port.Out(port, &v); err != nil {
		return &OpError{Op: fmt.Sprintf("outb 0x%x", port), Err: err}
	}
	return nil
}

// Out32 implements Port.
func (a *ArchPort) Out32(port uint16, value uint32) error {
	v := memio.Uint32(value)
	if err := a.port.Out(port, &v); err != nil {
		return &OpError{Op: fmt.Sprintf("outl 0x%x", port), Err: err}
	}
	return nil
}
