// Package smi controls the global SMI enable bit (GBL_SMI_EN) in the ICH9
// power management I/O block.
package smi

import (
	"errors"
	"fmt"

	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/log"
	"github.com/junevm/flashunlock/internal/pci"
)

const (
	// PMBaseRegister is the ACPI base address (PMBASE) offset in LPC
	// configuration space.
	PMBaseRegister = 0x40
	// PMBaseMask keeps the address bits of PMBASE.
	PMBaseMask = 0xff80

	// EnableOffset is SMI_EN relative to PMBASE.
	EnableOffset = 0x30
	// GlobalEnable is GBL_SMI_EN.
	GlobalEnable = 1 << 0
)

// ErrNoPMBase is returned when the LPC bridge reports no PM I/O block.
var ErrNoPMBase = errors.New("PMBASE not programmed")

// DiscoverPMBase reads PMBASE from the LPC bridge dev.
func DiscoverPMBase(cfg *pci.Config, dev pci.Device) (uint16, error) {
	v, err := cfg.Read32(dev, PMBaseRegister)
	if err != nil {
		return 0, err
	}
	base := uint16(v & PMBaseMask)
	if base == 0 {
		return 0, fmt.Errorf("%w: %s register 0x%02x reads 0x%08x", ErrNoPMBase, dev, PMBaseRegister, v)
	}
	log.Debugf("PMBASE 0x%04x", base)
	return base, nil
}

// Gate reads and writes GBL_SMI_EN.
type Gate struct {
	port hw.Port
	reg  uint16
}

// NewGate returns a Gate for the PM block at pmbase, which must have been
// discovered first.
func NewGate(port hw.Port, pmbase uint16) (*Gate, error) {
	if pmbase == 0 {
		return nil, ErrNoPMBase
	}
	return &Gate{port: port, reg: pmbase + EnableOffset}, nil
}

// Register returns the SMI_EN port.
func (g *Gate) Register() uint16 {
	return g.reg
}

// Raw returns the whole SMI_EN register.
func (g *Gate) Raw() (uint32, error) {
	v, err := g.port.In32(g.reg)
	if err != nil {
		return 0, fmt.Errorf("failed to read SMI_EN at 0x%x: %w", g.reg, err)
	}
	return v, nil
}

// Enabled reports whether SMIs are globally enabled.
func (g *Gate) Enabled() (bool, error) {
	v, err := g.Raw()
	if err != nil {
		return false, err
	}
	return v&GlobalEnable != 0, nil
}

// SetEnabled sets or clears GBL_SMI_EN, leaving the other bits of SMI_EN
// alone, and returns the state read back afterwards. The hardware may ignore
// the write (GBL_SMI_EN is lockable), so callers compare the result with what
// they asked for.
func (g *Gate) SetEnabled(on bool) (bool, error) {
	v, err := g.Raw()
	if err != nil {
		return false, err
	}
	if on {
		v |= GlobalEnable
	} else {
		v &^= GlobalEnable
	}
	log.Debugf("SMI_EN 0x%x <- 0x%08x", g.reg, v)
	if err := g.port.Out32(g.reg, v); err != nil {
		return false, fmt.Errorf("failed to write SMI_EN at 0x%x: %w", g.reg, err)
	}
	return g.Enabled()
}
