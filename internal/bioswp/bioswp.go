// Package bioswp probes the BIOS write protection bits in the LPC bridge's
// BIOS_CNTL register and tries to lift them.
package bioswp

import (
	"fmt"

	"github.com/junevm/flashunlock/internal/log"
	"github.com/junevm/flashunlock/internal/pci"
)

// ControlRegister is the BIOS_CNTL offset in LPC configuration space.
const ControlRegister = 0xdc

// Status is the BIOS_CNTL byte.
type Status uint8

const (
	// WriteEnable (BIOSWE) allows writes to the BIOS region.
	WriteEnable Status = 1 << 0
	// LockEnable (BLE) raises an SMI whenever WriteEnable is set. It can
	// only be cleared by a platform reset.
	LockEnable Status = 1 << 1
	// SMMWriteProtect (SMM_BWP) restricts BIOS writes to SMM.
	SMMWriteProtect Status = 1 << 5

	protectionBits = LockEnable | SMMWriteProtect
)

// Locked reports whether either protection bit is set.
func (s Status) Locked() bool {
	return s&protectionBits != 0
}

// WriteEnabled reports whether BIOSWE is set.
func (s Status) WriteEnabled() bool {
	return s&WriteEnable != 0
}

func (s Status) String() string {
	return fmt.Sprintf("BIOS_CNTL=0x%02x (BIOSWE=%t BLE=%t SMM_BWP=%t)",
		uint8(s), s&WriteEnable != 0, s&LockEnable != 0, s&SMMWriteProtect != 0)
}

// Prober reads and writes BIOS_CNTL of one LPC bridge.
type Prober struct {
	cfg *pci.Config
	dev pci.Device
}

// New returns a Prober for the LPC bridge dev.
func New(cfg *pci.Config, dev pci.Device) *Prober {
	return &Prober{cfg: cfg, dev: dev}
}

// Status reads BIOS_CNTL without changing it.
func (p *Prober) Status() (Status, error) {
	v, err := p.cfg.Read32(p.dev, ControlRegister)
	if err != nil {
		return 0, err
	}
	return Status(v), nil
}

// ProbeAndClear reports whether the BIOS region can be written. With both
// protection bits clear it returns true and writes nothing. Otherwise it sets
// BIOSWE anyway and returns whether the bit is still set when read back;
// with BLE armed and SMIs enabled the firmware's SMI handler clears it again.
// A false result is an answer, not an error.
func (p *Prober) ProbeAndClear() (bool, error) {
	v, err := p.cfg.Read32(p.dev, ControlRegister)
	if err != nil {
		return false, err
	}
	s := Status(v)
	if !s.Locked() {
		log.Debugf("BIOS write protection absent: %s", s)
		return true, nil
	}

	log.Debugf("BIOS write protection armed: %s, setting BIOSWE", s)
	if err := p.cfg.Write32(p.dev, ControlRegister, v|uint32(WriteEnable)); err != nil {
		return false, err
	}
	got, err := p.Status()
	if err != nil {
		return false, err
	}
	log.Debugf("after BIOSWE write: %s", got)
	return got.WriteEnabled(), nil
}
