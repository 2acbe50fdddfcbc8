// Package lpc manages the ICH9 LPC generic I/O decode ranges (GEN1_DEC to
// GEN4_DEC). A port that no range covers is never forwarded to the LPC bus,
// so the EC behind it is unreachable.
package lpc

import (
	"errors"
	"fmt"

	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/log"
	"github.com/junevm/flashunlock/internal/pci"
)

// Slots is the number of generic decode ranges.
const Slots = 4

// DecodeRegisters are the configuration offsets of GEN1_DEC..GEN4_DEC.
var DecodeRegisters = [Slots]uint8{0x84, 0x88, 0x8c, 0x90}

const (
	enableBit = 1 << 0
	addrMask  = 0xfffc
	// dwordMask is always part of a decoded mask: ranges are dword granular.
	dwordMask = 0x3
)

// ErrNoFreeSlot is returned when every decode range is in use and none of
// them covers the requested port.
var ErrNoFreeSlot = errors.New("no free LPC decode range")

// Range is one decoded GENx_DEC register.
type Range struct {
	Slot    int
	Base    uint16
	Mask    uint16
	Enabled bool
	Raw     uint32
}

// Decode unpacks the register value v of slot.
func Decode(slot int, v uint32) Range {
	return Range{
		Slot:    slot,
		Base:    uint16(v & addrMask),
		Mask:    uint16((v>>16)&addrMask) | dwordMask,
		Enabled: v&enableBit != 0,
		Raw:     v,
	}
}

// Encode packs a range starting at base spanning a single dword.
func Encode(base uint16) uint32 {
	return uint32(base&addrMask) | enableBit
}

// Covers reports whether port falls inside the range. Enabled is not
// considered.
func (r Range) Covers(port uint16) bool {
	return port&^r.Mask == r.Base
}

// Size returns how many ports the range decodes.
func (r Range) Size() int {
	return int(r.Mask) + 1
}

func (r Range) String() string {
	if !r.Enabled {
		return fmt.Sprintf("GEN%d_DEC disabled", r.Slot+1)
	}
	return fmt.Sprintf("GEN%d_DEC 0x%04x-0x%04x", r.Slot+1, r.Base, uint32(r.Base)+uint32(r.Mask))
}

// Configurator reads and programs the decode ranges of one LPC bridge.
type Configurator struct {
	cfg *pci.Config
	dev pci.Device
}

// New returns a Configurator for the LPC bridge dev.
func New(cfg *pci.Config, dev pci.Device) *Configurator {
	return &Configurator{cfg: cfg, dev: dev}
}

// Ranges reads all decode ranges.
func (c *Configurator) Ranges() ([Slots]Range, error) {
	var out [Slots]Range
	for i, reg := range DecodeRegisters {
		v, err := c.cfg.Read32(c.dev, reg)
		if err != nil {
			return out, err
		}
		out[i] = Decode(i, v)
	}
	return out, nil
}

// Ensure makes sure port is decoded to the LPC bus. It returns false without
// writing anything when an enabled range already covers port. Otherwise the
// first disabled range is programmed for the dword containing port, read
// back and true returned.
func (c *Configurator) Ensure(port uint16) (bool, error) {
	ranges, err := c.Ranges()
	if err != nil {
		return false, err
	}

	free := -1
	for _, r := range ranges {
		if !r.Enabled {
			if free < 0 {
				free = r.Slot
			}
			continue
		}
		if r.Covers(port) {
			log.Debugf("port 0x%x already decoded by %s", port, r)
			return false, nil
		}
	}
	if free < 0 {
		return false, fmt.Errorf("%w for port 0x%x", ErrNoFreeSlot, port)
	}

	reg := DecodeRegisters[free]
	v := Encode(port)
	log.Debugf("programming GEN%d_DEC (0x%02x) = 0x%08x", free+1, reg, v)
	if err := c.cfg.Write32(c.dev, reg, v); err != nil {
		return false, err
	}

	got, err := c.cfg.Read32(c.dev, reg)
	if err != nil {
		return false, err
	}
	if r := Decode(free, got); !r.Enabled || !r.Covers(port) {
		return false, &hw.OpError{
			Op:  fmt.Sprintf("program GEN%d_DEC", free+1),
			Err: fmt.Errorf("%w: wrote 0x%08x, read back 0x%08x", hw.ErrHardwareRefusal, v, got),
		}
	}
	return true, nil
}
