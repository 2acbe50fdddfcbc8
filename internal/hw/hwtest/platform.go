// Package hwtest simulates the parts of an ICH9M platform flashunlock talks
// to: PCI configuration mechanism #1, the Dell EC index/data pair and a
// plain I/O register file for everything else (the PM block).
package hwtest

import (
	"fmt"
	"sync"
)

const (
	pciConfigAddress = 0xcf8
	pciConfigData    = 0xcfc

	// DefaultECIndex and DefaultECData are the EC ports on the E6400.
	DefaultECIndex = 0x910
	DefaultECData  = 0x911
)

// Access is one recorded port write.
type Access struct {
	Port  uint16
	Width int
	Value uint32
}

func (a Access) String() string {
	return fmt.Sprintf("out%d 0x%x <- 0x%x", a.Width, a.Port, a.Value)
}

// Platform implements hw.Port over simulated registers. The zero value is
// not usable; call New.
type Platform struct {
	mu sync.Mutex

	// PCI holds configuration dwords keyed by the CF8 address with the low
	// two bits cleared (enable bit, bus, device, function and register).
	PCI map[uint32]uint32
	// PCIWriteHook, if set, decides what a PCI config write actually stores.
	PCIWriteHook func(addr, old, value uint32) uint32

	// EC is the embedded controller register file.
	EC [256]uint8
	// ECBusyPolls is how many reads of EC register 0 report busy after a
	// command is written to it.
	ECBusyPolls int
	// ECStuck makes every read of EC register 0 report busy.
	ECStuck bool
	// ECCommands records every command byte written to EC register 0.
	ECCommands []uint8
	ECIndex    uint16
	ECData     uint16

	// IO holds all other ports as dwords keyed by port.
	IO map[uint16]uint32
	// IOWriteHook, if set, decides what a write to an IO register stores.
	IOWriteHook func(port uint16, old, value uint32) uint32
	// ReadErrors makes reads of the given ports fail with the mapped error.
	ReadErrors map[uint16]error

	cf8     uint32
	ecIndex uint8
	busy    int

	// Writes is every port write in order, including address selects.
	Writes []Access
	// StatusPolls counts reads of EC register 0.
	StatusPolls int
}

// New returns an empty platform with the EC at the default ports.
func New() *Platform {
	return &Platform{
		PCI:        map[uint32]uint32{},
		IO:         map[uint16]uint32{},
		ReadErrors: map[uint16]error{},
		ECIndex:    DefaultECIndex,
		ECData:     DefaultECData,
	}
}

// SetPCI stores a configuration dword for addr (device selector | register).
func (p *Platform) SetPCI(addr uint32, value uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PCI[addr&^3] = value
}

// GetPCI returns the configuration dword for addr.
func (p *Platform) GetPCI(addr uint32) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PCI[addr&^3]
}

// Mutations returns the writes that change device state, leaving out CF8
// address selects and EC index selects.
func (p *Platform) Mutations() []Access {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Access
	for _, w := range p.Writes {
		if w.Port == pciConfigAddress || w.Port == p.ECIndex {
			continue
		}
		out = append(out, w)
	}
	return out
}

// In8 implements hw.Port.
func (p *Platform) In8(port uint16) (uint8, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ReadErrors[port]; err != nil {
		return 0, err
	}
	switch port {
	case p.ECIndex:
		return p.ecIndex, nil
	case p.ECData:
		if p.ecIndex != 0 {
			return p.EC[p.ecIndex], nil
		}
		p.StatusPolls++
		if p.ECStuck {
			return 0xff, nil
		}
		if p.busy > 0 {
			p.busy--
			if p.busy == 0 {
				p.EC[0] = 0
			}
			return 0x01, nil
		}
		return p.EC[0], nil
	}
	return uint8(p.IO[port]), nil
}

// In32 implements hw.Port.
func (p *Platform) In32(port uint16) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ReadErrors[port]; err != nil {
		return 0, err
	}
	switch port {
	case pciConfigAddress:
		return p.cf8, nil
	case pciConfigData:
		if p.cf8&(1<<31) == 0 {
			return 0xffffffff, nil
		}
		return p.PCI[p.cf8&^3], nil
	}
	return p.IO[port], nil
}

// Out8 implements hw.Port.
func (p *Platform) Out8(port uint16, value uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Writes = append(p.Writes, Access{Port: port, Width: 8, Value: uint32(value)})
	switch port {
	case p.ECIndex:
		p.ecIndex = value
		return nil
	case p.ECData:
		p.EC[p.ecIndex] = value
		if p.ecIndex == 0 {
			p.ECCommands = append(p.ECCommands, value)
			p.busy = p.ECBusyPolls
			if p.busy == 0 {
				p.EC[0] = 0
			}
		}
		return nil
	}
	old := p.IO[port]
	v := old&^0xff | uint32(value)
	if p.IOWriteHook != nil {
		v = p.IOWriteHook(port, old, v)
	}
	p.IO[port] = v
	return nil
}

// Out32 implements hw.Port.
func (p *Platform) Out32(port uint16, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Writes = append(p.Writes, Access{Port: port, Width: 32, Value: value})
	switch port {
	case pciConfigAddress:
		p.cf8 = value
		return nil
	case pciConfigData:
		if p.cf8&(1<<31) == 0 {
			return nil
		}
		key := p.cf8 &^ 3
		if p.PCIWriteHook != nil {
			value = p.PCIWriteHook(key, p.PCI[key], value)
		}
		p.PCI[key] = value
		return nil
	}
	if p.IOWriteHook != nil {
		value = p.IOWriteHook(port, p.IO[port], value)
	}
	p.IO[port] = value
	return nil
}

// FailingPort returns err from every access.
type FailingPort struct {
	Err error
}

func (f FailingPort) In8(uint16) (uint8, error)   { return 0, f.Err }
func (f FailingPort) In32(uint16) (uint32, error) { return 0, f.Err }
func (f FailingPort) Out8(uint16, uint8) error    { return f.Err }
func (f FailingPort) Out32(uint16, uint32) error  { return f.Err }
