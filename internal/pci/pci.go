// Package pci reads and writes PCI configuration space through
// configuration mechanism #1 (the CF8/CFC port pair).
package pci

import (
	"fmt"

	"github.com/junevm/flashunlock/internal/hw"
)

const (
	// ConfigAddress is the port the device selector and register are
	// written to.
	ConfigAddress = 0xcf8
	// ConfigData is the port the selected dword is read from or written to.
	ConfigData = 0xcfc
)

// Device is a configuration address with the register bits left zero.
type Device uint32

// Dev builds the selector for bus/dev/fn with the enable bit set.
func Dev(bus, dev, fn uint8) Device {
	return Device(1<<31 | uint32(bus)<<16 | uint32(dev&0x1f)<<11 | uint32(fn&0x7)<<8)
}

// LPC is the ICH9 LPC interface bridge, 00:1f.0.
var LPC = Dev(0, 0x1f, 0)

func (d Device) String() string {
	return fmt.Sprintf("%02x:%02x.%x", uint32(d)>>16&0xff, uint32(d)>>11&0x1f, uint32(d)>>8&0x7)
}

// Config is a PCI configuration space accessor.
type Config struct {
	port hw.Port
}

// New returns a Config that issues its cycles through port.
func New(port hw.Port) *Config {
	return &Config{port: port}
}

// Read32 reads the configuration dword at reg. reg is not checked for
// alignment; the hardware ignores the low two bits.
func (c *Config) Read32(dev Device, reg uint8) (uint32, error) {
	if err := c.port.Out32(ConfigAddress, uint32(dev)|uint32(reg)); err != nil {
		return 0, fmt.Errorf("pci %s select 0x%02x: %w", dev, reg, err)
	}
	v, err := c.port.In32(ConfigData)
	if err != nil {
		return 0, fmt.Errorf("pci %s read 0x%02x: %w", dev, reg, err)
	}
	return v, nil
}

// Write32 writes value to the configuration dword at reg.
func (c *Config) Write32(dev Device, reg uint8, value uint32) error {
	if err := c.port.Out32(ConfigAddress, uint32(dev)|uint32(reg)); err != nil {
		return fmt.Errorf("pci %s select 0x%02x: %w", dev, reg, err)
	}
	if err := c.port.Out32(ConfigData, value); err != nil {
		return fmt.Errorf("pci %s write 0x%02x: %w", dev, reg, err)
	}
	return nil
}
