package ec

import (
	"errors"
	"fmt"
	"time"

	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/log"
)

// The Embedded Controller (EC) on Dell Latitude E6400-era laptops exposes
// 256 byte-wide registers through an index/data port pair. You write the
// register number to the index port, then read or write the data port.
//
// Register 0 doubles as the command register: writing a command byte there
// makes the EC busy, and it reads back as zero once the command is done.
const (
	// DefaultIndexPort selects the register.
	DefaultIndexPort = 0x910
	// DefaultDataPort carries the register value.
	DefaultDataPort = 0x911

	// StatusRegister is polled until it reads zero ("not busy").
	StatusRegister = 0x00
	// FDOArgRegister holds the argument of the FDO command.
	FDOArgRegister = 0x12
	// FDOCommandCode asks the EC to act on the descriptor override strap.
	FDOCommandCode = 0xb8

	// PollInterval is how long to sleep between busy polls.
	PollInterval = time.Millisecond
	// PollBudget is how many times the status register is polled before
	// giving up (about one second in total).
	PollBudget = 1000
)

// FDOArg is the argument written to FDOArgRegister before FDOCommandCode.
type FDOArg uint8

const (
	// FDOQuery asks for the current override state.
	FDOQuery FDOArg = 0
	// FDOSetOverride asserts the override strap on the next boot.
	FDOSetOverride FDOArg = 2
	// FDOUnsetOverride releases the override strap on the next boot.
	FDOUnsetOverride FDOArg = 3
)

func (a FDOArg) String() string {
	switch a {
	case FDOQuery:
		return "query"
	case FDOSetOverride:
		return "set-override"
	case FDOUnsetOverride:
		return "unset-override"
	}
	return fmt.Sprintf("FDOArg(%d)", uint8(a))
}

// ErrTimeout is returned when the EC is still busy after PollBudget polls.
var ErrTimeout = errors.New("timed out waiting for EC")

// Controller talks to the EC over an index/data port pair.
type Controller struct {
	port   hw.Port
	index  uint16
	data   uint16
	sleep  func(time.Duration)
	budget int
}

// Option configures a Controller.
type Option func(*Controller)

// WithPorts overrides the index and data ports.
func WithPorts(index, data uint16) Option {
	return func(c *Controller) {
		c.index = index
		c.data = data
	}
}

// WithSleep replaces time.Sleep in the ready poll.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// WithPollBudget overrides how many status polls WaitReady makes.
func WithPollBudget(n int) Option {
	return func(c *Controller) {
		c.budget = n
	}
}

// New returns a Controller using port for I/O.
func New(port hw.Port, opts ...Option) *Controller {
	c := &Controller{
		port:   port,
		index:  DefaultIndexPort,
		data:   DefaultDataPort,
		sleep:  time.Sleep,
		budget: PollBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IndexPort returns the port registers are selected through.
func (c *Controller) IndexPort() uint16 {
	return c.index
}

// ReadRegister reads one EC register.
//
// Parameters:
//   - index: The register number (0-255).
func (c *Controller) ReadRegister(index uint8) (uint8, error) {
	if err := c.port.Out8(c.index, index); err != nil {
		return 0, fmt.Errorf("failed to select EC register 0x%02x: %w", index, err)
	}
	v, err := c.port.In8(c.data)
	if err != nil {
		return 0, fmt.Errorf("failed to read EC register 0x%02x: %w", index, err)
	}
	return v, nil
}

// WriteRegister writes one EC register.
//
// Parameters:
//   - index: The register number (0-255).
//   - value: The byte to store.
func (c *Controller) WriteRegister(index, value uint8) error {
	if err := c.port.Out8(c.index, index); err != nil {
		return fmt.Errorf("failed to select EC register 0x%02x: %w", index, err)
	}
	if err := c.port.Out8(c.data, value); err != nil {
		return fmt.Errorf("failed to write 0x%02x to EC register 0x%02x: %w", value, index, err)
	}
	return nil
}

// WaitReady polls the status register until it reads zero. It sleeps
// PollInterval between busy polls and returns ErrTimeout once the poll
// budget is spent.
func (c *Controller) WaitReady() error {
	for i := 1; i <= c.budget; i++ {
		busy, err := c.ReadRegister(StatusRegister)
		if err != nil {
			return err
		}
		if busy == 0 {
			log.Debugf("EC ready after %d poll(s)", i)
			return nil
		}
		if i < c.budget {
			c.sleep(PollInterval)
		}
	}
	return fmt.Errorf("%w: still busy after %d polls", ErrTimeout, c.budget)
}

// SendCommand writes cmd to the command register and waits for the EC to
// finish with it.
func (c *Controller) SendCommand(cmd uint8) error {
	log.Debugf("EC command 0x%02x", cmd)
	if err := c.WriteRegister(StatusRegister, cmd); err != nil {
		return err
	}
	if err := c.WaitReady(); err != nil {
		return fmt.Errorf("EC command 0x%02x: %w", cmd, err)
	}
	return nil
}

// FDOCommand issues the flash descriptor override command with arg.
func (c *Controller) FDOCommand(arg FDOArg) error {
	log.Debugf("EC FDO command, argument %s", arg)
	if err := c.WriteRegister(FDOArgRegister, uint8(arg)); err != nil {
		return err
	}
	return c.SendCommand(FDOCommandCode)
}

// SetFlashDescriptorOverride tells the EC to assert the descriptor override
// strap the next time it powers the system on.
func (c *Controller) SetFlashDescriptorOverride() error {
	return c.FDOCommand(FDOSetOverride)
}
