// Package unlock decides which single step moves a Latitude E6400-class
// laptop closer to an internally flashable BIOS, and performs it.
//
// The flow spans reboots. First run: the descriptor override strap is not
// asserted, so the EC is asked to assert it on the next power-on. Second run:
// if BIOS_CNTL still can't be write-enabled, SMIs are switched off so the
// firmware cannot undo BIOSWE. Third run, after flashing: SMIs are switched
// back on so the machine can power off. Newer BIOS revisions without the
// BIOS lock need nothing after the override.
package unlock

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/junevm/flashunlock/internal/bioswp"
	"github.com/junevm/flashunlock/internal/ec"
	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/log"
	"github.com/junevm/flashunlock/internal/lpc"
	"github.com/junevm/flashunlock/internal/pci"
	"github.com/junevm/flashunlock/internal/smi"
)

const (
	// DefaultRCBA is where the E6400 vendor BIOS puts the root complex
	// register block.
	DefaultRCBA = 0xfed18000
	// RCBALength is the size of the RCBA window that gets mapped.
	RCBALength = 0x4000

	spiBar = 0x3800
	// HSFSOffset is the hardware sequencing flash status register,
	// relative to RCBA.
	HSFSOffset = spiBar + 0x04
	// hsfsFDOPSS is the descriptor override pin-strap status. It reads 1
	// while the strap is not asserted.
	hsfsFDOPSS = 1 << 13
)

// State is what the hardware reports at the start of a run.
type State struct {
	FDOOverridden        bool
	WriteProtectBypassed bool
	SMIEnabled           bool
}

// Action is the one step a run takes.
type Action int

const (
	// RequestOverride asks the EC to assert the override strap at the
	// next power-on.
	RequestOverride Action = iota + 1
	// DisableSMI switches SMIs off so BIOSWE sticks.
	DisableSMI
	// NoAction: the flash is already writable.
	NoAction
	// EnableSMI switches SMIs back on after flashing.
	EnableSMI
)

func (a Action) String() string {
	switch a {
	case RequestOverride:
		return "request descriptor override"
	case DisableSMI:
		return "disable SMIs"
	case NoAction:
		return "none"
	case EnableSMI:
		return "re-enable SMIs"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Mutates reports whether performing a writes to the hardware.
func (a Action) Mutates() bool {
	return a != NoAction
}

// Message is the instruction shown to the user once a has been performed.
func (a Action) Message() string {
	switch a {
	case RequestOverride:
		return "Flash Descriptor override enabled. Please *shutdown* (don't reboot) the system.\n" +
			"The EC will automatically boot the system and set the descriptor override.\n" +
			"Then run this utility again to complete the unlock process."
	case DisableSMI:
		return "SMIs disabled, flashing should work now: run flashrom -p internal on the entire flash.\n\n" +
			"After you are done flashing, run this utility again to re-enable SMIs,\n" +
			"as the system will not power off properly if SMIs are disabled."
	case NoAction:
		return "Flash already unlocked, no action needed.\n" +
			"You can run flashrom -p internal on the entire flash."
	case EnableSMI:
		return "SMIs enabled, it is now safe to shut down the system."
	}
	return ""
}

// Decide picks the action for s. It only looks at its argument.
func Decide(s State) Action {
	switch {
	case !s.FDOOverridden:
		return RequestOverride
	case !s.WriteProtectBypassed:
		return DisableSMI
	case s.SMIEnabled:
		return NoAction
	default:
		return EnableSMI
	}
}

// Engine ties the hardware components together for one run.
type Engine struct {
	ctx *hw.Context
	ec  *ec.Controller
	lpc *lpc.Configurator
	wp  *bioswp.Prober
	smi *smi.Gate
}

// NewEngine builds an Engine on ctx. PMBASE is discovered from the LPC
// bridge unless ctx already carries it.
func NewEngine(ctx *hw.Context, opts ...ec.Option) (*Engine, error) {
	cfg := pci.New(ctx.Port)
	if ctx.PMBase == 0 {
		base, err := smi.DiscoverPMBase(cfg, pci.LPC)
		if err != nil {
			return nil, err
		}
		ctx.PMBase = base
	}
	gate, err := smi.NewGate(ctx.Port, ctx.PMBase)
	if err != nil {
		return nil, err
	}
	return &Engine{
		ctx: ctx,
		ec:  ec.New(ctx.Port, opts...),
		lpc: lpc.New(cfg, pci.LPC),
		wp:  bioswp.New(cfg, pci.LPC),
		smi: gate,
	}, nil
}

// HSFS reads the hardware sequencing flash status register.
func (e *Engine) HSFS() (uint16, error) {
	v, err := e.ctx.RCBA.Read16(HSFSOffset)
	if err != nil {
		return 0, fmt.Errorf("failed to read HSFS: %w", err)
	}
	return v, nil
}

// FDOOverridden reports whether the descriptor override strap is asserted.
func (e *Engine) FDOOverridden() (bool, error) {
	hsfs, err := e.HSFS()
	if err != nil {
		return false, err
	}
	return hsfs&hsfsFDOPSS == 0, nil
}

// Probe reads the state Decide needs. Write protection and SMIs only matter
// once the override is active, so they are left unread before that. SMI_EN is
// read first so that a failed read leaves BIOS_CNTL untouched; checking write
// protection may set BIOSWE.
func (e *Engine) Probe() (State, error) {
	var s State
	var err error

	if s.FDOOverridden, err = e.FDOOverridden(); err != nil {
		return s, err
	}
	if !s.FDOOverridden {
		return s, nil
	}
	if s.SMIEnabled, err = e.smi.Enabled(); err != nil {
		return s, err
	}
	if s.WriteProtectBypassed, err = e.wp.ProbeAndClear(); err != nil {
		return s, err
	}
	log.Debugf("state: %+v", s)
	return s, nil
}

// Plan is the outcome Run is expected to have, worked out without writing
// to the hardware.
type Plan struct {
	State
	Action Action
	// BIOSControl is BIOS_CNTL as read; zero before the override.
	BIOSControl bioswp.Status
}

// NeedsConfirmation reports whether Run would write to the hardware. That
// includes setting BIOSWE while a lock bit is set, even when the resulting
// action is NoAction.
func (p Plan) NeedsConfirmation() bool {
	return p.Action.Mutates() || p.BIOSControl.Locked()
}

// Preview predicts what Run will do using reads only. With a lock bit set,
// BIOSWE is expected to stick unless BLE is armed and SMIs are on, in which
// case the SMI handler clears it. Run reads the hardware again and decides
// on its own result.
func (e *Engine) Preview() (Plan, error) {
	var p Plan
	var err error

	if p.FDOOverridden, err = e.FDOOverridden(); err != nil {
		return p, err
	}
	if p.FDOOverridden {
		if p.SMIEnabled, err = e.smi.Enabled(); err != nil {
			return p, err
		}
		if p.BIOSControl, err = e.wp.Status(); err != nil {
			return p, err
		}
		p.WriteProtectBypassed = p.BIOSControl&bioswp.LockEnable == 0 || !p.SMIEnabled
	}
	p.Action = Decide(p.State)
	log.Debugf("preview: %+v %s", p.State, p.BIOSControl)
	return p, nil
}

// Execute performs a.
func (e *Engine) Execute(a Action) error {
	switch a {
	case RequestOverride:
		// The EC sits behind the LPC bus; make sure its ports get there.
		programmed, err := e.lpc.Ensure(e.ec.IndexPort())
		if err != nil {
			return fmt.Errorf("EC ports 0x%x not reachable: %w", e.ec.IndexPort(), err)
		}
		if programmed {
			log.Infof("enabled LPC decoding of EC ports at 0x%x", e.ec.IndexPort())
		}
		if err := e.ec.SetFlashDescriptorOverride(); err != nil {
			return fmt.Errorf("failed to request descriptor override: %w", err)
		}

	case DisableSMI:
		if err := e.setSMI(false); err != nil {
			return err
		}

	case NoAction:

	case EnableSMI:
		if err := e.setSMI(true); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown action: %d", int(a))
	}
	return nil
}

func (e *Engine) setSMI(on bool) error {
	got, err := e.smi.SetEnabled(on)
	if err != nil {
		return err
	}
	if got != on {
		return &hw.OpError{
			Op:  fmt.Sprintf("set GBL_SMI_EN=%t at 0x%x", on, e.smi.Register()),
			Err: hw.ErrHardwareRefusal,
		}
	}
	return nil
}

// Run probes, decides and executes in one go.
func (e *Engine) Run() (Action, error) {
	s, err := e.Probe()
	if err != nil {
		return 0, err
	}
	a := Decide(s)
	if err := e.Execute(a); err != nil {
		return a, err
	}
	return a, nil
}

// ExitCode maps err to a process exit status: 0 for nil, the OS error
// number when one is wrapped, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return 1
}
