package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/junevm/flashunlock/internal/config"
	"github.com/junevm/flashunlock/internal/ec"
	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/log"
	"github.com/junevm/flashunlock/internal/report"
	"github.com/junevm/flashunlock/internal/ui"
	"github.com/junevm/flashunlock/internal/unlock"
)

// Version is the current version of the application.
// This is set at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

// run does one unlock step and returns the process exit status: 0 on
// success, otherwise the errno of the failing OS call (1 if there was none).
func run() int {
	// 0. Auto-Elevation
	// Port I/O and /dev/mem need root, so re-execute ourselves with sudo.
	if os.Geteuid() != 0 {
		for _, arg := range os.Args[1:] {
			if arg == "--version" || arg == "-v" {
				fmt.Printf("flashunlock version %s\n", Version)
				return 0
			}
		}

		exe, err := os.Executable()
		if err != nil {
			log.Errorf("Failed to get executable path: %v", err)
			return unlock.ExitCode(err)
		}

		cmd := exec.Command("sudo", append([]string{exe}, os.Args[1:]...)...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode()
			}
			log.Errorf("Failed to run as root: %v", err)
			return unlock.ExitCode(err)
		}
		return 0
	}

	// 1. Parse Command Line Arguments
	cfg, err := config.Load(config.Flags(os.Args[0]), os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	log.SetVerbose(cfg.Verbose)

	if cfg.Version {
		fmt.Printf("flashunlock version %s\n", Version)
		return 0
	}

	// 2. Acquire I/O privileges.
	if err := hw.Elevate(); err != nil {
		log.Errorf("Could not access IO ports: %v", err)
		return unlock.ExitCode(err)
	}
	port, err := hw.NewArchPort()
	if err != nil {
		log.Errorf("Could not access IO ports: %v", err)
		return unlock.ExitCode(err)
	}

	// 3. Map RCBA. The descriptor override strap status lives in its SPI
	// registers.
	rcba, err := hw.MapPhysical(hw.DevMem, int64(cfg.RCBA), unlock.RCBALength)
	if err != nil {
		log.Errorf("Could not map RCBA: %v", err)
		return unlock.ExitCode(err)
	}
	defer func() {
		if err := rcba.Close(); err != nil {
			log.Warnf("Failed to unmap RCBA: %v", err)
		}
	}()
	log.Debugf("mapped %s of RCBA at 0x%x", humanize.IBytes(uint64(rcba.Len())), rcba.Base())

	engine, err := unlock.NewEngine(&hw.Context{Port: port, RCBA: rcba}, ec.WithPorts(cfg.ECIndex, cfg.ECData))
	if err != nil {
		log.Errorf("Could not set up hardware access: %v", err)
		return unlock.ExitCode(err)
	}

	// 4. Handle Status Mode
	if cfg.Status {
		snap, err := engine.Snapshot()
		if err != nil {
			log.Errorf("Could not read hardware state: %v", err)
			return unlock.ExitCode(err)
		}
		if cfg.JSON {
			if err := report.JSON(os.Stdout, snap); err != nil {
				log.Errorf("%v", err)
				return unlock.ExitCode(err)
			}
			return 0
		}
		report.Table(os.Stdout, snap, rcba.Base(), rcba.Len())
		return 0
	}

	// 5. Act. On a terminal the user confirms first unless --yes was given;
	// the confirmation screen is built from reads only.
	interactive := !cfg.Plain && isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())

	var action unlock.Action
	if !cfg.Yes && interactive {
		plan, err := engine.Preview()
		if err != nil {
			log.Errorf("Could not read hardware state: %v", err)
			return unlock.ExitCode(err)
		}
		log.Debugf("planned: %s", plan.Action)

		if plan.NeedsConfirmation() {
			ran, done, err := ui.Confirm(plan, engine.Run)
			if !ran && err == nil {
				fmt.Println("Cancelled, nothing was changed.")
				return 0
			}
			if err != nil {
				log.Errorf("Unlock step failed: %v", err)
				return unlock.ExitCode(err)
			}
			action = done
		}
	}
	if action == 0 {
		if action, err = engine.Run(); err != nil {
			log.Errorf("Unlock step failed: %v", err)
			return unlock.ExitCode(err)
		}
	}
	log.Debugf("performed: %s", action)

	fmt.Println(ui.MessageStyle.Render(action.Message()))
	return 0
}
