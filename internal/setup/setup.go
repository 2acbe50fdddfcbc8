package setup

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/junevm/flashunlock/internal/hw"
	"github.com/junevm/flashunlock/internal/unlock"
)

// Paths the checks read. Variables so tests can point them elsewhere.
var (
	procCmdline  = "/proc/cmdline"
	lockdownPath = "/sys/kernel/security/lockdown"
	devMemPath   = hw.DevMem
	geteuid      = os.Geteuid
)

var (
	// ErrNotRoot means the checks ran unprivileged.
	ErrNotRoot = errors.New("root privileges required (run with sudo)")
	// ErrUnsupportedPlatform means the tool cannot issue port I/O here.
	ErrUnsupportedPlatform = errors.New("only linux/amd64 is supported")
	// ErrLockdown means kernel lockdown forbids iopl and /dev/mem.
	ErrLockdown = errors.New("kernel lockdown is active")
)

// Check verifies the host can run the unlock tool. It never writes to the
// hardware. Hard problems come back combined in the error; things that only
// might get in the way are returned as warnings.
func Check(rcba uint64) (warnings []string, err error) {
	var result *multierror.Error

	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		result = multierror.Append(result, fmt.Errorf("%w (this is %s/%s)", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH))
	}

	root := geteuid() == 0
	if !root {
		result = multierror.Append(result, ErrNotRoot)
	}

	if mode, ok := lockdownMode(); ok && mode != "none" {
		result = multierror.Append(result, fmt.Errorf("%w (%s); disable Secure Boot or boot with lockdown=none", ErrLockdown, mode))
	}

	if _, err := os.Stat(devMemPath); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", devMemPath, err))
	} else if root {
		if err := readHSFS(int64(rcba) + unlock.HSFSOffset); err != nil {
			result = multierror.Append(result, fmt.Errorf("cannot read RCBA through %s: %w", devMemPath, err))
		}
	}

	if !hasCmdlineArg("iomem=relaxed") {
		warnings = append(warnings, "kernel not booted with iomem=relaxed; flashrom may refuse to map the flash afterwards")
	}

	return warnings, result.ErrorOrNil()
}

// lockdownMode returns the active kernel lockdown mode, the entry shown in
// brackets, e.g. "none [integrity] confidentiality".
func lockdownMode() (string, bool) {
	content, err := os.ReadFile(lockdownPath)
	if err != nil {
		return "", false
	}
	s := string(content)
	start := strings.IndexByte(s, '[')
	end := strings.IndexByte(s, ']')
	if start < 0 || end < start {
		return "", false
	}
	return s[start+1 : end], true
}

func hasCmdlineArg(arg string) bool {
	content, err := os.ReadFile(procCmdline)
	if err != nil {
		return false
	}
	for _, f := range strings.Fields(string(content)) {
		if f == arg {
			return true
		}
	}
	return false
}
