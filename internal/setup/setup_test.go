package setup

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost points every check at files under a temp dir.
func fakeHost(t *testing.T, cmdline, lockdown string, root bool, readErr error) {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if content != "" {
			require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		}
		return p
	}

	oldCmdline, oldLockdown, oldDevMem, oldEuid, oldRead := procCmdline, lockdownPath, devMemPath, geteuid, readHSFS
	t.Cleanup(func() {
		procCmdline, lockdownPath, devMemPath, geteuid, readHSFS = oldCmdline, oldLockdown, oldDevMem, oldEuid, oldRead
	})

	procCmdline = write("cmdline", cmdline)
	lockdownPath = write("lockdown", lockdown)
	devMemPath = write("mem", "x")
	geteuid = func() int {
		if root {
			return 0
		}
		return 1000
	}
	readHSFS = func(int64) error { return readErr }
}

func skipUnlessSupported(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("platform check always fails here")
	}
}

func TestCheckHealthyHost(t *testing.T) {
	skipUnlessSupported(t)
	fakeHost(t, "BOOT_IMAGE=/vmlinuz ro iomem=relaxed quiet\n", "[none] integrity confidentiality\n", true, nil)

	warnings, err := Check(0xfed18000)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestCheckWarnsWithoutRelaxedIomem(t *testing.T) {
	skipUnlessSupported(t)
	fakeHost(t, "ro quiet\n", "", true, nil)

	warnings, err := Check(0xfed18000)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "iomem=relaxed")
}

func TestCheckCollectsProblems(t *testing.T) {
	skipUnlessSupported(t)
	fakeHost(t, "iomem=relaxed", "none [integrity] confidentiality\n", false, nil)

	_, err := Check(0xfed18000)
	require.ErrorIs(t, err, ErrNotRoot)
	require.ErrorIs(t, err, ErrLockdown)
	assert.Contains(t, err.Error(), "integrity")
}

func TestCheckDevMemUnreadable(t *testing.T) {
	skipUnlessSupported(t)
	denied := errors.New("operation not permitted")
	fakeHost(t, "iomem=relaxed", "[none]", true, denied)

	_, err := Check(0xfed18000)
	require.ErrorIs(t, err, denied)
}

func TestLockdownModeMissing(t *testing.T) {
	fakeHost(t, "", "", true, nil)
	_, ok := lockdownMode()
	assert.False(t, ok)
}
