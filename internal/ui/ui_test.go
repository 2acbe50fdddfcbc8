package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junevm/flashunlock/internal/bioswp"
	"github.com/junevm/flashunlock/internal/unlock"
)

func press(m model, key string) (model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestConfirmRunsAction(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	plan := unlock.Plan{
		State:       unlock.State{FDOOverridden: true, SMIEnabled: true},
		Action:      unlock.DisableSMI,
		BIOSControl: bioswp.LockEnable,
	}
	m := initialModel(plan, func() (unlock.Action, error) {
		calls++
		return unlock.DisableSMI, boom
	})
	assert.Contains(t, m.View(), "disable SMIs")
	assert.Contains(t, m.View(), "armed")
	assert.Equal(t, 0, calls)

	m, cmd := press(m, "y")
	require.NotNil(t, cmd)
	assert.Equal(t, phaseRunning, m.phase)
	assert.True(t, m.ran)

	// Keys are ignored while running.
	m, _ = press(m, "q")
	assert.Equal(t, phaseRunning, m.phase)

	msg := runCmd(m.execute)()
	next, _ := m.Update(msg)
	m = next.(model)
	assert.Equal(t, 1, calls)
	assert.Equal(t, phaseDone, m.phase)
	assert.Equal(t, unlock.DisableSMI, m.action)
	assert.ErrorIs(t, m.err, boom)
	assert.Empty(t, m.View())
}

func TestConfirmDeclined(t *testing.T) {
	for _, key := range []string{"n", "q", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := initialModel(unlock.Plan{Action: unlock.RequestOverride}, func() (unlock.Action, error) {
				t.Fatal("action must not run")
				return 0, nil
			})
			assert.NotContains(t, m.View(), "SMIs")

			m, cmd := press(m, key)
			require.NotNil(t, cmd)
			assert.Equal(t, phaseDone, m.phase)
			assert.False(t, m.ran)
		})
	}
}

func TestEnterConfirms(t *testing.T) {
	m := initialModel(unlock.Plan{Action: unlock.RequestOverride}, func() (unlock.Action, error) {
		return unlock.RequestOverride, nil
	})
	m, _ = press(m, "enter")
	assert.True(t, m.ran)
}
