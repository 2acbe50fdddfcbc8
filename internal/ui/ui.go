package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/junevm/flashunlock/internal/unlock"
)

// ---------------------------------------------------------
// 🎨 AESTHETICS
// ---------------------------------------------------------
// Lipgloss styles for the confirmation screen.

var (
	colorPink   = lipgloss.Color("#FF71CE")
	colorCyan   = lipgloss.Color("#01CDFE")
	colorPurple = lipgloss.Color("#B967FF")
	colorYellow = lipgloss.Color("#FFFFB6")
	colorGray   = lipgloss.Color("#6E6E80")

	// The box around everything.
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple)

	// The title bar at the top.
	titleStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Background(colorPurple).
			Padding(0, 1).
			Bold(true).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true).
			MarginBottom(1)

	// Labels for register states (e.g., "SMIs").
	statLabelStyle = lipgloss.NewStyle().
			Foreground(colorPink).
			Width(22)

	statValueStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	// The planned action.
	actionStyle = lipgloss.NewStyle().
			Foreground(colorPink).
			Bold(true)

	// The help text at the bottom.
	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)

	// MessageStyle renders the final outcome message.
	MessageStyle = lipgloss.NewStyle().
			Foreground(colorCyan)
)

// ---------------------------------------------------------
// 🧠 MODEL
// ---------------------------------------------------------
// The model walks through three phases: asking, running, finished.

type phase int

const (
	phaseConfirm phase = iota
	phaseRunning
	phaseDone
)

type executedMsg struct {
	action unlock.Action
	err    error
}

type model struct {
	plan    unlock.Plan
	execute func() (unlock.Action, error)
	spinner spinner.Model
	phase   phase
	ran     bool          // The user said yes and execute was called.
	action  unlock.Action // Action execute reported.
	err     error         // Error returned by execute.
}

func initialModel(plan unlock.Plan, execute func() (unlock.Action, error)) model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(colorPink)

	return model{
		plan:    plan,
		execute: execute,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update reacts to key presses, spinner ticks and the result of the hardware
// action.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		// Keys do nothing while the hardware is being poked; an EC command
		// must not be interrupted halfway.
		if m.phase != phaseConfirm {
			return m, nil
		}
		switch msg.String() {
		case "y", "Y", "enter":
			m.phase = phaseRunning
			m.ran = true
			return m, tea.Batch(m.spinner.Tick, runCmd(m.execute))
		case "n", "N", "q", "esc", "ctrl+c":
			m.phase = phaseDone
			return m, tea.Quit
		}

	case executedMsg:
		m.phase = phaseDone
		m.action = msg.action
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// ---------------------------------------------------------
// 👁️ VIEW
// ---------------------------------------------------------

func (m model) View() string {
	// The outcome is printed by the caller once the program exits.
	if m.phase == phaseDone {
		return ""
	}

	title := titleStyle.Render(" 🔓 LATITUDE FLASH UNLOCK ")

	stats := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("HARDWARE STATE"),
		renderStat("Descriptor override", onOff(m.plan.FDOOverridden)),
	)
	if m.plan.FDOOverridden {
		stats = lipgloss.JoinVertical(lipgloss.Left,
			stats,
			renderStat("BIOS write protection", armed(m.plan.BIOSControl.Locked())),
			renderStat("SMIs", onOff(m.plan.SMIEnabled)),
		)
	}

	var body, footer string
	switch m.phase {
	case phaseConfirm:
		body = "Next step: " + actionStyle.Render(m.plan.Action.String())
		footer = helpStyle.Render("keys: y/enter proceed • n/q cancel")
	case phaseRunning:
		body = fmt.Sprintf("%s %s...", m.spinner.View(), m.plan.Action.String())
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, stats, "", body, footer))
}

func renderStat(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		statLabelStyle.Render(label),
		statValueStyle.Render(value),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func armed(b bool) string {
	if b {
		return "armed"
	}
	return "clear"
}

// runCmd calls execute off the UI loop and reports back.
func runCmd(execute func() (unlock.Action, error)) tea.Cmd {
	return func() tea.Msg {
		a, err := execute()
		return executedMsg{action: a, err: err}
	}
}

// Confirm shows the plan and calls execute if the user agrees. Nothing is
// written to the hardware before that. It reports whether execute ran, the
// action it performed and the error it returned.
func Confirm(plan unlock.Plan, execute func() (unlock.Action, error)) (bool, unlock.Action, error) {
	p := tea.NewProgram(initialModel(plan, execute))
	final, err := p.Run()
	if err != nil {
		return false, 0, fmt.Errorf("error running UI: %w", err)
	}
	m := final.(model)
	return m.ran, m.action, m.err
}
