// Package tui is the terminal presentation of a followed training log: a
// scrolling text view, a loss chart and the shell actions bound to keys.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zulandar/logyard/internal/chart"
	"github.com/zulandar/logyard/internal/shell"
	"github.com/zulandar/logyard/internal/stream"
)

type tab int

const (
	tabText tab = iota
	tabChart
)

// changedMsg signals that the controller state moved.
type changedMsg struct{}

// flashMsg is a transient line shown in the footer.
type flashMsg string

const actionTimeout = 15 * time.Second

// Model is the bubbletea model for one Shell.
type Model struct {
	sh      *shell.Shell
	changes <-chan struct{}
	dir     string

	st     stream.State
	tab    tab
	vp     viewport.Model
	width  int
	height int
	flash  string
}

// New builds a Model over sh. Downloads are written into dir.
func New(sh *shell.Shell, changes <-chan struct{}, dir string) Model {
	vp := viewport.New(80, 20)
	m := Model{sh: sh, changes: changes, dir: dir, vp: vp, width: 80, height: 24}
	m.sync()
	return m
}

// Run subscribes to the controller and runs the program until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, sh *shell.Shell, dir string) error {
	changes, unsubscribe := sh.Controller().Subscribe()
	defer unsubscribe()
	p := tea.NewProgram(New(sh, changes, dir), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.sync()
		return m, nil

	case changedMsg:
		m.sync()
		return m, waitForChange(m.changes)

	case flashMsg:
		m.flash = string(msg)
		m.sync()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.tab == tabText {
			m.tab = tabChart
		} else {
			m.tab = tabText
		}
	case "a":
		m.sh.ToggleAxis()
	case "x":
		m.sh.Clear()
		m.flash = "Cleared"
	case "e":
		m.sh.DismissError()
	case "c":
		if err := m.sh.Copy(); err != nil {
			m.flash = failure("copy", err)
		} else {
			m.flash = "Logs copied to clipboard"
		}
	case "d":
		if path, err := m.sh.Download(m.dir); err != nil {
			m.flash = failure("download", err)
		} else {
			m.flash = "Saved " + path
		}
	case "r":
		m.flash = "Refreshing..."
		return m, m.refresh()
	case "s":
		m.flash = "Sharing..."
		return m, m.share()
	default:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	m.sync()
	return m, nil
}

func (m Model) refresh() tea.Cmd {
	sh := m.sh
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := sh.Refresh(ctx); err != nil {
			return flashMsg(failure("refresh", err))
		}
		return flashMsg("Refreshed")
	}
}

func (m Model) share() tea.Cmd {
	sh := m.sh
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		url, err := sh.Share(ctx)
		if err != nil {
			return flashMsg(failure("share", err))
		}
		return flashMsg("Shared at " + url)
	}
}

func failure(action string, err error) string {
	switch {
	case errors.Is(err, shell.ErrNoLogs):
		return "No logs to " + action
	case errors.Is(err, stream.ErrNoTraining):
		return "No training selected"
	}
	return fmt.Sprintf("Failed to %s: %v", action, err)
}

// sync copies controller state into the model and the viewport.
func (m *Model) sync() {
	m.st = m.sh.Controller().State()
	atBottom := m.vp.AtBottom()
	m.vp.SetContent(strings.Join(m.st.Lines, "\n"))
	if atBottom {
		m.vp.GotoBottom()
	}
}

// resize gives the body everything but the header, tabs and footer.
func (m *Model) resize() {
	m.vp.Width = m.width
	m.vp.Height = max(m.height-5, 1)
}

func (m Model) View() string {
	var b strings.Builder

	status := statusStyles[m.st.Outcome.String()].Render(shell.Status(m.st))
	header := titleStyle.Render("logyard")
	if m.st.TrainingID != "" {
		header += " " + m.st.TrainingID
	}
	header += "  " + status
	if m.st.Transport != "" {
		header += "  " + mutedStyle.Render("via "+m.st.Transport)
	}
	b.WriteString(header + "\n")

	if m.st.Error != "" {
		b.WriteString(errorStyle.Render(m.st.Error+"  (e to dismiss)") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(m.tabs() + "\n")

	if m.tab == tabText {
		if len(m.st.Lines) == 0 {
			b.WriteString(mutedStyle.Render("No logs available"))
		} else {
			b.WriteString(m.vp.View())
		}
	} else {
		b.WriteString(m.chartView())
	}

	b.WriteString("\n")
	footer := "r refresh • d download • c copy • s share • x clear • a axis • tab switch • q quit"
	if m.flash != "" {
		footer = m.flash + "  " + footer
	}
	b.WriteString(mutedStyle.Render(footer))
	return b.String()
}

func (m Model) tabs() string {
	text, ch := inactiveTab, inactiveTab
	if m.tab == tabText {
		text = activeTab
	} else {
		ch = activeTab
	}
	return text.Render("Log") + "  " + ch.Render("Loss")
}

func (m Model) chartView() string {
	axis := m.sh.Axis()
	xs, ys := chart.XY(m.st.Points, axis)
	stats := chart.StatsOf(m.st.Points)
	head := fmt.Sprintf("Loss vs %s", axis.Label())
	if stats.Count > 0 {
		head += mutedStyle.Render(fmt.Sprintf("  %d points • current %.4f • min %.4f", stats.Count, stats.Current, stats.Min))
	}
	return head + "\n" + plot(xs, ys, axis.Label(), m.width, max(m.height-6, 4))
}
