package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
)

// RefreshInterval is how often the monitor re-reads the queue snapshot.
const RefreshInterval = 250 * time.Millisecond

const maxLogLines = 5

// RunControl is the part of the download controller the monitor drives.
type RunControl interface {
	Pause()
	Resume()
	Paused() bool
	Abort() int
	Snapshot() []models.Entry
	Progress() tasks.Progress
	Done() <-chan struct{}
}

// Model represents the TUI application state.
type Model struct {
	title    string
	ctrl     RunControl
	updates  <-chan tasks.ProgressUpdate
	width    int
	height   int
	list     list.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap
	stats    tasks.Progress
	lines    []string
	aborted  bool
	quitting bool
	finished bool
}

// NewModel creates a monitor for the run driven by ctrl. updates may be nil.
func NewModel(title string, ctrl RunControl, updates <-chan tasks.ProgressUpdate) *Model {
	l := list.New(trackItems(ctrl.Snapshot()), list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return &Model{
		title:   title,
		ctrl:    ctrl,
		updates: updates,
		list:    l,
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
		stats:   ctrl.Progress(),
	}
}

// Init starts the refresh ticker and the listeners for progress updates and run completion.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForProgress(), m.waitForDone())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, max(msg.Height-12, 4))
		m.bar.Width = max(msg.Width-24, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.log(update.Message)
			return m, m.waitForProgress()
		case MsgTick:
			cmd := m.refresh()
			if m.finished {
				return m, cmd
			}
			return m, tea.Batch(cmd, m.tick())
		case MsgRunFinished:
			m.finished = true
			cmd := m.refresh()
			if m.quitting {
				return m, tea.Quit
			}
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.finished {
			return m, tea.Quit
		}
		m.quitting = true
		m.abort()
		return m, nil
	case key.Matches(msg, m.keys.pause):
		if !m.finished {
			m.ctrl.Pause()
		}
		return m, nil
	case key.Matches(msg, m.keys.resume):
		m.ctrl.Resume()
		return m, nil
	case key.Matches(msg, m.keys.abort):
		m.abort()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// abort stops the run once. A paused pool is resumed so in-flight work can unwind.
func (m *Model) abort() {
	if m.aborted || m.finished {
		return
	}
	m.aborted = true
	dropped := m.ctrl.Abort()
	m.ctrl.Resume()
	m.log(fmt.Sprintf("Aborting, %d pending tracks dropped", dropped))
}

func (m *Model) refresh() tea.Cmd {
	m.stats = m.ctrl.Progress()
	return m.list.SetItems(trackItems(m.ctrl.Snapshot()))
}

func (m *Model) log(line string) {
	if line == "" {
		return
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) waitForDone() tea.Cmd {
	done := m.ctrl.Done()
	return func() tea.Msg {
		if done != nil {
			<-done
		}
		return runFinishedMsg()
	}
}

// View renders the progress header, the queue and the recent log lines.
func (m *Model) View() string {
	var b strings.Builder

	state := "Running"
	switch {
	case m.finished && m.aborted:
		state = styles.err.Render("Aborted")
	case m.finished:
		state = styles.ok.Render("✓ Finished")
	case m.aborted:
		state = styles.warn.Render("Aborting...")
	case m.ctrl.Paused():
		state = styles.warn.Render("Paused")
	}

	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d/%d", m.bar.ViewAs(m.stats.Ratio()), m.stats.Done, m.stats.Total)
	if m.stats.Failed > 0 {
		b.WriteString(styles.err.Render(fmt.Sprintf(" (%d failed)", m.stats.Failed)))
	}
	fmt.Fprintf(&b, "  %s\n\n", state)

	b.WriteString(m.list.View())
	b.WriteString("\n")

	for _, line := range m.lines {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}

	if m.finished {
		b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit}))
	} else {
		b.WriteString("\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

// Stats returns the progress seen at the last refresh.
func (m *Model) Stats() tasks.Progress { return m.stats }

// Aborted reports whether the user aborted the run from the monitor.
func (m *Model) Aborted() bool { return m.aborted }
