package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/tasks"
	tu "github.com/desertthunder/tapedeck/internal/testing"
)

type fakeControl struct {
	mu      sync.Mutex
	paused  bool
	aborts  int
	entries []models.Entry
	done    chan struct{}
}

func newFakeControl() *fakeControl {
	tr := tu.NewTrack("Song", "Artist")
	tr.Status = models.StatusDownloading
	col := tu.NewCollection("Album", "Band", 2)
	col.Tracks[0].Status = models.StatusDone
	col.Tracks[1].Status = models.StatusError
	col.Tracks[1].Err = "not found"
	return &fakeControl{
		entries: []models.Entry{{Track: &tr}, {Collection: &col}},
		done:    make(chan struct{}),
	}
}

func (f *fakeControl) Pause() { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeControl) Resume() { f.mu.Lock(); f.paused = false; f.mu.Unlock() }
func (f *fakeControl) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}
func (f *fakeControl) Abort() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return 3
}
func (f *fakeControl) Snapshot() []models.Entry { return f.entries }
func (f *fakeControl) Progress() tasks.Progress { return tasks.ProgressOf(f.entries) }
func (f *fakeControl) Done() <-chan struct{} { return f.done }

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel(t *testing.T) {
	t.Run("pause and resume drive the controller", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)

		m.Update(keyPress('p'))
		if !ctrl.Paused() {
			t.Fatal("p should pause")
		}
		if !strings.Contains(m.View(), "Paused") {
			t.Error("view should show the paused state")
		}

		m.Update(keyPress('r'))
		if ctrl.Paused() {
			t.Error("r should resume")
		}
	})

	t.Run("abort runs once", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)

		m.Update(keyPress('a'))
		m.Update(keyPress('a'))
		if ctrl.aborts != 1 || !m.Aborted() {
			t.Errorf("got %d aborts", ctrl.aborts)
		}
		if !strings.Contains(m.View(), "3 pending tracks dropped") {
			t.Error("abort message missing from the view")
		}
	})

	t.Run("quit while running aborts and waits for the run", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)

		_, cmd := m.Update(keyPress('q'))
		if cmd != nil {
			t.Error("quit should wait for the run to finish")
		}
		if ctrl.aborts != 1 {
			t.Error("quit should abort a running run")
		}

		_, cmd = m.Update(runFinishedMsg())
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("quit after the run exits at once", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)
		m.Update(runFinishedMsg())

		_, cmd := m.Update(keyPress('q'))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if ctrl.aborts != 0 {
			t.Error("finished run should not be aborted")
		}
	})

	t.Run("view shows progress and failures", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

		view := m.View()
		for _, want := range []string{"Downloads", "2/3", "1 failed", "Song"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q", want)
			}
		}
	})

	t.Run("progress updates are logged", func(t *testing.T) {
		ctrl := newFakeControl()
		updates := make(chan tasks.ProgressUpdate, 1)
		m := NewModel("Downloads", ctrl, updates)

		updates <- tasks.ProgressUpdate{Phase: tasks.ItemChanged, Message: "[1/3] ✓ Song"}
		msg := m.waitForProgress()()
		if _, cmd := m.Update(msg); cmd == nil {
			t.Error("expected the listener to be re-armed")
		}
		if !strings.Contains(m.View(), "[1/3] ✓ Song") {
			t.Error("update message missing from the view")
		}
	})

	t.Run("done channel ends the run", func(t *testing.T) {
		ctrl := newFakeControl()
		m := NewModel("Downloads", ctrl, nil)
		close(ctrl.done)

		got := make(chan tea.Msg, 1)
		go func() { got <- m.waitForDone()() }()
		select {
		case msg := <-got:
			m.Update(msg)
		case <-time.After(time.Second):
			t.Fatal("waitForDone did not return")
		}
		if !strings.Contains(m.View(), "Finished") {
			t.Error("view should show the finished state")
		}
	})
}
