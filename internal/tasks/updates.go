package tasks

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    Phase         // Run phase
	RunID    string        // Run the update belongs to
	Coord    models.Coord  // Item the update is about (item phase only)
	Status   models.Status // Item status after the transition (item phase only)
	Progress Progress      // Aggregate queue progress when the update was built
	Message  string        // Human-readable message for display
	Err      error         // Item failure, when Status is error
}

// Run phase enumeration
type Phase int

const (
	RunStarted Phase = iota
	ItemChanged
	RunCompleted
	RunAborted
)

func (p Phase) String() string {
	switch p {
	case RunStarted:
		return "run_started"
	case ItemChanged:
		return "item_changed"
	case RunCompleted:
		return "run_completed"
	case RunAborted:
		return "run_aborted"
	default:
		return ""
	}
}

// Stage is reported by the pipeline after every status transition of an item.
type Stage struct {
	Coord  models.Coord
	Status models.Status
	Title  string
	Err    error
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func runStartedUpdate(runID string, queued int, p Progress) ProgressUpdate {
	return ProgressUpdate{
		Phase:    RunStarted,
		RunID:    runID,
		Progress: p,
		Message:  fmt.Sprintf("Queued %d tracks", queued),
	}
}

func itemUpdate(runID string, s Stage, p Progress) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %s", p.Done, p.Total, s.Title, s.Status)
	if s.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", p.Done, p.Total, s.Title, s.Err)
	} else if s.Status == models.StatusDone {
		msg = fmt.Sprintf("[%d/%d] ✓ %s", p.Done, p.Total, s.Title)
	}
	return ProgressUpdate{
		Phase:    ItemChanged,
		RunID:    runID,
		Coord:    s.Coord,
		Status:   s.Status,
		Progress: p,
		Message:  msg,
		Err:      s.Err,
	}
}

func runFinishedUpdate(runID string, p Progress, aborted bool) ProgressUpdate {
	if aborted {
		return ProgressUpdate{
			Phase:    RunAborted,
			RunID:    runID,
			Progress: p,
			Message:  fmt.Sprintf("Aborted after %d of %d tracks (%d failed)", p.Done, p.Total, p.Failed),
		}
	}
	return ProgressUpdate{
		Phase:    RunCompleted,
		RunID:    runID,
		Progress: p,
		Message:  fmt.Sprintf("Finished %d of %d tracks (%d failed)", p.Done, p.Total, p.Failed),
	}
}
