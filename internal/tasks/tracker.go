package tasks

import (
	"fmt"
	"sync"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Progress is the aggregate state of the queue. Done counts items in a terminal status, failed ones included.
type Progress struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Ratio returns Done/Total, 0 for an empty queue.
func (p Progress) Ratio() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Complete reports whether every item is terminal.
func (p Progress) Complete() bool {
	return p.Done == p.Total
}

// Queue tracks the entries submitted for download and the status of every track in them.
//
// Each track is written by at most one job at a time; readers take a [Queue.Snapshot].
type Queue struct {
	mu      sync.RWMutex
	entries []models.Entry
}

// NewQueue creates an empty tracker.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a copy of entry with every track set to waiting and returns its index.
func (q *Queue) Add(entry models.Entry) (int, error) {
	if (entry.Track == nil) == (entry.Collection == nil) {
		return -1, fmt.Errorf("%w: entry must hold exactly one track or collection", shared.ErrInvalidInput)
	}

	e := entry.Clone()
	if e.Track != nil {
		e.Track.Status = models.StatusWaiting
	}
	if e.Collection != nil {
		for i := range e.Collection.Tracks {
			e.Collection.Tracks[i].Status = models.StatusWaiting
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return len(q.entries) - 1, nil
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Clear removes every entry. It is refused while any track is active.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.tracks() {
		if t.Status.IsActive() {
			return fmt.Errorf("%w: %q is %s", shared.ErrQueueBusy, t.Title, t.Status)
		}
	}
	q.entries = nil
	return nil
}

// at returns the track addressed by c. Callers hold mu.
func (q *Queue) at(c models.Coord) (*models.Track, error) {
	if c.Entry < 0 || c.Entry >= len(q.entries) {
		return nil, fmt.Errorf("%w: entry %d", shared.ErrInvalidCoord, c.Entry)
	}
	e := q.entries[c.Entry]
	if !c.Nested() {
		if e.Track == nil {
			return nil, fmt.Errorf("%w: entry %d is a collection", shared.ErrInvalidCoord, c.Entry)
		}
		return e.Track, nil
	}
	if e.Collection == nil || c.Track < 0 || c.Track >= len(e.Collection.Tracks) {
		return nil, fmt.Errorf("%w: track %d of entry %d", shared.ErrInvalidCoord, c.Track, c.Entry)
	}
	return &e.Collection.Tracks[c.Track], nil
}

// tracks returns pointers to every track in scan order. Callers hold mu.
func (q *Queue) tracks() []*models.Track {
	var out []*models.Track
	for i := range q.entries {
		e := &q.entries[i]
		if e.Track != nil {
			out = append(out, e.Track)
			continue
		}
		for j := range e.Collection.Tracks {
			out = append(out, &e.Collection.Tracks[j])
		}
	}
	return out
}

// SetStatus moves the track at c to status.
func (q *Queue) SetStatus(c models.Coord, status models.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.at(c)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s to %s", shared.ErrInvalidTransition, t.Status, status)
	}
	t.Status = status
	return nil
}

// Fail moves the track at c to error and records cause.
func (q *Queue) Fail(c models.Coord, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.at(c)
	if err != nil {
		return err
	}
	if !t.Status.CanTransition(models.StatusError) {
		return fmt.Errorf("%w: %s to %s", shared.ErrInvalidTransition, t.Status, models.StatusError)
	}
	t.Status = models.StatusError
	if cause != nil {
		t.Err = cause.Error()
	}
	return nil
}

// Update applies fn to the track at c. fn must not change Status.
func (q *Queue) Update(c models.Coord, fn func(t *models.Track)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.at(c)
	if err != nil {
		return err
	}
	status := t.Status
	fn(t)
	t.Status = status
	return nil
}

// Track returns a copy of the track at c.
func (q *Queue) Track(c models.Coord) (models.Track, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	t, err := q.at(c)
	if err != nil {
		return models.Track{}, err
	}
	out := *t
	out.Artists = append([]string(nil), t.Artists...)
	return out, nil
}

// CollectionTitle returns the title of the collection holding c, "" for a bare track.
func (q *Queue) CollectionTitle(c models.Coord) string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !c.Nested() || c.Entry < 0 || c.Entry >= len(q.entries) || q.entries[c.Entry].Collection == nil {
		return ""
	}
	return q.entries[c.Entry].Collection.Title
}

// Snapshot returns a deep copy of every entry.
func (q *Queue) Snapshot() []models.Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]models.Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Clone()
	}
	return out
}

// Progress counts terminal and failed tracks from a snapshot.
func (q *Queue) Progress() Progress {
	return ProgressOf(q.Snapshot())
}

// ProgressOf counts terminal and failed tracks in entries.
func ProgressOf(entries []models.Entry) Progress {
	var p Progress
	count := func(t models.Track) {
		p.Total++
		if t.Status.IsTerminal() {
			p.Done++
		}
		if t.Status == models.StatusError {
			p.Failed++
		}
	}
	for _, e := range entries {
		if e.Track != nil {
			count(*e.Track)
		}
		if e.Collection != nil {
			for _, t := range e.Collection.Tracks {
				count(t)
			}
		}
	}
	return p
}

// Waiting returns the coordinates of every waiting track in scan order.
func (q *Queue) Waiting() []models.Coord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []models.Coord
	for i, e := range q.entries {
		if e.Track != nil {
			if e.Track.Status == models.StatusWaiting {
				out = append(out, models.Coord{Entry: i, Track: models.NoTrack})
			}
			continue
		}
		for j, t := range e.Collection.Tracks {
			if t.Status == models.StatusWaiting {
				out = append(out, models.Coord{Entry: i, Track: j})
			}
		}
	}
	return out
}

// ResetFailed puts every failed track back to waiting and returns how many were reset.
func (q *Queue) ResetFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, t := range q.tracks() {
		if t.Status == models.StatusError {
			t.Status = models.StatusWaiting
			t.Err = ""
			t.OutputPath = ""
			n++
		}
	}
	return n
}
