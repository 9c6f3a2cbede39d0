// package models defines the data model for tapedeck's download queue
package models

import (
	"strings"
	"time"
)

// Status is the pipeline state of a single track.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusDownloading Status = "downloading"
	StatusTranscoding Status = "transcoding"
	StatusTagging     Status = "tagging"
	StatusCleaning    Status = "cleaning"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// statusOrder ranks the non-error states along the pipeline.
var statusOrder = map[Status]int{
	StatusWaiting:     0,
	StatusDownloading: 1,
	StatusTranscoding: 2,
	StatusTagging:     3,
	StatusCleaning:    4,
	StatusDone:        5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusError
}

// IsTerminal reports whether s ends a submission.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// IsActive reports whether a job currently owns the track.
func (s Status) IsActive() bool {
	switch s {
	case StatusDownloading, StatusTranscoding, StatusTagging, StatusCleaning:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
//
// Statuses only move forward along the pipeline, any non-terminal status may fail,
// and terminal statuses never change.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	if next == StatusError {
		return true
	}
	return statusOrder[next] > statusOrder[s]
}

// Platform identifies the service a track was resolved from.
type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
)

// CollectionKind distinguishes playlists from albums.
type CollectionKind string

const (
	KindPlaylist CollectionKind = "playlist"
	KindAlbum    CollectionKind = "album"
)

// ItemType is the queue display discriminator.
type ItemType string

const (
	ItemTrack    ItemType = "track"
	ItemPlaylist ItemType = "playlist"
)

// Track is one downloadable audio unit.
type Track struct {
	Title        string   `json:"title"`
	Artists      []string `json:"artists"`
	Album        string   `json:"album"`
	Duration     int      `json:"duration"` // seconds
	Year         int      `json:"year,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	TrackNumber  int      `json:"track_number"`
	Platform     Platform `json:"platform"`
	SourceID     string   `json:"source_id"`
	Status       Status   `json:"status"`
	OutputPath   string   `json:"output_path,omitempty"`
	Err          string   `json:"error,omitempty"`
}

// ArtistLine joins artist names the way they appear in tags and file names.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Collection is an ordered playlist or album of tracks.
type Collection struct {
	Title        string         `json:"title"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	SourceID     string         `json:"source_id"`
	Platform     Platform       `json:"platform"`
	Kind         CollectionKind `json:"kind"`
	Tracks       []Track        `json:"tracks"`
}

// Entry is one top-level queue element, holding either a bare track or a collection.
type Entry struct {
	Track      *Track      `json:"track,omitempty"`
	Collection *Collection `json:"collection,omitempty"`
}

// ItemType reports how the entry is displayed.
func (e Entry) ItemType() ItemType {
	if e.Collection != nil {
		return ItemPlaylist
	}
	return ItemTrack
}

// Title returns the track or collection title.
func (e Entry) Title() string {
	if e.Collection != nil {
		return e.Collection.Title
	}
	if e.Track != nil {
		return e.Track.Title
	}
	return ""
}

// Len returns the number of tracks the entry contributes to progress.
func (e Entry) Len() int {
	if e.Collection != nil {
		return len(e.Collection.Tracks)
	}
	if e.Track != nil {
		return 1
	}
	return 0
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	var out Entry
	if e.Track != nil {
		t := e.Track.clone()
		out.Track = &t
	}
	if e.Collection != nil {
		c := *e.Collection
		c.Tracks = make([]Track, len(e.Collection.Tracks))
		for i, t := range e.Collection.Tracks {
			c.Tracks[i] = t.clone()
		}
		out.Collection = &c
	}
	return out
}

func (t Track) clone() Track {
	t.Artists = append([]string(nil), t.Artists...)
	return t
}

// NoTrack marks a [Coord] that addresses a bare top-level track.
const NoTrack = -1

// Coord addresses one track in the queue: the entry index and, for collections, the track index.
type Coord struct {
	Entry int `json:"entry"`
	Track int `json:"track"`
}

// Nested reports whether the coordinate points into a collection.
func (c Coord) Nested() bool {
	return c.Track != NoTrack
}

// RawAudio is the result of acquiring a track: the downloaded file plus whatever metadata the source reported.
type RawAudio struct {
	Path         string
	SourceID     string
	Title        string
	Artists      []string
	Album        string
	Year         int
	Duration     int
	ThumbnailURL string
}

// LookupResult is a best-guess metadata match from an external catalogue.
type LookupResult struct {
	Title     string
	Artist    string
	Album     string
	Year      int
	ReleaseID string
}

// Download is the persisted record of a track that reached a terminal status.
type Download struct {
	ID         string
	RunID      string
	Title      string
	Artists    string
	Album      string
	Collection string
	Platform   Platform
	SourceID   string
	Status     Status
	OutputPath string
	Error      string
	FinishedAt time.Time
}

// Run is the persisted summary of one controller run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Done       int
	Failed     int
	Aborted    bool
}
