// package formatter writes queue data to files: playlist indexes (m3u8), run manifests (JSON) and CSV exports
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/desertthunder/tapedeck/internal/media"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// PlaylistHeader opens every playlist index.
const PlaylistHeader = "#EXTM3U"

// BuildPlaylistIndex scans folder recursively for audio files and returns their paths relative
// to folder, slash separated and sorted.
func BuildPlaylistIndex(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, folder)
	}

	var files []string
	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !media.IsAudioFile(path) {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

// WritePlaylistIndex writes <folder>/<folder name>.m3u8 listing every audio file below folder
// and returns its path. It returns [shared.ErrNoAudioFiles] when there is nothing to list.
func WritePlaylistIndex(folder string) (string, error) {
	folder = filepath.Clean(folder)
	files, err := BuildPlaylistIndex(folder)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrNoAudioFiles, folder)
	}

	var buf bytes.Buffer
	buf.WriteString(PlaylistHeader + "\n")
	for _, f := range files {
		buf.WriteString(f + "\n")
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", fmt.Errorf("failed to resolve folder: %w", err)
	}
	path := filepath.Join(folder, filepath.Base(abs)+".m3u8")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write playlist index: %w", err)
	}
	return path, nil
}

// ManifestItem is one track in a run manifest.
type ManifestItem struct {
	Entry      int           `json:"entry"`
	Track      int           `json:"track"`
	Collection string        `json:"collection,omitempty"`
	Title      string        `json:"title"`
	Artists    []string      `json:"artists"`
	Album      string        `json:"album,omitempty"`
	Platform   string        `json:"platform"`
	SourceID   string        `json:"source_id"`
	Status     models.Status `json:"status"`
	OutputPath string        `json:"output_path,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Manifest summarizes a queue snapshot after a run.
type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total"`
	Done        int            `json:"done"`
	Failed      int            `json:"failed"`
	Items       []ManifestItem `json:"items"`
}

// NewManifest flattens entries into manifest items in scan order.
func NewManifest(entries []models.Entry) Manifest {
	m := Manifest{GeneratedAt: time.Now().UTC(), Items: []ManifestItem{}}
	add := func(c models.Coord, collection string, t models.Track) {
		m.Total++
		switch t.Status {
		case models.StatusDone:
			m.Done++
		case models.StatusError:
			m.Failed++
		}
		m.Items = append(m.Items, ManifestItem{
			Entry:      c.Entry,
			Track:      c.Track,
			Collection: collection,
			Title:      t.Title,
			Artists:    append([]string{}, t.Artists...),
			Album:      t.Album,
			Platform:   string(t.Platform),
			SourceID:   t.SourceID,
			Status:     t.Status,
			OutputPath: t.OutputPath,
			Error:      t.Err,
		})
	}

	for i, e := range entries {
		if e.Track != nil {
			add(models.Coord{Entry: i, Track: models.NoTrack}, "", *e.Track)
		}
		if e.Collection != nil {
			for j, t := range e.Collection.Tracks {
				add(models.Coord{Entry: i, Track: j}, e.Collection.Title, t)
			}
		}
	}
	return m
}

// ToManifestJSON renders the manifest of entries as indented JSON.
func ToManifestJSON(entries []models.Entry) ([]byte, error) {
	data, err := json.MarshalIndent(NewManifest(entries), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteRunManifest writes the manifest of entries to path.
func WriteRunManifest(entries []models.Entry, path string) error {
	data, err := ToManifestJSON(entries)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ExportToCSV converts a queue snapshot to CSV with columns: Collection, Title, Artists, Album, Platform, Source ID, Status, Output, Error
func ExportToCSV(entries []models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Collection", "Title", "Artists", "Album", "Platform", "Source ID", "Status", "Output", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range NewManifest(entries).Items {
		record := []string{
			item.Collection,
			item.Title,
			models.Track{Artists: item.Artists}.ArtistLine(),
			item.Album,
			item.Platform,
			item.SourceID,
			string(item.Status),
			item.OutputPath,
			item.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToText renders one "[status] Artist - Title" line per track.
func ExportToText(entries []models.Entry) []byte {
	var buf bytes.Buffer
	for i, item := range NewManifest(entries).Items {
		artist := models.Track{Artists: item.Artists}.ArtistLine()
		buf.WriteString(strconv.Itoa(i+1) + ". [" + string(item.Status) + "] " + artist + " - " + item.Title + "\n")
	}
	return buf.Bytes()
}
