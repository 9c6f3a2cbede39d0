package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	th "github.com/desertthunder/tapedeck/internal/testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func snapshot() []models.Entry {
	single := th.NewTrack("Solo", "A", "B")
	single.Status = models.StatusDone
	single.OutputPath = "/music/A, B - Solo.mp3"

	album := th.NewCollection("Record", "Band", 2)
	album.Tracks[0].Status = models.StatusDone
	album.Tracks[1].Status = models.StatusError
	album.Tracks[1].Err = "not found"

	return []models.Entry{{Track: &single}, {Collection: &album}}
}

func TestPlaylistIndex(t *testing.T) {
	t.Run("lists audio files sorted and relative", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "Road Trip")
		touch(t, filepath.Join(dir, "b.mp3"))
		touch(t, filepath.Join(dir, "A.flac"))
		touch(t, filepath.Join(dir, "disc 2", "c.OGG"))
		touch(t, filepath.Join(dir, "cover.jpg"))
		touch(t, filepath.Join(dir, "notes.txt"))

		path, err := WritePlaylistIndex(dir)
		if err != nil {
			t.Fatalf("WritePlaylistIndex failed: %v", err)
		}
		if path != filepath.Join(dir, "Road Trip.m3u8") {
			t.Errorf("unexpected index path %q", path)
		}

		want := "#EXTM3U\nA.flac\nb.mp3\ndisc 2/c.OGG\n"
		if got := th.MustReadFile(t, path); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("rewriting does not list the index itself", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "mix")
		touch(t, filepath.Join(dir, "one.m4a"))

		WritePlaylistIndex(dir)
		path, err := WritePlaylistIndex(dir)
		if err != nil {
			t.Fatal(err)
		}
		if got := th.MustReadFile(t, path); got != "#EXTM3U\none.m4a\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("empty folder", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "readme.txt"))
		if _, err := WritePlaylistIndex(dir); !errors.Is(err, shared.ErrNoAudioFiles) {
			t.Errorf("expected ErrNoAudioFiles, got %v", err)
		}
	})

	t.Run("missing folder", func(t *testing.T) {
		if _, err := WritePlaylistIndex(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error for a missing folder")
		}
	})

	t.Run("file instead of folder", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "song.mp3")
		touch(t, file)
		if _, err := WritePlaylistIndex(file); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("relative folder uses its base name", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, filepath.Join(tempDir))
		defer th.MustChdir(t, originalDir)

		touch(t, filepath.Join(tempDir, "x.mp3"))
		path, err := WritePlaylistIndex(".")
		if err != nil {
			t.Fatal(err)
		}
		if path != filepath.Base(tempDir)+".m3u8" {
			t.Errorf("got %q", path)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("NewManifest", func(t *testing.T) {
		m := NewManifest(snapshot())
		if m.Total != 3 || m.Done != 2 || m.Failed != 1 {
			t.Errorf("unexpected counts %+v", m)
		}
		if m.Items[0].Track != models.NoTrack || m.Items[2].Collection != "Record" || m.Items[2].Track != 1 {
			t.Errorf("unexpected coordinates %+v", m.Items)
		}
	})

	t.Run("WriteRunManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs", "manifest.json")
		if err := WriteRunManifest(snapshot(), path); err != nil {
			t.Fatalf("WriteRunManifest failed: %v", err)
		}

		var m Manifest
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &m); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(m.Items) != 3 || m.Items[2].Error != "not found" || m.Items[0].Artists[1] != "B" {
			t.Errorf("unexpected manifest %+v", m)
		}
	})

	t.Run("empty snapshot has an empty item list", func(t *testing.T) {
		data, err := ToManifestJSON(nil)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"items": []`) {
			t.Errorf("got %s", data)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(snapshot())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
		}
		if lines[0] != "Collection,Title,Artists,Album,Platform,Source ID,Status,Output,Error" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if !strings.Contains(lines[1], `"A, B"`) {
			t.Errorf("CSV should quote joined artists, got: %s", lines[1])
		}
		if !strings.HasSuffix(lines[3], "error,,not found") {
			t.Errorf("CSV missing failure, got: %s", lines[3])
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		got := string(ExportToText(snapshot()))
		if !strings.HasPrefix(got, "1. [done] A, B - Solo\n") {
			t.Errorf("got %q", got)
		}
		if !strings.Contains(got, "3. [error] Band - Record 02\n") {
			t.Errorf("got %q", got)
		}
	})
}
