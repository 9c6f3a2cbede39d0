package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
)

type recordingRemuxer struct {
	path  string
	opts  RemuxOpts
	cover []byte
	err   error
}

func (r *recordingRemuxer) Remux(_ context.Context, path string, opts RemuxOpts) error {
	r.path = path
	r.opts = opts
	if opts.CoverPath != "" {
		r.cover, _ = os.ReadFile(opts.CoverPath)
	}
	return r.err
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// minimalFLAC writes a stream marker and a single zeroed STREAMINFO block flagged as last.
func minimalFLAC(t *testing.T, path string) {
	t.Helper()
	data := append([]byte("fLaC"), 0x80, 0x00, 0x00, 0x22)
	data = append(data, make([]byte, 34)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write flac: %v", err)
	}
}

func readTags(t *testing.T, path string) tag.Metadata {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		t.Fatalf("read tags: %v", err)
	}
	return m
}

func TestTagWriter(t *testing.T) {
	tags := Tags{Title: "Karma Police", Artist: "Radiohead", Album: "OK Computer", Year: 1997}

	t.Run("mp3 round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.mp3")
		os.WriteFile(path, []byte("not really audio"), 0644)

		w := NewTagWriter(nil)
		if err := w.WriteTags(context.Background(), path, tags); err != nil {
			t.Fatalf("WriteTags failed: %v", err)
		}

		m := readTags(t, path)
		if m.Title() != tags.Title || m.Artist() != tags.Artist || m.Album() != tags.Album {
			t.Errorf("unexpected tags: %q %q %q", m.Title(), m.Artist(), m.Album())
		}

		id3, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer id3.Close()
		if got := id3.GetTextFrame("TDRC").Text; got != "1997" {
			t.Errorf("TDRC = %q, want 1997", got)
		}
	})

	t.Run("mp3 artwork replaces existing cover", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.mp3")
		os.WriteFile(path, []byte("not really audio"), 0644)
		img := pngImage(t)

		w := NewTagWriter(nil)
		for range 2 {
			if err := w.EmbedArtwork(context.Background(), path, img); err != nil {
				t.Fatalf("EmbedArtwork failed: %v", err)
			}
		}

		id3, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer id3.Close()
		frames := id3.GetFrames("APIC")
		if len(frames) != 1 {
			t.Fatalf("expected one APIC frame, got %d", len(frames))
		}
		pic, ok := frames[0].(id3v2.PictureFrame)
		if !ok {
			t.Fatalf("unexpected frame type %T", frames[0])
		}
		if pic.MimeType != "image/png" || !bytes.Equal(pic.Picture, img) {
			t.Errorf("unexpected picture frame: %s, %d bytes", pic.MimeType, len(pic.Picture))
		}
	})

	t.Run("flac round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.flac")
		minimalFLAC(t, path)

		w := NewTagWriter(nil)
		if err := w.WriteTags(context.Background(), path, tags); err != nil {
			t.Fatalf("WriteTags failed: %v", err)
		}
		if err := w.WriteTags(context.Background(), path, Tags{Title: "Lucky"}); err != nil {
			t.Fatalf("second WriteTags failed: %v", err)
		}

		m := readTags(t, path)
		if m.Title() != "Lucky" {
			t.Errorf("title = %q, want Lucky", m.Title())
		}
		if m.Album() != tags.Album {
			t.Errorf("album = %q, want %q", m.Album(), tags.Album)
		}
	})

	t.Run("flac artwork", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.flac")
		minimalFLAC(t, path)

		w := NewTagWriter(nil)
		img := pngImage(t)
		for range 2 {
			if err := w.EmbedArtwork(context.Background(), path, img); err != nil {
				t.Fatalf("EmbedArtwork failed: %v", err)
			}
		}

		f, err := flac.ParseFile(path)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		pictures := 0
		for _, m := range f.Meta {
			if m.Type == flac.Picture {
				pictures++
			}
		}
		if pictures != 1 {
			t.Errorf("expected one picture block, got %d", pictures)
		}
	})

	t.Run("ogg tags go through remux", func(t *testing.T) {
		r := &recordingRemuxer{}
		path := filepath.Join(t.TempDir(), "song.ogg")
		if err := NewTagWriter(r).WriteTags(context.Background(), path, tags); err != nil {
			t.Fatalf("WriteTags failed: %v", err)
		}
		if r.path != path || r.opts.Metadata["TITLE"] != tags.Title || r.opts.Metadata["DATE"] != "1997" {
			t.Errorf("unexpected remux call: %s %+v", r.path, r.opts)
		}
	})

	t.Run("ogg artwork is a base64 picture block", func(t *testing.T) {
		r := &recordingRemuxer{}
		path := filepath.Join(t.TempDir(), "song.ogg")
		if err := NewTagWriter(r).EmbedArtwork(context.Background(), path, pngImage(t)); err != nil {
			t.Fatalf("EmbedArtwork failed: %v", err)
		}
		encoded := r.opts.Metadata["METADATA_BLOCK_PICTURE"]
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(raw) < 4 {
			t.Fatalf("invalid picture block: %v", err)
		}
		if raw[3] != 3 {
			t.Errorf("expected front cover picture type, got %d", raw[3])
		}
	})

	t.Run("m4a artwork uses a temporary cover file", func(t *testing.T) {
		r := &recordingRemuxer{}
		dir := t.TempDir()
		path := filepath.Join(dir, "song.m4a")
		img := pngImage(t)
		if err := NewTagWriter(r).EmbedArtwork(context.Background(), path, img); err != nil {
			t.Fatalf("EmbedArtwork failed: %v", err)
		}
		if !bytes.Equal(r.cover, img) {
			t.Error("cover file content mismatch")
		}
		if _, err := os.Stat(r.opts.CoverPath); !os.IsNotExist(err) {
			t.Error("cover file should be removed")
		}
	})

	t.Run("remux failure propagates", func(t *testing.T) {
		r := &recordingRemuxer{err: shared.ErrEncoderFailed}
		err := NewTagWriter(r).WriteTags(context.Background(), "song.ogg", tags)
		if !errors.Is(err, shared.ErrEncoderFailed) {
			t.Errorf("expected ErrEncoderFailed, got %v", err)
		}
	})

	t.Run("no remuxer", func(t *testing.T) {
		err := NewTagWriter(nil).WriteTags(context.Background(), "song.ogg", tags)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("unsupported container", func(t *testing.T) {
		err := NewTagWriter(nil).WriteTags(context.Background(), "song.wav", tags)
		if !errors.Is(err, shared.ErrUnsupportedContainer) {
			t.Errorf("expected ErrUnsupportedContainer, got %v", err)
		}
	})

	t.Run("empty artwork", func(t *testing.T) {
		err := NewTagWriter(nil).EmbedArtwork(context.Background(), "song.mp3", nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
