package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/tapedeck/internal/shared"
)

func TestAPIClient(t *testing.T) {
	t.Run("sends user agent and query", func(t *testing.T) {
		var ua, q string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua = r.Header.Get("User-Agent")
			q = r.URL.Query().Get("a")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		var out struct{ OK bool }
		err := NewAPIClient(srv.URL, "tapedeck-test", 0, nil).GetJSON(context.Background(), "/x", map[string][]string{"a": {"b"}}, &out)
		if err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
		if !out.OK || ua != "tapedeck-test" || q != "b" {
			t.Errorf("ok=%v ua=%q q=%q", out.OK, ua, q)
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		tc := []struct {
			status int
			want   error
		}{
			{http.StatusNotFound, shared.ErrNotFound},
			{http.StatusServiceUnavailable, shared.ErrServiceUnavailable},
			{http.StatusTooManyRequests, shared.ErrServiceUnavailable},
			{http.StatusInternalServerError, shared.ErrAPIRequest},
		}
		for _, tt := range tc {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			var out any
			err := NewAPIClient(srv.URL, "", 0, nil).GetJSON(context.Background(), "/", nil, &out)
			srv.Close()
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
			}
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewAPIClient(url, "", 0, nil).Get(context.Background(), "/", nil)
		if !errors.Is(err, shared.ErrNetworkUnreachable) {
			t.Errorf("expected ErrNetworkUnreachable, got %v", err)
		}
	})
}

func TestMusicBrainz(t *testing.T) {
	t.Run("RecordingQuery", func(t *testing.T) {
		if got := RecordingQuery("Radiohead - Karma Police"); got != `artist:"Radiohead" AND recording:"Karma Police"` {
			t.Errorf("RecordingQuery = %s", got)
		}
		if got := RecordingQuery(`say "hi"`); got != `say "hi"` {
			t.Errorf("free text should pass through, got %s", got)
		}
		if got := RecordingQuery(`A - say "hi"`); got != `artist:"A" AND recording:"say \"hi\""` {
			t.Errorf("quotes should be escaped, got %s", got)
		}
	})

	t.Run("first recording wins", func(t *testing.T) {
		var query, format string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ws/2/recording" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			query = r.URL.Query().Get("query")
			format = r.URL.Query().Get("fmt")
			w.Write([]byte(`{"count":2,"recordings":[
				{"id":"r1","title":"Karma Police","artist-credit":[{"name":"Radiohead","joinphrase":" feat. "},{"name":"Guest"}],
				 "releases":[{"id":"rel1","title":"OK Computer","date":"1997-05-21"}]},
				{"id":"r2","title":"Other"}]}`))
		}))
		defer srv.Close()

		got, err := NewMusicBrainz(srv.URL, "ua", 100, nil).Lookup(context.Background(), "Radiohead - Karma Police")
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if format != "json" || query != `artist:"Radiohead" AND recording:"Karma Police"` {
			t.Errorf("unexpected request: fmt=%s query=%s", format, query)
		}
		if got.Title != "Karma Police" || got.Artist != "Radiohead feat. Guest" || got.Album != "OK Computer" || got.Year != 1997 || got.ReleaseID != "rel1" {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("no recordings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"count":0,"recordings":[]}`))
		}))
		defer srv.Close()

		_, err := NewMusicBrainz(srv.URL, "ua", 1, nil).Lookup(context.Background(), "nothing")
		if !errors.Is(err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", err)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := NewMusicBrainz("", "ua", 1, nil).Lookup(context.Background(), " ")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestArtworkClient(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("extension from content type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "cover_Song")
		path, err := NewArtworkClient("ua", nil).Fetch(context.Background(), srv.URL+"/art", dest)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if path != dest+".png" {
			t.Errorf("unexpected path %s", path)
		}
		data, _ := os.ReadFile(path)
		if string(data) != string(png) {
			t.Error("artwork content mismatch")
		}
	})

	t.Run("imageExt fallbacks", func(t *testing.T) {
		tc := []struct {
			ct, path string
			body     []byte
			want     string
		}{
			{"image/jpeg; charset=binary", "", nil, ".jpg"},
			{"application/octet-stream", "/vi/x/hq.webp", nil, ".webp"},
			{"", "/img", png, ".png"},
			{"", "/img", []byte("???"), ".jpg"},
		}
		for _, tt := range tc {
			if got := imageExt(tt.ct, tt.path, tt.body); got != tt.want {
				t.Errorf("imageExt(%q, %q) = %s, want %s", tt.ct, tt.path, got, tt.want)
			}
		}
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := NewArtworkClient("", nil).Fetch(context.Background(), "file:///etc/passwd", filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := NewArtworkClient("", nil).Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
