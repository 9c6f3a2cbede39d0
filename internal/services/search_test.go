package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/lrstanley/go-ytdlp"
	"google.golang.org/api/option"
)

type staticSearcher struct {
	id    string
	err   error
	query string
}

func (s *staticSearcher) Search(_ context.Context, query string) (string, error) {
	s.query = query
	return s.id, s.err
}

func TestSearchQuery(t *testing.T) {
	tr := models.Track{Title: "Karma Police", Artists: []string{"Radiohead", "Guest"}}
	if got := SearchQuery(tr); got != "Karma Police Radiohead Guest" {
		t.Errorf("SearchQuery = %q", got)
	}
}

func TestSearchAcquirer(t *testing.T) {
	t.Run("fetches the first hit", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "dQw4w9WgXcQ.m4a")
		os.WriteFile(raw, []byte("audio"), 0644)

		f := NewYTDLPFetcher(FetcherOptions{TempDir: dir})
		f.run = stubRunner(`{"id":"dQw4w9WgXcQ","title":"Hit","_filename":"` + raw + `"}`)
		s := &staticSearcher{id: "dQw4w9WgXcQ"}

		got, err := NewSearchAcquirer(s, f, nil).Acquire(context.Background(), models.Track{
			Title: "Song", Artists: []string{"Band"}, Platform: models.PlatformSpotify,
		}, dir)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if s.query != "Song Band" {
			t.Errorf("unexpected query %q", s.query)
		}
		if got.Path != raw || got.SourceID != "dQw4w9WgXcQ" {
			t.Errorf("unexpected raw audio: %+v", got)
		}
	})

	t.Run("no match", func(t *testing.T) {
		s := &staticSearcher{err: shared.ErrNoMatch}
		_, err := NewSearchAcquirer(s, NewYTDLPFetcher(FetcherOptions{TempDir: t.TempDir()}), nil).
			Acquire(context.Background(), models.Track{Title: "x"}, "")
		if !errors.Is(err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", err)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := NewSearchAcquirer(&staticSearcher{}, nil, nil).Acquire(context.Background(), models.Track{}, "")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestYouTubeAPISearcher(t *testing.T) {
	newSearcher := func(t *testing.T, handler http.HandlerFunc) *YouTubeAPISearcher {
		t.Helper()
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		s, err := NewYouTubeAPISearcher(context.Background(), "key",
			option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
		if err != nil {
			t.Fatalf("NewYouTubeAPISearcher failed: %v", err)
		}
		return s
	}

	t.Run("first video id", func(t *testing.T) {
		var q string
		s := newSearcher(t, func(w http.ResponseWriter, r *http.Request) {
			q = r.URL.Query().Get("q")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items":[{"id":{"kind":"youtube#video","videoId":"dQw4w9WgXcQ"}}]}`))
		})
		id, err := s.Search(context.Background(), "never gonna")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if id != "dQw4w9WgXcQ" || q != "never gonna" {
			t.Errorf("got id %q for query %q", id, q)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		s := newSearcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items":[]}`))
		})
		if _, err := s.Search(context.Background(), "nothing"); !errors.Is(err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", err)
		}
	})

	t.Run("api error", func(t *testing.T) {
		s := newSearcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
		})
		if _, err := s.Search(context.Background(), "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, err := NewYouTubeAPISearcher(context.Background(), ""); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestYTDLPSearcher(t *testing.T) {
	t.Run("uses ytsearch1", func(t *testing.T) {
		s := NewYTDLPSearcher("")
		var target string
		s.run = func(ctx context.Context, cmd *ytdlp.Command, tgt string) (string, error) {
			target = tgt
			return `{"id":"query","entries":[{"id":"dQw4w9WgXcQ","title":"hit"}]}`, nil
		}
		id, err := s.Search(context.Background(), "song band")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if id != "dQw4w9WgXcQ" || !strings.HasPrefix(target, "ytsearch1:song band") {
			t.Errorf("got id %q target %q", id, target)
		}
	})

	t.Run("no entries", func(t *testing.T) {
		s := NewYTDLPSearcher("")
		s.run = stubRunner(`{"id":"query","entries":[]}`)
		if _, err := s.Search(context.Background(), "x"); !errors.Is(err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", err)
		}
	})
}
