package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Searcher finds the id of the YouTube video that best matches a free text query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchQuery builds the "title artist artist" query used for alternate sources.
func SearchQuery(track models.Track) string {
	return strings.TrimSpace(track.Title + " " + strings.Join(track.Artists, " "))
}

// SearchAcquirer acquires any track by searching YouTube for it and fetching the first hit.
type SearchAcquirer struct {
	searcher Searcher
	fetcher  *YTDLPFetcher
	logger   *log.Logger
}

// NewSearchAcquirer pairs a searcher with the fetcher that downloads its result.
func NewSearchAcquirer(s Searcher, f *YTDLPFetcher, logger *log.Logger) *SearchAcquirer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SearchAcquirer{searcher: s, fetcher: f, logger: shared.WithLogger(logger, "component", "search")}
}

func (a *SearchAcquirer) Name() string { return "search" }

// Acquire searches for the track and fetches the best match into dir.
func (a *SearchAcquirer) Acquire(ctx context.Context, track models.Track, dir string) (*models.RawAudio, error) {
	query := SearchQuery(track)
	if query == "" {
		return nil, fmt.Errorf("%w: track has no title or artists to search for", shared.ErrInvalidInput)
	}

	id, err := a.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("search matched", "query", query, "id", id)
	return a.fetcher.Fetch(ctx, id, dir)
}

// YouTubeAPISearcher searches through the YouTube Data API v3 with an API key.
type YouTubeAPISearcher struct {
	svc *youtube.Service
}

// NewYouTubeAPISearcher creates a searcher for apiKey. Extra options are appended after the key.
func NewYouTubeAPISearcher(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeAPISearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: youtube api_key", shared.ErrMissingCredentials)
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &YouTubeAPISearcher{svc: svc}, nil
}

// Search returns the first video result for query.
func (s *YouTubeAPISearcher) Search(ctx context.Context, query string) (string, error) {
	resp, err := s.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			return "", fmt.Errorf("%w: youtube search status %d: %s", shared.ErrAPIRequest, gErr.Code, gErr.Message)
		}
		return "", shared.ClassifyNetErr(fmt.Errorf("youtube search: %w", err))
	}

	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return item.Id.VideoId, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrNoMatch, query)
}

// YTDLPSearcher searches through yt-dlp's ytsearch extractor and needs no credentials.
type YTDLPSearcher struct {
	binary string
	run    ytdlpRunner
}

// NewYTDLPSearcher creates a searcher that runs binary (default "yt-dlp").
func NewYTDLPSearcher(binary string) *YTDLPSearcher {
	return &YTDLPSearcher{binary: binary, run: runYTDLP}
}

// Search returns the first ytsearch1: hit for query.
func (s *YTDLPSearcher) Search(ctx context.Context, query string) (string, error) {
	cmd := newCommand(s.binary).DumpSingleJSON().FlatPlaylist().SkipDownload()
	out, err := s.run(ctx, cmd, "ytsearch1:"+query)
	if err != nil {
		return "", err
	}
	info, err := decodeInfo(out)
	if err != nil {
		return "", err
	}
	for _, e := range info.Entries {
		if youtubeIDPattern.MatchString(e.ID) {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrNoMatch, query)
}
