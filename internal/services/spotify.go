// Spotify implementation of [Resolver]
//
// Uses the Web API through zmb3/spotify with an app token from the client credentials flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyHost     = "open.spotify.com"
	spotifyPageSize = 50
)

var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// SpotifyKind is the resource type addressed by a Spotify link.
type SpotifyKind string

const (
	SpotifyTrack    SpotifyKind = "track"
	SpotifyAlbum    SpotifyKind = "album"
	SpotifyPlaylist SpotifyKind = "playlist"
)

// SpotifyOptions configures a [SpotifyResolver]. TokenURL and BaseURL are overridden in tests.
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	RateLimit    float64
	Logger       *log.Logger
}

// SpotifyResolver resolves track, album and playlist links.
type SpotifyResolver struct {
	client  *spotify.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewSpotifyResolver creates a resolver authenticated with the app's client credentials.
func NewSpotifyResolver(ctx context.Context, opts SpotifyOptions) (*SpotifyResolver, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	creds := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	clientOpts := []spotify.ClientOption{}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(opts.BaseURL))
	}

	return &SpotifyResolver{
		client:  spotify.New(creds.Client(ctx), clientOpts...),
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:  shared.WithLogger(opts.Logger, "resolver", "spotify"),
	}, nil
}

func (s *SpotifyResolver) Name() string { return string(models.PlatformSpotify) }

func (s *SpotifyResolver) Supports(link string) bool {
	return strings.HasPrefix(link, "spotify:") || strings.Contains(link, spotifyHost)
}

// ParseSpotifyLink extracts the resource kind and 22 character id from an
// open.spotify.com URL (with or without an intl-xx segment) or a spotify: URI.
func ParseSpotifyLink(link string) (SpotifyKind, string, error) {
	var parts []string
	if rest, ok := strings.CutPrefix(link, "spotify:"); ok {
		parts = strings.Split(rest, ":")
	} else {
		u, err := url.Parse(link)
		if err != nil || u.Host != spotifyHost {
			return "", "", fmt.Errorf("%w: not a spotify link: %s", shared.ErrInvalidLink, link)
		}
		parts = strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
	}

	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected a track, album or playlist link: %s", shared.ErrInvalidLink, link)
	}

	kind := SpotifyKind(parts[0])
	switch kind {
	case SpotifyTrack, SpotifyAlbum, SpotifyPlaylist:
	default:
		return "", "", fmt.Errorf("%w: unsupported spotify resource %q", shared.ErrInvalidLink, parts[0])
	}
	if !spotifyIDPattern.MatchString(parts[1]) {
		return "", "", fmt.Errorf("%w: invalid spotify id %q", shared.ErrInvalidLink, parts[1])
	}
	return kind, parts[1], nil
}

// Resolve fetches the track, album or playlist behind link.
func (s *SpotifyResolver) Resolve(ctx context.Context, link string) (*models.Entry, error) {
	kind, id, err := ParseSpotifyLink(link)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("resolving", "kind", kind, "id", id)

	switch kind {
	case SpotifyTrack:
		t, err := s.track(ctx, spotify.ID(id))
		if err != nil {
			return nil, err
		}
		return &models.Entry{Track: t}, nil
	case SpotifyAlbum:
		c, err := s.album(ctx, spotify.ID(id))
		if err != nil {
			return nil, err
		}
		return &models.Entry{Collection: c}, nil
	default:
		c, err := s.playlist(ctx, spotify.ID(id))
		if err != nil {
			return nil, err
		}
		return &models.Entry{Collection: c}, nil
	}
}

func (s *SpotifyResolver) track(ctx context.Context, id spotify.ID) (*models.Track, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	full, err := s.client.GetTrack(ctx, id)
	if err != nil {
		return nil, spotifyErr("track", err)
	}
	t := fromFullTrack(full, 1)
	return &t, nil
}

func (s *SpotifyResolver) album(ctx context.Context, id spotify.ID) (*models.Collection, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	album, err := s.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, spotifyErr("album", err)
	}

	items := album.Tracks.Tracks
	for offset := len(items); offset < int(album.Tracks.Total); offset = len(items) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.GetAlbumTracks(ctx, id, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, spotifyErr("album tracks", err)
		}
		if len(page.Tracks) == 0 {
			break
		}
		items = append(items, page.Tracks...)
	}

	thumb := imageURL(album.Images)
	c := &models.Collection{
		Title:        album.Name,
		ThumbnailURL: thumb,
		SourceID:     id.String(),
		Platform:     models.PlatformSpotify,
		Kind:         models.KindAlbum,
		Tracks:       make([]models.Track, 0, len(items)),
	}
	year := parseYear(album.ReleaseDate)
	for i, st := range items {
		c.Tracks = append(c.Tracks, withDefaults(models.Track{
			Title:        st.Name,
			Artists:      artistNames(st.Artists),
			Album:        album.Name,
			Duration:     int(st.Duration) / 1000,
			Year:         year,
			ThumbnailURL: thumb,
			TrackNumber:  i + 1,
			Platform:     models.PlatformSpotify,
			SourceID:     st.ID.String(),
		}))
	}
	return c, nil
}

func (s *SpotifyResolver) playlist(ctx context.Context, id spotify.ID) (*models.Collection, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pl, err := s.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, spotifyErr("playlist", err)
	}

	c := &models.Collection{
		Title:        pl.Name,
		ThumbnailURL: imageURL(pl.Images),
		SourceID:     id.String(),
		Platform:     models.PlatformSpotify,
		Kind:         models.KindPlaylist,
	}

	offset := 0
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.GetPlaylistItems(ctx, id, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, spotifyErr("playlist items", err)
		}
		for _, item := range page.Items {
			if item.Track.Track == nil {
				continue
			}
			c.Tracks = append(c.Tracks, fromFullTrack(item.Track.Track, len(c.Tracks)+1))
		}
		if len(page.Items) < spotifyPageSize {
			break
		}
		offset += spotifyPageSize
	}

	s.logger.Debug("resolved playlist", "title", c.Title, "tracks", len(c.Tracks))
	return c, nil
}

func fromFullTrack(ft *spotify.FullTrack, number int) models.Track {
	return withDefaults(models.Track{
		Title:        ft.Name,
		Artists:      artistNames(ft.Artists),
		Album:        ft.Album.Name,
		Duration:     int(ft.Duration) / 1000,
		Year:         parseYear(ft.Album.ReleaseDate),
		ThumbnailURL: imageURL(ft.Album.Images),
		TrackNumber:  number,
		Platform:     models.PlatformSpotify,
		SourceID:     ft.ID.String(),
	})
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// imageURL returns the first (largest) image.
func imageURL(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func spotifyErr(what string, err error) error {
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	status := 0
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return fmt.Errorf("%w: spotify %s: %v", shared.ErrNotFound, what, err)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the client credentials: %v", shared.ErrMissingCredentials, err)
	case status != 0:
		return fmt.Errorf("%w: spotify %s: %v", shared.ErrAPIRequest, what, err)
	}
	if classified := shared.ClassifyNetErr(err); classified != err {
		return classified
	}
	return fmt.Errorf("%w: spotify %s: %v", shared.ErrAPIRequest, what, err)
}
