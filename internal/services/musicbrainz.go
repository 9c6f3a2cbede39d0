package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const (
	musicBrainzURL   = "https://musicbrainz.org"
	musicBrainzLimit = 5
)

type mbArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

type mbRelease struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type mbRecording struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
	Releases     []mbRelease      `json:"releases"`
}

type mbSearchResponse struct {
	Count      int           `json:"count"`
	Recordings []mbRecording `json:"recordings"`
}

// MusicBrainz looks up recordings through the MusicBrainz web service.
type MusicBrainz struct {
	api *APIClient
}

// NewMusicBrainz creates a lookup client. MusicBrainz asks for a descriptive
// user agent and at most one request per second.
func NewMusicBrainz(baseURL, userAgent string, rps float64, client *http.Client) *MusicBrainz {
	if baseURL == "" {
		baseURL = musicBrainzURL
	}
	if rps <= 0 || rps > 1 {
		rps = 1
	}
	return &MusicBrainz{api: NewAPIClient(baseURL, userAgent, rps, client)}
}

// RecordingQuery builds the lucene query for "Artist - Title", or passes other input through.
func RecordingQuery(query string) string {
	artist, title, ok := strings.Cut(query, " - ")
	if !ok {
		return query
	}
	return fmt.Sprintf(`artist:"%s" AND recording:"%s"`, escapeLucene(strings.TrimSpace(artist)), escapeLucene(strings.TrimSpace(title)))
}

func escapeLucene(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Lookup returns the best recording match for query ("Artist - Title" or free text).
func (m *MusicBrainz) Lookup(ctx context.Context, query string) (*models.LookupResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("query", RecordingQuery(query))
	params.Set("limit", fmt.Sprint(musicBrainzLimit))
	params.Set("fmt", "json")

	var resp mbSearchResponse
	if err := m.api.GetJSON(ctx, "/ws/2/recording", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Recordings) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrNoMatch, query)
	}

	rec := resp.Recordings[0]
	var artist strings.Builder
	for _, c := range rec.ArtistCredit {
		artist.WriteString(c.Name)
		artist.WriteString(c.JoinPhrase)
	}

	result := &models.LookupResult{Title: rec.Title, Artist: artist.String()}
	if len(rec.Releases) > 0 {
		rel := rec.Releases[0]
		result.Album = rel.Title
		result.ReleaseID = rel.ID
		result.Year = parseYear(rel.Date)
	}
	return result, nil
}
