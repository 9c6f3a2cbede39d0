package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Default values used when a source omits a field.
const (
	UnknownTitle  = "Unknown title"
	UnknownArtist = "Unknown artist"
)

// Resolver turns a link into a queue entry.
type Resolver interface {
	// Name identifies the platform in logs and errors.
	Name() string

	// Supports reports whether link belongs to this resolver's platform.
	Supports(link string) bool

	// Resolve fetches the metadata behind link. Tracks come back with status waiting.
	Resolve(ctx context.Context, link string) (*models.Entry, error)
}

// Resolve dispatches link to the first resolver that supports it.
func Resolve(ctx context.Context, link string, resolvers ...Resolver) (*models.Entry, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, fmt.Errorf("%w: empty link", shared.ErrInvalidLink)
	}
	for _, r := range resolvers {
		if r != nil && r.Supports(link) {
			return r.Resolve(ctx, link)
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedPlatform, link)
}

// parseYear reads the leading four digit year of a date such as "1997-05-21" or "20240101".
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// withDefaults fills the fields every queued track must carry.
func withDefaults(t models.Track) models.Track {
	if t.Title == "" {
		t.Title = UnknownTitle
	}
	if len(t.Artists) == 0 {
		t.Artists = []string{UnknownArtist}
	}
	if t.TrackNumber == 0 {
		t.TrackNumber = 1
	}
	t.Status = models.StatusWaiting
	return t
}
