package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// TemplateDelim opens and closes a template key.
const TemplateDelim = '$'

// TemplateKeys lists the keys RenderTemplate substitutes.
var TemplateKeys = []string{"title", "artist", "album", "year", "track_number", "platform", "length"}

// TemplateData returns the substitution values for track.
func TemplateData(track models.Track) map[string]string {
	year := ""
	if track.Year > 0 {
		year = strconv.Itoa(track.Year)
	}
	return map[string]string{
		"title":        track.Title,
		"artist":       track.ArtistLine(),
		"album":        track.Album,
		"year":         year,
		"track_number": strconv.Itoa(track.TrackNumber),
		"platform":     string(track.Platform),
		"length":       strconv.Itoa(track.Duration),
	}
}

// RenderTemplate replaces each $key$ in tmpl with data[key].
// Unknown keys render empty and an unterminated key is dropped.
func RenderTemplate(tmpl string, data map[string]string) string {
	var out, key strings.Builder
	open := false
	for _, r := range tmpl {
		switch {
		case r == TemplateDelim && !open:
			open = true
		case r == TemplateDelim:
			out.WriteString(data[key.String()])
			key.Reset()
			open = false
		case open:
			key.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// FileName renders tmpl for track and sanitizes the result for use as a file name without extension.
//
// Falls back to the sanitized title, then to "track NN", when the template renders empty.
func FileName(tmpl string, track models.Track) string {
	if name := shared.SanitizeFileName(RenderTemplate(tmpl, TemplateData(track))); name != "" {
		return name
	}
	if name := shared.SanitizeFileName(track.Title); name != "" {
		return name
	}
	return fmt.Sprintf("track %02d", track.TrackNumber)
}
