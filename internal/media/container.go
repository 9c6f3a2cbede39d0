package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Container is the closed set of output formats tapedeck can tag.
type Container int

const (
	MP3 Container = iota
	M4A
	OGG
	FLAC
)

func (c Container) String() string {
	switch c {
	case MP3:
		return "mp3"
	case M4A:
		return "m4a"
	case OGG:
		return "ogg"
	case FLAC:
		return "flac"
	default:
		return ""
	}
}

// Ext returns the file extension including the leading dot.
func (c Container) Ext() string {
	return "." + c.String()
}

// ParseContainer maps an extension ("mp3" or ".mp3", any case) to its container.
func ParseContainer(ext string) (Container, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		return MP3, nil
	case "m4a":
		return M4A, nil
	case "ogg":
		return OGG, nil
	case "flac":
		return FLAC, nil
	}
	return 0, fmt.Errorf("%w: %q", shared.ErrUnsupportedContainer, ext)
}

// ContainerOf returns the container for a file path.
func ContainerOf(path string) (Container, error) {
	return ParseContainer(filepath.Ext(path))
}

// IsAudioFile reports whether path has one of the supported extensions.
func IsAudioFile(path string) bool {
	_, err := ContainerOf(path)
	return err == nil
}

// Field is a logical tag field.
type Field int

const (
	FieldTitle Field = iota
	FieldArtist
	FieldAlbum
	FieldYear
)

// Fields lists every logical field in write order.
var Fields = []Field{FieldTitle, FieldArtist, FieldAlbum, FieldYear}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldArtist:
		return "artist"
	case FieldAlbum:
		return "album"
	case FieldYear:
		return "year"
	default:
		return ""
	}
}

// fieldKeys maps logical fields to the native key of each container:
// ID3v2.4 frame ids, iTunes atoms, and Vorbis comment names.
var fieldKeys = map[Container]map[Field]string{
	MP3:  {FieldTitle: "TIT2", FieldArtist: "TPE1", FieldAlbum: "TALB", FieldYear: "TDRC"},
	M4A:  {FieldTitle: "©nam", FieldArtist: "©ART", FieldAlbum: "©alb", FieldYear: "©day"},
	OGG:  {FieldTitle: "TITLE", FieldArtist: "ARTIST", FieldAlbum: "ALBUM", FieldYear: "DATE"},
	FLAC: {FieldTitle: "TITLE", FieldArtist: "ARTIST", FieldAlbum: "ALBUM", FieldYear: "DATE"},
}

// Key returns the native tag key for f in container c.
func (c Container) Key(f Field) string {
	return fieldKeys[c][f]
}

// Tags holds the logical field values written into a file.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Year   int
}

// Value returns the string form of f, "" when unset.
func (t Tags) Value(f Field) string {
	switch f {
	case FieldTitle:
		return t.Title
	case FieldArtist:
		return t.Artist
	case FieldAlbum:
		return t.Album
	case FieldYear:
		if t.Year > 0 {
			return fmt.Sprintf("%04d", t.Year)
		}
	}
	return ""
}

// Native returns the non-empty values keyed by the native keys of c.
func (t Tags) Native(c Container) map[string]string {
	out := make(map[string]string, len(Fields))
	for _, f := range Fields {
		if v := t.Value(f); v != "" {
			out[c.Key(f)] = v
		}
	}
	return out
}
