package media

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Preset is an encoder setting: output container, ffmpeg codec and bitrate.
// An empty Bitrate omits -b:a (lossless codecs).
type Preset struct {
	Key       string
	Label     string
	Container Container
	Codec     string
	Bitrate   string
}

var presets = []Preset{
	{Key: "mp3_128", Label: "MP3 128kbps", Container: MP3, Codec: "libmp3lame", Bitrate: "128K"},
	{Key: "mp3_256", Label: "MP3 256kbps", Container: MP3, Codec: "libmp3lame", Bitrate: "256K"},
	{Key: "mp3_320", Label: "MP3 320kbps", Container: MP3, Codec: "libmp3lame", Bitrate: "320K"},
	{Key: "ogg", Label: "OGG", Container: OGG, Codec: "libvorbis", Bitrate: "192K"},
	{Key: "m4a", Label: "M4A", Container: M4A, Codec: "aac", Bitrate: "192K"},
	{Key: "flac", Label: "FLAC", Container: FLAC, Codec: "flac"},
}

// Presets returns every preset in display order.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by key ("mp3_320") or label ("MP3 320kbps").
func LookupPreset(name string) (Preset, error) {
	for _, p := range presets {
		if p.Key == name || p.Label == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: unknown quality preset %q", shared.ErrInvalidArgument, name)
}
