package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/zhaarey/go-mp4tag"
)

// Remuxer rewrites a file through a stream copy. [FFmpeg] implements it.
type Remuxer interface {
	Remux(ctx context.Context, path string, opts RemuxOpts) error
}

// TagWriter writes text tags and cover art using the mechanism native to each [Container].
//
// mp3 and flac are edited in process; ogg tags and m4a artwork go through a remux.
type TagWriter struct {
	remux Remuxer
}

// NewTagWriter creates a TagWriter that uses r for the remux based containers.
func NewTagWriter(r Remuxer) *TagWriter {
	return &TagWriter{remux: r}
}

// WriteTags writes tags into the file at path.
func (w *TagWriter) WriteTags(ctx context.Context, path string, tags Tags) error {
	c, err := ContainerOf(path)
	if err != nil {
		return err
	}

	switch c {
	case MP3:
		return writeID3(path, tags)
	case M4A:
		return writeMP4(path, tags)
	case FLAC:
		return writeFLAC(path, tags)
	case OGG:
		return w.remuxWith(ctx, path, RemuxOpts{Metadata: tags.Native(OGG)})
	}
	return fmt.Errorf("%w: %s", shared.ErrUnsupportedContainer, c)
}

// EmbedArtwork attaches image as the front cover of the file at path.
func (w *TagWriter) EmbedArtwork(ctx context.Context, path string, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}
	c, err := ContainerOf(path)
	if err != nil {
		return err
	}
	mime := http.DetectContentType(image)

	switch c {
	case MP3:
		return embedID3(path, image, mime)
	case FLAC:
		return embedFLAC(path, image, mime)
	case OGG:
		block, err := pictureBlock(image, mime)
		if err != nil {
			return err
		}
		return w.remuxWith(ctx, path, RemuxOpts{
			Metadata: map[string]string{"METADATA_BLOCK_PICTURE": base64.StdEncoding.EncodeToString(block.Data)},
		})
	case M4A:
		cover, err := writeTempImage(path, image, mime)
		if err != nil {
			return err
		}
		defer os.Remove(cover)
		return w.remuxWith(ctx, path, RemuxOpts{CoverPath: cover})
	}
	return fmt.Errorf("%w: %s", shared.ErrUnsupportedContainer, c)
}

func (w *TagWriter) remuxWith(ctx context.Context, path string, opts RemuxOpts) error {
	if w.remux == nil {
		return fmt.Errorf("%w: no remuxer configured", shared.ErrServiceUnavailable)
	}
	return w.remux.Remux(ctx, path, opts)
}

func writeID3(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3: %w", err)
	}
	defer tag.Close()

	for key, value := range tags.Native(MP3) {
		tag.AddTextFrame(key, id3v2.EncodingUTF8, value)
	}
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3: %w", err)
	}
	return nil
}

func embedID3(path string, image []byte, mime string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3: %w", err)
	}
	defer tag.Close()

	tag.DeleteFrames("APIC")
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mime,
		PictureType: id3v2.PTFrontCover,
		Description: "Front cover",
		Picture:     image,
	})
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3: %w", err)
	}
	return nil
}

func writeMP4(path string, tags Tags) error {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4: %w", err)
	}
	defer mp4.Close()

	t := &mp4tag.MP4Tags{
		Title:  tags.Title,
		Artist: tags.Artist,
		Album:  tags.Album,
		Date:   tags.Value(FieldYear),
	}
	if err := mp4.Write(t, []string{}); err != nil {
		return fmt.Errorf("write mp4 tags: %w", err)
	}
	return nil
}

// vorbisBlock returns the file's comment block and its index in f.Meta, or a new block and -1.
func vorbisBlock(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int, error) {
	for i, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil, -1, fmt.Errorf("parse vorbis comments: %w", err)
		}
		return cmts, i, nil
	}
	return flacvorbis.New(), -1, nil
}

func writeFLAC(path string, tags Tags) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("open flac: %w", err)
	}

	cmts, idx, err := vorbisBlock(f)
	if err != nil {
		return err
	}

	native := tags.Native(FLAC)
	kept := cmts.Comments[:0]
	for _, c := range cmts.Comments {
		key, _, _ := strings.Cut(c, "=")
		if _, replaced := native[strings.ToUpper(key)]; !replaced {
			kept = append(kept, c)
		}
	}
	cmts.Comments = kept
	for _, field := range Fields {
		if v := tags.Value(field); v != "" {
			if err := cmts.Add(FLAC.Key(field), v); err != nil {
				return fmt.Errorf("add %s: %w", field, err)
			}
		}
	}

	block := cmts.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

func pictureBlock(image []byte, mime string) (flac.MetaDataBlock, error) {
	pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", image, mime)
	if err != nil {
		return flac.MetaDataBlock{}, fmt.Errorf("build picture block: %w", err)
	}
	return pic.Marshal(), nil
}

func embedFLAC(path string, image []byte, mime string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("open flac: %w", err)
	}

	block, err := pictureBlock(image, mime)
	if err != nil {
		return err
	}

	meta := f.Meta[:0]
	for _, m := range f.Meta {
		if m.Type != flac.Picture {
			meta = append(meta, m)
		}
	}
	f.Meta = append(meta, &block)

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac: %w", err)
	}
	return nil
}

func writeTempImage(audioPath string, image []byte, mime string) (string, error) {
	ext := ".jpg"
	if mime == "image/png" {
		ext = ".png"
	}
	path := strings.TrimSuffix(audioPath, ".m4a") + ".cover" + ext
	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", fmt.Errorf("write cover: %w", err)
	}
	return path, nil
}
