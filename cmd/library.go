package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/dhowden/tag"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// Resolve fetches the metadata behind a link and prints the entry.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: link is required", shared.ErrMissingArgument)
	}

	r.logger.Debug("resolving link", "link", link)
	entry, err := services.Resolve(ctx, link, r.resolverList(ctx)...)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", link, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%s, %d tracks)", entry.Title(), entry.ItemType(), entry.Len()))
	r.writeEntryTable([]models.Entry{*entry})
	return nil
}

func (r *Runner) writeEntryTable(entries []models.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Artists", "Album", "Source"})

	for i, item := range formatter.NewManifest(entries).Items {
		artists := models.Track{Artists: item.Artists}.ArtistLine()
		t.AppendRow(table.Row{i + 1, item.Title, artists, item.Album, item.Platform + ":" + item.SourceID})
	}
	t.Render()
}

// Index writes the m3u8 playlist index of a folder.
func (r *Runner) Index(ctx context.Context, cmd *cli.Command) error {
	folder := cmd.StringArg("folder")
	if folder == "" {
		return fmt.Errorf("%w: folder is required", shared.ErrMissingArgument)
	}

	path, err := formatter.WritePlaylistIndex(folder)
	if err != nil {
		return err
	}
	r.logger.Info("playlist index written", "path", path)
	return r.writePlain("✓ %s\n", path)
}

// TagInfo is the tag summary printed by inspect.
type TagInfo struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	FileType    string `json:"file_type"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Year        int    `json:"year,omitempty"`
	Track       int    `json:"track,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Artwork     string `json:"artwork,omitempty"`
}

// ReadTagInfo reads the tags of the audio file at path.
func ReadTagInfo(path string) (*TagInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := m.Track()
	info := &TagInfo{
		Path:        path,
		Format:      string(m.Format()),
		FileType:    string(m.FileType()),
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Year:        m.Year(),
		Track:       track,
		Genre:       m.Genre(),
	}
	if p := m.Picture(); p != nil {
		info.Artwork = fmt.Sprintf("%s, %d bytes", p.MIMEType, len(p.Data))
	}
	return info, nil
}

// Inspect prints the tags of an audio file.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file is required", shared.ErrMissingArgument)
	}

	info, err := ReadTagInfo(path)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(info, true)
	}

	r.writePlainHeader(info.Path)
	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Format", info.Format + " / " + info.FileType},
		{"Title", info.Title},
		{"Artist", info.Artist},
		{"Album", info.Album},
		{"Year", info.Year},
		{"Artwork", info.Artwork},
	})
	t.Render()
	return nil
}
