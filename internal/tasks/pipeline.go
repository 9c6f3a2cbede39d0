package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/media"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Acquirer downloads the raw audio for a track into dir, a scratch folder owned by the
// calling job. Strategies that cannot handle the track's platform return
// [shared.ErrUnsupportedPlatform].
type Acquirer interface {
	Name() string
	Acquire(ctx context.Context, track models.Track, dir string) (*models.RawAudio, error)
}

// Encoder transcodes a raw file into outDir/name with preset and returns the output path.
type Encoder interface {
	Transcode(ctx context.Context, input, outDir, name string, preset media.Preset) (string, error)
}

// Tagger writes text tags into an encoded file.
type Tagger interface {
	WriteTags(ctx context.Context, path string, tags media.Tags) error
}

// ArtworkEmbedder attaches a cover image to an encoded file.
type ArtworkEmbedder interface {
	EmbedArtwork(ctx context.Context, path string, image []byte) error
}

// ArtworkSource downloads an image to destBase plus an extension and returns the path.
type ArtworkSource interface {
	Fetch(ctx context.Context, url, destBase string) (string, error)
}

// MetadataLookup finds catalogue metadata for an "Artist - Title" query.
type MetadataLookup interface {
	Lookup(ctx context.Context, query string) (*models.LookupResult, error)
}

// PipelineOptions holds the collaborators and output settings of a [Pipeline].
// Artwork, ArtworkSource and Lookup are optional.
type PipelineOptions struct {
	Acquirers        []Acquirer
	Encoder          Encoder
	Tagger           Tagger
	Artwork          ArtworkEmbedder
	ArtworkSource    ArtworkSource
	Lookup           MetadataLookup
	Preset           media.Preset
	OutputRoot       string
	TempDir          string
	FilenameTemplate string
	Logger           *log.Logger
}

// Pipeline carries one track through acquire, transcode, tag, artwork and cleanup.
//
// Output paths are reserved per track for the lifetime of the pipeline, so two tracks
// whose names sanitize to the same file get numbered names instead of sharing one.
type Pipeline struct {
	opts   PipelineOptions
	logger *log.Logger

	mu     sync.Mutex
	claims map[string]claim
}

// claim identifies the track that reserved an output path.
type claim struct {
	queue *Queue
	coord models.Coord
}

// NewPipeline validates opts and fills defaults.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if len(opts.Acquirers) == 0 {
		return nil, fmt.Errorf("%w: at least one acquirer is required", shared.ErrInvalidArgument)
	}
	if opts.Encoder == nil || opts.Tagger == nil {
		return nil, fmt.Errorf("%w: encoder and tagger are required", shared.ErrInvalidArgument)
	}
	if opts.Preset.Codec == "" {
		return nil, fmt.Errorf("%w: quality preset is required", shared.ErrInvalidArgument)
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = "."
	}
	if opts.TempDir == "" {
		opts.TempDir = ".TEMP"
	}
	if opts.FilenameTemplate == "" {
		opts.FilenameTemplate = "$artist$ - $title$"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "pipeline"),
		claims: make(map[string]claim),
	}, nil
}

// checkpoint fails fast once ctx is cancelled. A cancellation cause is kept in the error.
func checkpoint(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, shared.ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", shared.ErrAborted, cause)
}

// reserve returns a file name in folder that no other track of this pipeline holds.
// The first collision gets " (2)", the next " (3)" and so on. A track asking again
// gets its earlier name back.
func (p *Pipeline) reserve(q *Queue, coord models.Coord, folder, name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner := claim{queue: q, coord: coord}
	for owned, c := range p.claims {
		if c == owner {
			delete(p.claims, owned)
		}
	}

	candidate := name
	for n := 2; ; n++ {
		key := strings.ToLower(filepath.Join(folder, candidate+p.opts.Preset.Container.Ext()))
		if _, taken := p.claims[key]; !taken {
			p.claims[key] = owner
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
}

// Run processes the track at coord, reporting every status change through report.
//
// Acquire and transcode failures move the track to error and are returned. Tag, artwork
// and cleanup failures are logged and the track still finishes as done.
func (p *Pipeline) Run(ctx context.Context, q *Queue, coord models.Coord, report func(Stage)) (err error) {
	if report == nil {
		report = func(Stage) {}
	}
	track, err := q.Track(coord)
	if err != nil {
		return err
	}
	logger := shared.WithLogger(p.logger, "title", track.Title)

	advance := func(status models.Status) error {
		if err := q.SetStatus(coord, status); err != nil {
			return err
		}
		report(Stage{Coord: coord, Status: status, Title: track.Title})
		return nil
	}

	var raw *models.RawAudio
	workDir := filepath.Join(p.opts.TempDir, fmt.Sprintf("%d_%d_%s", coord.Entry, coord.Track, shared.ShortID(shared.GenerateID())))
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("could not remove work folder", "path", workDir, "err", rmErr)
		}
		if err == nil {
			return
		}
		if raw != nil {
			os.Remove(raw.Path)
		}
		if failErr := q.Fail(coord, err); failErr != nil {
			logger.Warn("could not mark track failed", "err", failErr)
			return
		}
		report(Stage{Coord: coord, Status: models.StatusError, Title: track.Title, Err: err})
	}()

	if err := checkpoint(ctx); err != nil {
		return err
	}
	if err := advance(models.StatusDownloading); err != nil {
		return err
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work folder: %w", err)
	}
	raw, err = p.acquire(ctx, track, workDir, logger)
	if err != nil {
		return err
	}
	if err := q.Update(coord, func(t *models.Track) { mergeRaw(t, raw) }); err != nil {
		return err
	}

	if p.opts.Lookup != nil {
		if err := checkpoint(ctx); err != nil {
			return err
		}
		p.enrich(ctx, q, coord, logger)
	}
	if track, err = q.Track(coord); err != nil {
		return err
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}
	if err := advance(models.StatusTranscoding); err != nil {
		return err
	}

	folder := p.opts.OutputRoot
	if title := q.CollectionTitle(coord); title != "" {
		folder = filepath.Join(folder, shared.SanitizeFileName(title))
	}
	name := p.reserve(q, coord, folder, media.FileName(p.opts.FilenameTemplate, track))
	out, err := p.opts.Encoder.Transcode(ctx, raw.Path, folder, name, p.opts.Preset)
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	if err := q.Update(coord, func(t *models.Track) { t.OutputPath = out }); err != nil {
		return err
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}
	if err := advance(models.StatusTagging); err != nil {
		return err
	}

	tags := media.Tags{Title: track.Title, Artist: track.ArtistLine(), Album: track.Album, Year: track.Year}
	if err := p.opts.Tagger.WriteTags(ctx, out, tags); err != nil {
		logger.Warn("tagging failed", "path", out, "err", err)
	}
	if track.ThumbnailURL != "" && p.opts.Artwork != nil && p.opts.ArtworkSource != nil {
		if err := p.embedArtwork(ctx, coord, track, out); err != nil {
			logger.Warn("artwork failed", "url", track.ThumbnailURL, "err", err)
		}
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}
	if err := advance(models.StatusCleaning); err != nil {
		return err
	}
	if rmErr := os.Remove(raw.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logger.Warn("cleanup failed", "path", raw.Path, "err", rmErr)
	}
	raw = nil

	if err := advance(models.StatusDone); err != nil {
		return err
	}
	logger.Info("done", "path", out)
	return nil
}

// acquire tries each strategy in order. Unsupported strategies are skipped silently;
// other failures fall through to the next strategy and the last one is returned.
func (p *Pipeline) acquire(ctx context.Context, track models.Track, dir string, logger *log.Logger) (*models.RawAudio, error) {
	var lastErr error
	for _, a := range p.opts.Acquirers {
		raw, err := a.Acquire(ctx, track, dir)
		if err == nil {
			logger.Debug("acquired", "strategy", a.Name(), "path", raw.Path)
			return raw, nil
		}
		if errors.Is(err, shared.ErrUnsupportedPlatform) {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, shared.ErrAborted) {
			return nil, fmt.Errorf("acquire: %w", err)
		}
		logger.Warn("acquire strategy failed", "strategy", a.Name(), "err", err)
		lastErr = fmt.Errorf("acquire via %s: %w", a.Name(), err)
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no acquire strategy handles %s tracks", shared.ErrUnsupportedPlatform, track.Platform)
	}
	return nil, lastErr
}

// mergeRaw fills fields the resolver left empty with what the fetch reported.
func mergeRaw(t *models.Track, raw *models.RawAudio) {
	if t.Title == "" {
		t.Title = raw.Title
	}
	if len(t.Artists) == 0 && len(raw.Artists) > 0 {
		t.Artists = append([]string(nil), raw.Artists...)
	}
	if t.Album == "" {
		t.Album = raw.Album
	}
	if t.Year == 0 {
		t.Year = raw.Year
	}
	if t.Duration == 0 {
		t.Duration = raw.Duration
	}
	if t.ThumbnailURL == "" {
		t.ThumbnailURL = raw.ThumbnailURL
	}
}

// enrich fills a missing album or year from the metadata lookup. Misses are logged only.
func (p *Pipeline) enrich(ctx context.Context, q *Queue, coord models.Coord, logger *log.Logger) {
	track, err := q.Track(coord)
	if err != nil || (track.Album != "" && track.Year != 0) {
		return
	}

	query := track.ArtistLine() + " - " + track.Title
	res, err := p.opts.Lookup.Lookup(ctx, query)
	if err != nil {
		logger.Debug("metadata lookup missed", "query", query, "err", err)
		return
	}
	q.Update(coord, func(t *models.Track) {
		if t.Album == "" {
			t.Album = res.Album
		}
		if t.Year == 0 {
			t.Year = res.Year
		}
	})
}

func (p *Pipeline) embedArtwork(ctx context.Context, coord models.Coord, track models.Track, out string) error {
	base := filepath.Join(p.opts.TempDir, fmt.Sprintf("cover_%s_%d_%d", shared.SanitizeFileName(track.Title), coord.Entry, coord.Track))
	cover, err := p.opts.ArtworkSource.Fetch(ctx, track.ThumbnailURL, base)
	if err != nil {
		return err
	}
	defer os.Remove(cover)

	data, err := os.ReadFile(cover)
	if err != nil {
		return err
	}
	return p.opts.Artwork.EmbedArtwork(ctx, out, data)
}
