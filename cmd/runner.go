package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/media"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the loaded config when a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	resolvers []services.Resolver
	acquirers []tasks.Acquirer
	encoder   tasks.Encoder
	tagger    tasks.Tagger
	artwork   tasks.ArtworkEmbedder
	covers    tasks.ArtworkSource
	lookup    tasks.MetadataLookup
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	Resolvers     []services.Resolver
	Acquirers     []tasks.Acquirer
	Encoder       tasks.Encoder
	Tagger        tasks.Tagger
	Artwork       tasks.ArtworkEmbedder
	ArtworkSource tasks.ArtworkSource
	Lookup        tasks.MetadataLookup
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		resolvers:  opts.Resolvers,
		acquirers:  opts.Acquirers,
		encoder:    opts.Encoder,
		tagger:     opts.Tagger,
		artwork:    opts.Artwork,
		covers:     opts.ArtworkSource,
		lookup:     opts.Lookup,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, configCommand, resolveCommand, downloadCommand, historyCommand, indexCommand, inspectCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, used when the TUI takes over the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Before loads the config named by --config and applies the logging flags.
//
// A missing config file is not an error: defaults are used and setup or config init can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	config, err := shared.LoadConfig(r.configPath)
	switch {
	case err == nil:
		r.config = config
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	default:
		return ctx, err
	}

	if level := cmd.String("log-level"); level != "" {
		if err := shared.ParseLogLevel(r.logger, level); err != nil {
			return ctx, err
		}
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// openHistory opens the history database with pending migrations applied.
func (r *Runner) openHistory() (*sql.DB, error) {
	return shared.OpenDatabase(r.config.Database)
}

// resolverList returns the injected resolvers or builds Spotify (when credentials exist) and YouTube.
func (r *Runner) resolverList(ctx context.Context) []services.Resolver {
	if r.resolvers != nil {
		return r.resolvers
	}

	var resolvers []services.Resolver
	if r.config.HasSpotify() {
		sp, err := services.NewSpotifyResolver(ctx, services.SpotifyOptions{
			ClientID:     r.config.Credentials.Spotify.ClientID,
			ClientSecret: r.config.Credentials.Spotify.ClientSecret,
			Logger:       r.logger,
		})
		if err != nil {
			r.logger.Warn("spotify resolver unavailable", "err", err)
		} else {
			resolvers = append(resolvers, sp)
		}
	}
	resolvers = append(resolvers, services.NewYouTubeResolver(r.config.Tools.YTDLP, r.logger))
	r.resolvers = resolvers
	return resolvers
}

// pipelineSettings are the per-invocation output overrides of a download.
type pipelineSettings struct {
	Preset   media.Preset
	Root     string
	TempDir  string
	Template string
}

// newPipeline wires the acquire strategies, ffmpeg, the tag writer and the optional
// artwork and MusicBrainz clients into a pipeline.
func (r *Runner) newPipeline(ctx context.Context, s pipelineSettings) (*tasks.Pipeline, error) {
	opts := tasks.PipelineOptions{
		Acquirers:        r.acquirers,
		Encoder:          r.encoder,
		Tagger:           r.tagger,
		Artwork:          r.artwork,
		ArtworkSource:    r.covers,
		Lookup:           r.lookup,
		Preset:           s.Preset,
		OutputRoot:       s.Root,
		TempDir:          s.TempDir,
		FilenameTemplate: s.Template,
		Logger:           r.logger,
	}

	if opts.Acquirers == nil {
		fetcher := services.NewYTDLPFetcher(services.FetcherOptions{
			Binary:  r.config.Tools.YTDLP,
			TempDir: s.TempDir,
			Logger:  r.logger,
		})
		opts.Acquirers = []tasks.Acquirer{fetcher, services.NewSearchAcquirer(r.searcher(ctx), fetcher, r.logger)}
	}
	if opts.Encoder == nil || opts.Tagger == nil {
		ffmpeg := media.NewFFmpeg(r.config.Tools.FFmpeg, r.logger)
		writer := media.NewTagWriter(ffmpeg)
		if opts.Encoder == nil {
			opts.Encoder = ffmpeg
		}
		if opts.Tagger == nil {
			opts.Tagger = writer
			if opts.Artwork == nil {
				opts.Artwork = writer
			}
		}
	}
	if opts.ArtworkSource == nil {
		opts.ArtworkSource = services.NewArtworkClient(r.config.Metadata.UserAgent, r.httpClient)
	}
	if opts.Lookup == nil && r.config.Metadata.Enrich {
		opts.Lookup = services.NewMusicBrainz("", r.config.Metadata.UserAgent, r.config.Metadata.RequestsPerSecond, r.httpClient)
	}

	return tasks.NewPipeline(opts)
}

// searcher prefers the YouTube Data API when a key is configured and falls back to ytsearch.
func (r *Runner) searcher(ctx context.Context) services.Searcher {
	if key := r.config.Credentials.YouTube.APIKey; key != "" {
		s, err := services.NewYouTubeAPISearcher(ctx, key)
		if err == nil {
			return s
		}
		r.logger.Warn("youtube api search unavailable, using yt-dlp search", "err", err)
	}
	return services.NewYTDLPSearcher(r.config.Tools.YTDLP)
}

// settingsFrom applies the download flags on top of the config.
func (r *Runner) settingsFrom(cmd *cli.Command) (pipelineSettings, error) {
	quality := r.config.Output.Quality
	if q := cmd.String("quality"); q != "" {
		quality = q
	}
	preset, err := media.LookupPreset(quality)
	if err != nil {
		return pipelineSettings{}, err
	}

	root := r.config.Output.Root
	if o := cmd.String("output"); o != "" {
		root = o
	}
	template := r.config.Output.FilenameTemplate
	if t := cmd.String("template"); t != "" {
		template = t
	}

	return pipelineSettings{
		Preset:   preset,
		Root:     root,
		TempDir:  filepath.Join(root, r.config.Output.TempDir),
		Template: template,
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
