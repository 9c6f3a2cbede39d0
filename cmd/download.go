package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/desertthunder/tapedeck/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/tapedeck-tui.log"

// Download resolves every link, queues the tracks and runs them through the worker pool.
//
// The destination root is locked for the whole command. SIGINT aborts the run: in-flight
// tracks fail fast and pending tracks stay waiting.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	links := cmd.Args().Slice()
	if len(links) == 0 {
		return fmt.Errorf("%w: at least one link is required", shared.ErrMissingArgument)
	}

	settings, err := r.settingsFrom(cmd)
	if err != nil {
		return err
	}

	useTUI := cmd.Bool("tui")
	if useTUI && !isatty.IsTerminal(os.Stdout.Fd()) {
		r.logger.Warn("stdout is not a terminal, using line output")
		useTUI = false
	}
	if useTUI {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	lock, err := shared.LockDir(settings.Root)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := os.MkdirAll(settings.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp folder: %w", err)
	}
	defer os.Remove(settings.TempDir)

	var history *repositories.HistoryRepository
	if !cmd.Bool("no-history") {
		db, err := r.openHistory()
		if err != nil {
			r.logger.Warn("history unavailable, run will not be recorded", "err", err)
		} else {
			defer db.Close()
			history = repositories.NewHistoryRepository(db)
		}
	}

	queue, err := r.resolveAll(ctx, links, history, cmd.Bool("skip-downloaded"))
	if err != nil {
		return err
	}

	pipeline, err := r.newPipeline(ctx, settings)
	if err != nil {
		return err
	}

	parallelism := r.config.Workers.Parallelism
	if cmd.IsSet("parallelism") {
		parallelism = int(cmd.Int("parallelism"))
	}

	updates := make(chan tasks.ProgressUpdate, 128)
	opts := tasks.ControllerOpts{
		Parallelism:  shared.ClampParallelism(parallelism),
		PollInterval: r.config.Workers.PollInterval.Duration,
		Logger:       r.logger,
		Progress:     updates,
	}
	if history != nil {
		opts.Recorder = history
	}
	ctrl := tasks.NewController(queue, pipeline, opts)
	defer ctrl.Close()

	var aborted atomic.Bool
	stopSignals := r.abortOnSignal(ctrl, &aborted)
	defer stopSignals()

	pass := func() error {
		if _, err := ctrl.Start(ctx); err != nil {
			return err
		}
		if useTUI {
			return r.monitor(ctx, ctrl, updates, &aborted, links)
		}
		r.follow(ctrl, updates, &aborted)
		return nil
	}

	if err := pass(); err != nil {
		return err
	}
	if cmd.Bool("retry-failed") && !aborted.Load() {
		if n := queue.ResetFailed(); n > 0 {
			r.logger.Info("retrying failed tracks", "count", n)
			if err := pass(); err != nil {
				return err
			}
		}
	}

	snapshot := queue.Snapshot()
	if r.config.Output.WritePlaylist {
		r.writePlaylists(settings.Root, snapshot)
	}
	if path := cmd.String("manifest"); path != "" {
		if err := r.writeManifest(path, snapshot); err != nil {
			r.logger.Warn("could not write manifest", "path", path, "err", err)
		}
	}

	r.writeSummary(snapshot, useTUI)
	if aborted.Load() {
		return fmt.Errorf("%w: download interrupted", shared.ErrAborted)
	}
	return nil
}

// resolveAll resolves links into a fresh queue. Links that fail to resolve are reported and skipped.
func (r *Runner) resolveAll(ctx context.Context, links []string, history *repositories.HistoryRepository, skipDownloaded bool) (*tasks.Queue, error) {
	queue := tasks.NewQueue()
	resolvers := r.resolverList(ctx)

	for _, link := range links {
		entry, err := services.Resolve(ctx, link, resolvers...)
		if err != nil {
			r.logger.Error("could not resolve link", "link", link, "err", err)
			r.writePlain("✗ %s: %v\n", link, err)
			continue
		}

		if skipDownloaded && history != nil {
			var skipped int
			if entry, skipped = r.withoutDownloaded(ctx, history, *entry); skipped > 0 {
				r.logger.Info("skipping downloaded tracks", "link", link, "count", skipped)
			}
			if entry == nil {
				continue
			}
		}

		if _, err := queue.Add(*entry); err != nil {
			return nil, err
		}
		r.logger.Info("queued", "title", entry.Title(), "type", entry.ItemType(), "tracks", entry.Len())
	}

	if queue.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing to download", shared.ErrInvalidInput)
	}
	return queue, nil
}

// withoutDownloaded drops tracks that already have a done download on record. It returns
// nil when nothing is left.
func (r *Runner) withoutDownloaded(ctx context.Context, history *repositories.HistoryRepository, entry models.Entry) (*models.Entry, int) {
	seen := func(t models.Track) bool {
		ok, err := history.Downloaded(ctx, t.Platform, t.SourceID)
		if err != nil {
			r.logger.Debug("history lookup failed", "title", t.Title, "err", err)
		}
		return ok
	}

	if entry.Track != nil {
		if seen(*entry.Track) {
			return nil, 1
		}
		return &entry, 0
	}
	if entry.Collection == nil {
		return &entry, 0
	}

	kept := entry.Collection.Tracks[:0:0]
	for _, t := range entry.Collection.Tracks {
		if !seen(t) {
			kept = append(kept, t)
		}
	}
	skipped := len(entry.Collection.Tracks) - len(kept)
	if len(kept) == 0 {
		return nil, skipped
	}
	c := *entry.Collection
	c.Tracks = kept
	return &models.Entry{Collection: &c}, skipped
}

// abortOnSignal aborts the run on SIGINT or SIGTERM until the returned stop func is called.
func (r *Runner) abortOnSignal(ctrl *tasks.Controller, aborted *atomic.Bool) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				if aborted.Swap(true) {
					continue
				}
				dropped := ctrl.Abort()
				ctrl.Resume()
				r.logger.Warn("interrupted, aborting run", "dropped", dropped)
			case <-quit:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(quit)
	}
}

// follow prints finished tracks and run events until the run is done.
func (r *Runner) follow(ctrl *tasks.Controller, updates <-chan tasks.ProgressUpdate, aborted *atomic.Bool) {
	show := func(u tasks.ProgressUpdate) {
		if u.Phase == tasks.RunAborted {
			aborted.Store(true)
		}
		if u.Phase == tasks.ItemChanged && !u.Status.IsTerminal() {
			r.logger.Debug(u.Message)
			return
		}
		r.writePlain("%s\n", u.Message)
	}

	done := ctrl.Done()
	for {
		select {
		case u := <-updates:
			show(u)
		case <-done:
			for {
				select {
				case u := <-updates:
					show(u)
				default:
					return
				}
			}
		}
	}
}

// monitor runs the TUI until the user quits after the run finishes.
func (r *Runner) monitor(ctx context.Context, ctrl *tasks.Controller, updates <-chan tasks.ProgressUpdate, aborted *atomic.Bool, links []string) error {
	title := "tapedeck"
	if len(links) == 1 {
		if entries := ctrl.Snapshot(); len(entries) == 1 {
			title = entries[0].Title()
		}
	}

	model := ui.NewModel(title, ctrl, updates)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		ctrl.Abort()
		ctrl.Resume()
		ctrl.Wait(context.Background())
		return fmt.Errorf("error running TUI: %w", err)
	}
	if model.Aborted() {
		aborted.Store(true)
	}
	return nil
}

// writePlaylists writes an m3u8 index into every collection folder that received files.
func (r *Runner) writePlaylists(root string, entries []models.Entry) {
	for _, e := range entries {
		if p := tasks.ProgressOf([]models.Entry{e}); e.Collection == nil || p.Done == p.Failed {
			continue
		}
		folder := filepath.Join(root, shared.SanitizeFileName(e.Collection.Title))
		path, err := formatter.WritePlaylistIndex(folder)
		if err != nil {
			r.logger.Warn("could not write playlist index", "folder", folder, "err", err)
			continue
		}
		r.logger.Info("playlist index written", "path", path)
	}
}

// writeManifest writes CSV when path ends in .csv and JSON otherwise.
func (r *Runner) writeManifest(path string, entries []models.Entry) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return formatter.WriteRunManifest(entries, path)
	}
	data, err := formatter.ExportToCSV(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func (r *Runner) writeSummary(entries []models.Entry, quiet bool) {
	p := tasks.ProgressOf(entries)
	r.writePlainHeader("Summary")
	r.writePlain("Done: %d/%d\n", p.Done-p.Failed, p.Total)
	r.writePlain("Failed: %d\n", p.Failed)
	if waiting := p.Total - p.Done; waiting > 0 {
		r.writePlain("Not started: %d\n", waiting)
	}
	if quiet || p.Failed == 0 {
		return
	}

	r.writePlainln("Failures:")
	for _, item := range formatter.NewManifest(entries).Items {
		if item.Status == models.StatusError {
			r.writePlain("  ✗ %s: %s\n", item.Title, item.Error)
		}
	}
}
