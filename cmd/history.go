package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// History lists, summarizes or prunes the download history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	repo := repositories.NewHistoryRepository(db)

	if days := cmd.Int("prune-days"); days > 0 {
		cutoff := time.Now().AddDate(0, 0, -int(days))
		n, err := repo.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		r.logger.Info("history pruned", "before", cutoff.Format(time.DateOnly), "removed", n)
		return r.writePlain("✓ Removed %d downloads older than %d days\n", n, days)
	}

	if cmd.Bool("stats") {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(stats, true)
		}
		r.writeStats(stats)
		return nil
	}

	filter := repositories.HistoryFilter{
		RunID: cmd.String("run"),
		Limit: int(cmd.Int("limit")),
	}
	if s := cmd.String("status"); s != "" {
		status := models.Status(s)
		if !status.IsTerminal() {
			return fmt.Errorf("%w: status must be done or error, got %q", shared.ErrInvalidArgument, s)
		}
		filter.Status = status
	}

	downloads, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(downloads, true)
	}
	if len(downloads) == 0 {
		return r.writePlain("No downloads recorded\n")
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Finished", "Run", "Status", "Artists", "Title", "Output / Error"})
	for _, d := range downloads {
		detail := d.OutputPath
		if d.Status == models.StatusError {
			detail = d.Error
		}
		t.AppendRow(table.Row{
			d.FinishedAt.Local().Format(time.DateTime),
			shared.ShortID(d.RunID),
			d.Status,
			d.Artists,
			d.Title,
			detail,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(downloads)})
	t.Render()
	return nil
}

func (r *Runner) writeStats(s repositories.HistoryStats) {
	r.writePlainHeader("Download history")
	r.writePlain("Runs:      %d\n", s.Runs)
	r.writePlain("Downloads: %d\n", s.Downloads)
	r.writePlain("Done:      %d\n", s.Done)
	r.writePlain("Failed:    %d\n", s.Failed)
	if !s.LastRun.IsZero() {
		r.writePlain("Last run:  %s\n", s.LastRun.Local().Format(time.DateTime))
	}
}
