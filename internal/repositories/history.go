package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// HistoryRepository stores runs and every track that reached a terminal status.
//
// It satisfies the recorder the download controller reports to.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// HistoryFilter narrows [HistoryRepository.List]. Zero values match everything.
type HistoryFilter struct {
	Status models.Status
	RunID  string
	Limit  int
}

// HistoryStats aggregates the stored history.
type HistoryStats struct {
	Runs      int
	Downloads int
	Done      int
	Failed    int
	LastRun   time.Time
}

// StartRun inserts run with no finish time.
func (r *HistoryRepository) StartRun(ctx context.Context, run models.Run) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	query := `INSERT INTO runs (id, started_at, total) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.StartedAt.UTC(), run.Total); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of run, inserting it when StartRun was never recorded.
func (r *HistoryRepository) FinishRun(ctx context.Context, run models.Run) error {
	query := `
		INSERT INTO runs (id, started_at, finished_at, total, done, failed, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			done = excluded.done,
			failed = excluded.failed,
			aborted = excluded.aborted
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Total,
		run.Done,
		run.Failed,
		boolToInt(run.Aborted),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordDownload inserts d. Only terminal statuses are accepted.
func (r *HistoryRepository) RecordDownload(ctx context.Context, d models.Download) error {
	if !d.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot record %s download", shared.ErrInvalidInput, d.Status)
	}
	if d.Title == "" {
		return fmt.Errorf("%w: download title is required", shared.ErrInvalidInput)
	}
	if d.ID == "" {
		d.ID = shared.GenerateID()
	}
	if d.FinishedAt.IsZero() {
		d.FinishedAt = time.Now()
	}

	query := `
		INSERT INTO downloads (id, run_id, title, artists, album, collection, platform, source_id, status, output_path, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.RunID,
		d.Title,
		d.Artists,
		d.Album,
		d.Collection,
		string(d.Platform),
		d.SourceID,
		string(d.Status),
		d.OutputPath,
		d.Error,
		d.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// Run retrieves a run summary by ID.
func (r *HistoryRepository) Run(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, started_at, finished_at, total, done, failed, aborted
		FROM runs
		WHERE id = ?
	`
	var (
		run      models.Run
		finished sql.NullTime
		aborted  int
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.StartedAt, &finished, &run.Total, &run.Done, &run.Failed, &aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	run.Aborted = aborted != 0
	return &run, nil
}

// List retrieves downloads matching filter, newest first.
func (r *HistoryRepository) List(ctx context.Context, filter HistoryFilter) ([]models.Download, error) {
	query := `
		SELECT id, run_id, title, artists, album, collection, platform, source_id, status, output_path, error, finished_at
		FROM downloads
		WHERE 1 = 1
	`
	args := []any{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	query += " ORDER BY finished_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var out []models.Download
	for rows.Next() {
		var (
			d                models.Download
			platform, status string
		)
		err := rows.Scan(&d.ID, &d.RunID, &d.Title, &d.Artists, &d.Album, &d.Collection, &platform, &d.SourceID, &status, &d.OutputPath, &d.Error, &d.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		d.Platform = models.Platform(platform)
		d.Status = models.Status(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Downloaded reports whether the source has a done download on record.
func (r *HistoryRepository) Downloaded(ctx context.Context, platform models.Platform, sourceID string) (bool, error) {
	query := `SELECT COUNT(*) FROM downloads WHERE platform = ? AND source_id = ? AND status = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, query, string(platform), sourceID, string(models.StatusDone)).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n > 0, nil
}

// Stats aggregates runs and downloads.
func (r *HistoryRepository) Stats(ctx context.Context) (HistoryStats, error) {
	var s HistoryStats

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM downloads
	`
	err := r.db.QueryRowContext(ctx, query, string(models.StatusDone), string(models.StatusError)).Scan(&s.Downloads, &s.Done, &s.Failed)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate downloads: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&s.Runs); err != nil {
		return s, fmt.Errorf("failed to count runs: %w", err)
	}
	if s.Runs == 0 {
		return s, nil
	}

	if err := r.db.QueryRowContext(ctx, `SELECT started_at FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&s.LastRun); err != nil {
		return s, fmt.Errorf("failed to get last run: %w", err)
	}
	return s, nil
}

// Prune deletes downloads that finished before the cutoff and runs left without downloads
// that started before it. It returns the number of downloads removed.
//
// Times are stored in UTC so SQLite compares them as ordered strings.
func (r *HistoryRepository) Prune(ctx context.Context, before time.Time) (int, error) {
	var removed int64
	err := inTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE finished_at < ?`, before.UTC())
		if err != nil {
			return fmt.Errorf("failed to prune downloads: %w", err)
		}
		if removed, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}

		query := `
			DELETE FROM runs
			WHERE started_at < ?
			AND id NOT IN (SELECT DISTINCT run_id FROM downloads)
		`
		if _, err := tx.ExecContext(ctx, query, before.UTC()); err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		return nil
	})
	return int(removed), err
}

// DeleteRun removes a run and its downloads.
func (r *HistoryRepository) DeleteRun(ctx context.Context, id string) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete downloads: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		return expectRows(result, fmt.Errorf("%w: run %s", shared.ErrNotFound, id))
	})
}
