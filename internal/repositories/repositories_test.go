package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func download(runID, title string, status models.Status, finished time.Time) models.Download {
	d := models.Download{
		RunID:      runID,
		Title:      title,
		Artists:    "Artist",
		Platform:   models.PlatformYouTube,
		SourceID:   "src-" + title,
		Status:     status,
		FinishedAt: finished,
	}
	if status == models.StatusError {
		d.Error = "extraction failed"
	} else {
		d.OutputPath = "/music/" + title + ".mp3"
	}
	return d
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("StartRun and FinishRun", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		started := time.Now().Add(-time.Minute)
		run := models.Run{ID: "run-1", StartedAt: started, Total: 3}

		if err := repo.StartRun(ctx, run); err != nil {
			t.Fatalf("failed to start run: %v", err)
		}

		got, err := repo.Run(ctx, "run-1")
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if !got.FinishedAt.IsZero() || got.Total != 3 {
			t.Errorf("unexpected unfinished run: %+v", got)
		}

		run.FinishedAt = time.Now()
		run.Done, run.Failed, run.Aborted = 2, 1, true
		if err := repo.FinishRun(ctx, run); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		got, _ = repo.Run(ctx, "run-1")
		if got.Done != 2 || got.Failed != 1 || !got.Aborted || got.FinishedAt.IsZero() {
			t.Errorf("unexpected finished run: %+v", got)
		}
		if got.StartedAt.Sub(started).Abs() > time.Millisecond {
			t.Errorf("started_at %v, want %v", got.StartedAt, started)
		}
	})

	t.Run("FinishRun without StartRun inserts", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		run := models.Run{ID: "run-2", StartedAt: time.Now(), FinishedAt: time.Now(), Total: 1, Done: 1}
		if err := repo.FinishRun(ctx, run); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Run(ctx, "run-2"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Run not found", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if _, err := repo.Run(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RecordDownload and List", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		now := time.Now()
		records := []models.Download{
			download("r1", "old", models.StatusDone, now.Add(-2*time.Hour)),
			download("r1", "broken", models.StatusError, now.Add(-time.Hour)),
			download("r2", "new", models.StatusDone, now),
		}
		for _, d := range records {
			if err := repo.RecordDownload(ctx, d); err != nil {
				t.Fatalf("failed to record %s: %v", d.Title, err)
			}
		}

		all, err := repo.List(ctx, HistoryFilter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].Title != "new" || all[2].Title != "old" {
			t.Fatalf("expected newest first, got %v", titles(all))
		}
		if all[0].ID == "" || all[0].Platform != models.PlatformYouTube {
			t.Errorf("unexpected row %+v", all[0])
		}

		failed, _ := repo.List(ctx, HistoryFilter{Status: models.StatusError})
		if len(failed) != 1 || failed[0].Error != "extraction failed" {
			t.Errorf("status filter: got %v", titles(failed))
		}

		limited, _ := repo.List(ctx, HistoryFilter{Limit: 2})
		if len(limited) != 2 {
			t.Errorf("limit: got %d rows", len(limited))
		}

		byRun, _ := repo.List(ctx, HistoryFilter{RunID: "r1"})
		if len(byRun) != 2 {
			t.Errorf("run filter: got %v", titles(byRun))
		}
	})

	t.Run("RecordDownload rejects non-terminal and untitled rows", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if err := repo.RecordDownload(ctx, download("r", "x", models.StatusTagging, time.Now())); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.RecordDownload(ctx, download("r", "", models.StatusDone, time.Now())); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Downloaded", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		repo.RecordDownload(ctx, download("r", "song", models.StatusDone, time.Now()))
		repo.RecordDownload(ctx, download("r", "bad", models.StatusError, time.Now()))

		if ok, err := repo.Downloaded(ctx, models.PlatformYouTube, "src-song"); err != nil || !ok {
			t.Errorf("got %v, %v", ok, err)
		}
		if ok, _ := repo.Downloaded(ctx, models.PlatformYouTube, "src-bad"); ok {
			t.Error("failed downloads should not count")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		empty, err := repo.Stats(ctx)
		if err != nil || empty != (HistoryStats{}) {
			t.Fatalf("got %+v, %v", empty, err)
		}

		latest := time.Now().UTC()
		repo.StartRun(ctx, models.Run{ID: "a", StartedAt: latest.Add(-time.Hour)})
		repo.StartRun(ctx, models.Run{ID: "b", StartedAt: latest})
		repo.RecordDownload(ctx, download("a", "one", models.StatusDone, time.Now()))
		repo.RecordDownload(ctx, download("b", "two", models.StatusDone, time.Now()))
		repo.RecordDownload(ctx, download("b", "three", models.StatusError, time.Now()))

		s, err := repo.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if s.Runs != 2 || s.Downloads != 3 || s.Done != 2 || s.Failed != 1 {
			t.Errorf("got %+v", s)
		}
		if s.LastRun.Sub(latest).Abs() > time.Second {
			t.Errorf("last run %v, want %v", s.LastRun, latest)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		now := time.Now()
		cutoff := now.Add(-24 * time.Hour)

		repo.StartRun(ctx, models.Run{ID: "old", StartedAt: now.Add(-72 * time.Hour)})
		repo.StartRun(ctx, models.Run{ID: "new", StartedAt: now})
		repo.RecordDownload(ctx, download("old", "a", models.StatusDone, now.Add(-72*time.Hour)))
		repo.RecordDownload(ctx, download("old", "b", models.StatusError, now.Add(-48*time.Hour)))
		repo.RecordDownload(ctx, download("new", "c", models.StatusDone, now))

		n, err := repo.Prune(ctx, cutoff)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("pruned %d, want 2", n)
		}
		left, _ := repo.List(ctx, HistoryFilter{})
		if len(left) != 1 || left[0].Title != "c" {
			t.Errorf("got %v", titles(left))
		}
		if _, err := repo.Run(ctx, "old"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("empty old run should be pruned, got %v", err)
		}
		if _, err := repo.Run(ctx, "new"); err != nil {
			t.Errorf("new run pruned: %v", err)
		}
	})

	t.Run("DeleteRun", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		repo.StartRun(ctx, models.Run{ID: "gone", StartedAt: time.Now()})
		repo.RecordDownload(ctx, download("gone", "a", models.StatusDone, time.Now()))

		if err := repo.DeleteRun(ctx, "gone"); err != nil {
			t.Fatal(err)
		}
		if rows, _ := repo.List(ctx, HistoryFilter{RunID: "gone"}); len(rows) != 0 {
			t.Errorf("downloads left: %v", titles(rows))
		}
		if err := repo.DeleteRun(ctx, "gone"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func titles(ds []models.Download) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Title
	}
	return out
}
