package database

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/previewlab/previewd/config"
)

func init() {
	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.Logger == nil {
		config.Logger = Logger
	}
}

// setupTestDatabase creates an isolated sqlite database for one test.
func setupTestDatabase(t *testing.T) *BunDB {
	t.Helper()
	repo := NewRepository(config.ServerConfig{
		DatabaseType:   "sqlite",
		DatabaseDbname: filepath.Join(t.TempDir(), "previewd_test.db"),
	})
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})
	return repo
}

func newTestPreview(t *testing.T, name string, createdAt time.Time) *Preview {
	t.Helper()
	id, err := CalculateUUID(createdAt)
	if err != nil {
		t.Fatalf("CalculateUUID: %v", err)
	}
	return &Preview{
		ULID:       id,
		Name:       name,
		OutputName: name[:len(name)-len(filepath.Ext(name))] + ".png",
		Handle:     "handle-" + id.String(),
		ImageURL:   "/preview/view/handle-" + id.String(),
		Width:      600,
		Height:     300,
		SizeBytes:  1234,
		Status:     PreviewStatusOK,
		CreatedAt:  createdAt,
	}
}

func TestPreviewLifecycle(t *testing.T) {
	repo := setupTestDatabase(t)

	preview := newTestPreview(t, "invoice.pdf", time.Now())
	if err := repo.SavePreview(preview); err != nil {
		t.Fatalf("SavePreview: %v", err)
	}
	if preview.ID == 0 {
		t.Error("SavePreview should backfill the auto-generated ID")
	}

	fetched, err := repo.GetPreviewByULID(preview.ULID.String())
	if err != nil {
		t.Fatalf("GetPreviewByULID: %v", err)
	}
	if fetched.Name != "invoice.pdf" || fetched.OutputName != "invoice.png" {
		t.Errorf("Fetched wrong record: %+v", fetched)
	}
	if fetched.Width != 600 || fetched.Height != 300 {
		t.Errorf("Dimensions not persisted: %dx%d", fetched.Width, fetched.Height)
	}

	byHandle, err := repo.GetPreviewByHandle(preview.Handle)
	if err != nil {
		t.Fatalf("GetPreviewByHandle: %v", err)
	}
	if byHandle == nil || byHandle.ULID != preview.ULID {
		t.Errorf("Handle lookup returned %+v", byHandle)
	}

	// Saving a fresh record with the same ULID updates rather than duplicates
	update := *preview
	update.ID = 0
	update.Status = PreviewStatusFailed
	update.Error = "engine crashed"
	if err := repo.SavePreview(&update); err != nil {
		t.Fatalf("SavePreview upsert: %v", err)
	}
	fetched, err = repo.GetPreviewByULID(preview.ULID.String())
	if err != nil {
		t.Fatalf("GetPreviewByULID after upsert: %v", err)
	}
	if fetched.Status != PreviewStatusFailed || fetched.Error != "engine crashed" {
		t.Errorf("Upsert did not update the record: %+v", fetched)
	}

	if err := repo.DeletePreview(preview.ULID.String()); err != nil {
		t.Fatalf("DeletePreview: %v", err)
	}
	if _, err := repo.GetPreviewByULID(preview.ULID.String()); err == nil {
		t.Error("Expected an error fetching a deleted preview")
	}
}

func TestMarkPreviewReleased(t *testing.T) {
	repo := setupTestDatabase(t)

	preview := newTestPreview(t, "report.pdf", time.Now())
	if err := repo.SavePreview(preview); err != nil {
		t.Fatalf("SavePreview: %v", err)
	}

	if err := repo.MarkPreviewReleased(preview.Handle); err != nil {
		t.Fatalf("MarkPreviewReleased: %v", err)
	}

	fetched, err := repo.GetPreviewByULID(preview.ULID.String())
	if err != nil {
		t.Fatalf("GetPreviewByULID: %v", err)
	}
	if fetched.Status != PreviewStatusReleased {
		t.Errorf("Expected released status, got %s", fetched.Status)
	}
	if fetched.Handle != "" || fetched.ImageURL != "" {
		t.Errorf("Released preview must drop its handle and URL: %+v", fetched)
	}

	byHandle, err := repo.GetPreviewByHandle(preview.Handle)
	if err != nil {
		t.Fatalf("GetPreviewByHandle: %v", err)
	}
	if byHandle != nil {
		t.Errorf("Released handle should no longer resolve, got %+v", byHandle)
	}
}

func TestGetNewestPreviews(t *testing.T) {
	repo := setupTestDatabase(t)

	base := time.Now().Add(-time.Hour)
	names := []string{"a.pdf", "b.pdf", "c.pdf"}
	for i, name := range names {
		preview := newTestPreview(t, name, base.Add(time.Duration(i)*time.Minute))
		if err := repo.SavePreview(preview); err != nil {
			t.Fatalf("SavePreview %s: %v", name, err)
		}
	}

	newest, err := repo.GetNewestPreviews(2)
	if err != nil {
		t.Fatalf("GetNewestPreviews: %v", err)
	}
	if len(newest) != 2 {
		t.Fatalf("Expected 2 previews, got %d", len(newest))
	}
	if newest[0].Name != "c.pdf" || newest[1].Name != "b.pdf" {
		t.Errorf("Expected newest first, got %s then %s", newest[0].Name, newest[1].Name)
	}
}

func TestDeleteOldPreviews(t *testing.T) {
	repo := setupTestDatabase(t)

	old := newTestPreview(t, "ancient.pdf", time.Now().Add(-48*time.Hour))
	fresh := newTestPreview(t, "fresh.pdf", time.Now())
	for _, p := range []*Preview{old, fresh} {
		if err := repo.SavePreview(p); err != nil {
			t.Fatalf("SavePreview: %v", err)
		}
	}

	deleted, err := repo.DeleteOldPreviews(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldPreviews: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted preview, got %d", deleted)
	}
	if _, err := repo.GetPreviewByULID(fresh.ULID.String()); err != nil {
		t.Errorf("Fresh preview should survive: %v", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	repo := setupTestDatabase(t)

	job, err := repo.CreateJob(JobTypePurge, "Purging expired handles")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("New job should be pending, got %s", job.Status)
	}

	if err := repo.UpdateJobStatus(job.ID, JobStatusRunning, "Purge started"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if err := repo.UpdateJobProgress(job.ID, 50, "deleting old records"); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	running, err := repo.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if running.Status != JobStatusRunning || running.Progress != 50 {
		t.Errorf("Job not updated: %+v", running)
	}
	if running.StartedAt == nil {
		t.Error("Running job should carry a start time")
	}
	if running.CurrentStep != "deleting old records" {
		t.Errorf("Expected current step, got %q", running.CurrentStep)
	}

	active, err := repo.GetActiveJobs()
	if err != nil {
		t.Fatalf("GetActiveJobs: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Expected 1 active job, got %d", len(active))
	}

	if err := repo.CompleteJob(job.ID, `{"purgedHandles":3}`); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	completed, err := repo.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob after completion: %v", err)
	}
	if completed.Status != JobStatusCompleted || completed.Progress != 100 {
		t.Errorf("Job not completed: %+v", completed)
	}
	if completed.CompletedAt == nil {
		t.Error("Completed job should carry a completion time")
	}
	if completed.Result != `{"purgedHandles":3}` {
		t.Errorf("Result not persisted: %q", completed.Result)
	}

	active, err = repo.GetActiveJobs()
	if err != nil {
		t.Fatalf("GetActiveJobs after completion: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active jobs, got %d", len(active))
	}
}

func TestJobError(t *testing.T) {
	repo := setupTestDatabase(t)

	job, err := repo.CreateJob(JobTypeConvert, "Converting upload")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.UpdateJobError(job.ID, "document could not be loaded"); err != nil {
		t.Fatalf("UpdateJobError: %v", err)
	}

	failed, err := repo.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if failed.Status != JobStatusFailed {
		t.Errorf("Expected failed status, got %s", failed.Status)
	}
	if failed.Error != "document could not be loaded" {
		t.Errorf("Error not persisted: %q", failed.Error)
	}
	if failed.CompletedAt == nil {
		t.Error("Failed job should carry a completion time")
	}
}

func TestGetRecentJobsPagination(t *testing.T) {
	repo := setupTestDatabase(t)

	for i := 0; i < 5; i++ {
		if _, err := repo.CreateJob(JobTypePurge, "job"); err != nil {
			t.Fatalf("CreateJob %d: %v", i, err)
		}
		// CreateJob timestamps at millisecond ULID precision
		time.Sleep(2 * time.Millisecond)
	}

	page, err := repo.GetRecentJobs(2, 0)
	if err != nil {
		t.Fatalf("GetRecentJobs: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Expected page of 2, got %d", len(page))
	}

	rest, err := repo.GetRecentJobs(10, 2)
	if err != nil {
		t.Fatalf("GetRecentJobs offset: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("Expected 3 remaining jobs, got %d", len(rest))
	}
}

func TestDeleteOldJobs(t *testing.T) {
	repo := setupTestDatabase(t)

	job, err := repo.CreateJob(JobTypePurge, "done long ago")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.CompleteJob(job.ID, ""); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	activeJob, err := repo.CreateJob(JobTypePurge, "still pending")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Nothing is old enough yet
	deleted, err := repo.DeleteOldJobs(time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldJobs: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected no deletions, got %d", deleted)
	}

	// With a zero-width window the completed job goes, the pending one stays
	time.Sleep(5 * time.Millisecond)
	deleted, err = repo.DeleteOldJobs(time.Millisecond)
	if err != nil {
		t.Fatalf("DeleteOldJobs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deletion, got %d", deleted)
	}
	if _, err := repo.GetJob(activeJob.ID); err != nil {
		t.Errorf("Pending job should survive retention: %v", err)
	}
}

func TestCalculateUUIDOrdering(t *testing.T) {
	earlier, err := CalculateUUID(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CalculateUUID: %v", err)
	}
	later, err := CalculateUUID(time.Now())
	if err != nil {
		t.Fatalf("CalculateUUID: %v", err)
	}
	if earlier.Compare(later) >= 0 {
		t.Errorf("ULIDs should sort by time: %s >= %s", earlier, later)
	}
}
