package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/previewlab/previewd/database"
)

// InitializeSchedules starts all the cron jobs (currently just the purge job)
func (serverHandler *ServerHandler) InitializeSchedules() {
	interval := serverHandler.ServerConfig.PurgeIntervalMinutes
	if interval <= 0 {
		interval = 10
	}

	c := cron.New()
	var purgeJob cron.Job
	purgeJob = cron.FuncJob(func() { serverHandler.purgeJobFunc() })
	purgeJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(purgeJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", interval), purgeJob)
	Logger.Info("Adding purge job scheduler", "interval_minutes", interval)
	c.Start()
}

// purgeJobFunc reclaims expired handles and trims old records, tracked
// through the jobs table
func (serverHandler *ServerHandler) purgeJobFunc() {
	// Add panic recovery to prevent entire application crash
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in purge job", "panic", r)
		}
	}()

	job, err := serverHandler.DB.CreateJob(database.JobTypePurge, "Reclaiming expired preview handles")
	if err != nil {
		Logger.Error("Failed to create purge job record, running untracked", "error", err)
	}
	jobID := trackedJobID(job)

	if job != nil {
		serverHandler.DB.UpdateJobStatus(jobID, database.JobStatusRunning, "Purging expired handles")
	}

	ctx := context.Background()

	purged, err := serverHandler.Store.PurgeExpired(ctx)
	if err != nil {
		Logger.Error("Handle purge failed", "error", err)
		if job != nil {
			serverHandler.DB.UpdateJobError(jobID, fmt.Sprintf("Handle purge failed: %v", err))
		}
		return
	}
	Logger.Info("Purged expired preview handles", "count", purged)

	if job != nil {
		serverHandler.DB.UpdateJobProgress(jobID, 50, "Trimming old records")
	}

	previewRetention := time.Duration(serverHandler.ServerConfig.PreviewRetentionDays) * 24 * time.Hour
	trimmedPreviews, err := serverHandler.DB.DeleteOldPreviews(previewRetention)
	if err != nil {
		Logger.Error("Failed to trim old preview records", "error", err)
	}

	jobRetention := time.Duration(serverHandler.ServerConfig.JobRetentionHours) * time.Hour
	trimmedJobs, err := serverHandler.DB.DeleteOldJobs(jobRetention)
	if err != nil {
		Logger.Error("Failed to trim old job records", "error", err)
	}

	if job != nil {
		result := fmt.Sprintf(`{"handlesPurged": %d, "previewsTrimmed": %d, "jobsTrimmed": %d}`, purged, trimmedPreviews, trimmedJobs)
		if err := serverHandler.DB.CompleteJob(jobID, result); err != nil {
			Logger.Error("Failed to mark purge job as complete", "error", err)
		}
	}

	Logger.Info("Purge job completed", "handlesPurged", purged, "previewsTrimmed", trimmedPreviews, "jobsTrimmed", trimmedJobs)
}
