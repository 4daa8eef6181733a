package database

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Preview status values
const (
	PreviewStatusOK       = "ok"
	PreviewStatusFailed   = "failed"
	PreviewStatusReleased = "released"
)

// Preview is the record of one conversion: what came in, what came out, and
// where the preview bytes can be dereferenced while the handle is alive.
type Preview struct {
	ID         int       `json:"-"`
	ULID       ulid.ULID `json:"id"`
	Name       string    `json:"name"`
	OutputName string    `json:"outputName"`
	Handle     string    `json:"handle,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	SizeBytes  int       `json:"sizeBytes,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Repository defines database operations
type Repository interface {
	Close() error

	SavePreview(preview *Preview) error
	GetPreviewByULID(ulid string) (*Preview, error)
	GetPreviewByHandle(handle string) (*Preview, error)
	GetNewestPreviews(limit int) ([]Preview, error)
	DeletePreview(ulid string) error
	DeleteOldPreviews(olderThan time.Duration) (int, error)
	MarkPreviewReleased(handle string) error

	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// CalculateUUID generates a ULID for the given time
func CalculateUUID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(time), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}
