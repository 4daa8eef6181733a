package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunPreview represents the previews table for Bun ORM
type BunPreview struct {
	bun.BaseModel `bun:"table:previews,alias:p"`

	ID         int       `bun:"id,pk,autoincrement"`
	ULID       string    `bun:"ulid,notnull,unique"` // Stored as string in DB
	Name       string    `bun:"name,notnull"`
	OutputName string    `bun:"output_name,notnull"`
	Handle     string    `bun:"handle,nullzero"`
	ImageURL   string    `bun:"image_url,nullzero"`
	Width      int       `bun:"width,nullzero"`
	Height     int       `bun:"height,nullzero"`
	SizeBytes  int       `bun:"size_bytes,nullzero"`
	Status     string    `bun:"status,notnull"`
	Error      string    `bun:"error,nullzero"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ToPreview converts BunPreview to Preview
func (bp *BunPreview) ToPreview() (*Preview, error) {
	parsedULID, err := ulid.Parse(bp.ULID)
	if err != nil {
		return nil, err
	}

	return &Preview{
		ID:         bp.ID,
		ULID:       parsedULID,
		Name:       bp.Name,
		OutputName: bp.OutputName,
		Handle:     bp.Handle,
		ImageURL:   bp.ImageURL,
		Width:      bp.Width,
		Height:     bp.Height,
		SizeBytes:  bp.SizeBytes,
		Status:     bp.Status,
		Error:      bp.Error,
		CreatedAt:  bp.CreatedAt,
	}, nil
}

// FromPreview converts Preview to BunPreview
func FromPreview(preview *Preview) *BunPreview {
	return &BunPreview{
		ID:         preview.ID,
		ULID:       preview.ULID.String(),
		Name:       preview.Name,
		OutputName: preview.OutputName,
		Handle:     preview.Handle,
		ImageURL:   preview.ImageURL,
		Width:      preview.Width,
		Height:     preview.Height,
		SizeBytes:  preview.SizeBytes,
		Status:     preview.Status,
		Error:      preview.Error,
		CreatedAt:  preview.CreatedAt,
	}
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"`
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,notnull"`
	Progress    int        `bun:"progress,notnull,default:0"`
	CurrentStep string     `bun:"current_step,nullzero"`
	Message     string     `bun:"message,nullzero"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
