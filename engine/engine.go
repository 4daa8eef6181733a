package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/previewlab/previewd/config"
	"github.com/previewlab/previewd/database"
	"github.com/previewlab/previewd/engine/rasterizer"
	"github.com/previewlab/previewd/storage"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Store        storage.Store
	Rasterizer   *rasterizer.Rasterizer
}

// convertAndRecord runs the rasterizer on an uploaded document and writes a
// preview record with the outcome. Recording failures are logged but never
// fail the conversion itself - the caller already has the artifact.
func (serverHandler *ServerHandler) convertAndRecord(ctx context.Context, name string, data []byte) rasterizer.ConversionResult {
	result := serverHandler.Rasterizer.ConvertFirstPage(ctx, rasterizer.SourceDocument{
		Name: name,
		Data: data,
	})

	now := time.Now()
	previewULID, err := database.CalculateUUID(now)
	if err != nil {
		Logger.Error("Cannot generate ULID for preview record", "name", name, "error", err)
		return result
	}

	preview := &database.Preview{
		ULID:      previewULID,
		Name:      name,
		CreatedAt: now,
	}
	if result.Error != "" {
		preview.OutputName = rasterizer.OutputName(name)
		preview.Status = database.PreviewStatusFailed
		preview.Error = result.Error
	} else {
		preview.OutputName = result.File.Name
		preview.Handle = result.Handle
		preview.ImageURL = result.ImageURL
		preview.Width = result.Width
		preview.Height = result.Height
		preview.SizeBytes = result.File.Size()
		preview.Status = database.PreviewStatusOK
	}

	if err := serverHandler.DB.SavePreview(preview); err != nil {
		Logger.Error("Failed to record preview, conversion result still returned", "name", name, "error", err)
	}

	return result
}

// releasePreview frees a handle and marks the record released
func (serverHandler *ServerHandler) releasePreview(ctx context.Context, handle string) error {
	if err := serverHandler.Store.Release(ctx, handle); err != nil {
		return err
	}
	if err := serverHandler.DB.MarkPreviewReleased(handle); err != nil {
		Logger.Error("Failed to mark preview released", "handle", handle, "error", err)
		// Handle is already gone from the store, which is what matters
	}
	return nil
}

// trackedJobID is a convenience for jobs that may run without tracking
func trackedJobID(job *database.Job) ulid.ULID {
	if job == nil {
		return ulid.ULID{}
	}
	return job.ID
}
