package engine

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/previewlab/previewd/database"
	"github.com/previewlab/previewd/internal/build"
	"github.com/previewlab/previewd/storage"
)

// previewResponse is the uniform conversion outcome returned to callers.
// Exactly one of File or Error is set; failure is data, never a thrown error.
type previewResponse struct {
	ImageURL string    `json:"imageUrl"`
	File     *fileInfo `json:"file"`
	Error    string    `json:"error,omitempty"`
	Handle   string    `json:"handle,omitempty"`
}

type fileInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// ConvertDocument converts the first page of an uploaded document to a PNG preview
// @Summary Convert a document to a preview image
// @Description Rasterizes page one of the uploaded document to a PNG and returns a handle URL plus the named artifact
// @Tags Previews
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document to convert"
// @Success 200 {object} previewResponse "Conversion result"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} previewResponse "Conversion failed"
// @Router /preview [post]
func (serverHandler *ServerHandler) ConvertDocument(context echo.Context) error {
	file, fileHeader, err := context.Request().FormFile("file")
	if err != nil {
		Logger.Warn("Upload without file part", "error", err)
		return context.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "missing file upload",
		})
	}
	defer file.Close()

	if serverHandler.ServerConfig.MaxUploadBytes > 0 && fileHeader.Size > serverHandler.ServerConfig.MaxUploadBytes {
		return context.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "upload exceeds size limit",
		})
	}

	data, err := io.ReadAll(file)
	if err != nil {
		Logger.Error("Failed to read upload", "name", fileHeader.Filename, "error", err)
		return context.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "unable to read upload",
		})
	}

	result := serverHandler.convertAndRecord(context.Request().Context(), fileHeader.Filename, data)

	response := previewResponse{
		ImageURL: result.ImageURL,
		Error:    result.Error,
		Handle:   result.Handle,
	}
	if result.File != nil {
		response.File = &fileInfo{Name: result.File.Name, Size: result.File.Size()}
	}

	if result.Error != "" {
		return context.JSON(http.StatusUnprocessableEntity, response)
	}
	return context.JSON(http.StatusOK, response)
}

// ViewPreview streams the preview bytes behind a handle
// @Summary View a preview image
// @Description Dereferences a preview handle and streams the PNG bytes
// @Tags Previews
// @Produce png
// @Param id path string true "Preview handle"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} map[string]interface{} "Handle released or expired"
// @Router /preview/view/{id} [get]
func (serverHandler *ServerHandler) ViewPreview(context echo.Context) error {
	id := context.Param("id")

	data, err := serverHandler.Store.Get(context.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return context.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "preview not found",
		})
	}
	if err != nil {
		Logger.Error("Failed to fetch preview bytes", "handle", id, "error", err)
		return context.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "unable to load preview",
		})
	}

	return context.Blob(http.StatusOK, "image/png", data)
}

// ReleasePreview frees a preview handle
// @Summary Release a preview handle
// @Description Frees the bytes behind a handle once the preview is no longer displayed
// @Tags Previews
// @Produce json
// @Param id path string true "Preview handle"
// @Success 200 {string} string "Preview Released"
// @Failure 404 {object} map[string]interface{} "Handle not found"
// @Router /preview/{id} [delete]
func (serverHandler *ServerHandler) ReleasePreview(context echo.Context) error {
	id := context.Param("id")

	err := serverHandler.releasePreview(context.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return context.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "preview not found",
		})
	}
	if err != nil {
		Logger.Error("Failed to release preview", "handle", id, "error", err)
		return context.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "unable to release preview",
		})
	}

	return context.JSON(http.StatusOK, "Preview Released")
}

// GetLatestPreviews returns the most recent conversion records
// @Summary Get latest previews
// @Description Retrieve the newest conversion records
// @Tags Previews
// @Produce json
// @Param limit query int false "Number of records to return (default: 20)"
// @Success 200 {array} database.Preview "List of previews"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /previews/latest [get]
func (serverHandler *ServerHandler) GetLatestPreviews(context echo.Context) error {
	limit := 20
	if limitStr := context.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	previews, err := serverHandler.DB.GetNewestPreviews(limit)
	if err != nil {
		Logger.Error("Failed to get latest previews", "error", err)
		return context.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve previews",
		})
	}

	if previews == nil {
		previews = []database.Preview{}
	}
	return context.JSON(http.StatusOK, previews)
}

// GetAboutInfo returns service and build information
// @Summary About
// @Description Service name, version, and configured backends
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Service info"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(context echo.Context) error {
	engineName := serverHandler.Rasterizer.EngineName()
	if engineName == "" {
		engineName = "not loaded"
	}
	return context.JSON(http.StatusOK, map[string]interface{}{
		"name":         "previewd",
		"version":      build.Version,
		"commit":       build.Commit,
		"database":     serverHandler.ServerConfig.DatabaseType,
		"store":        serverHandler.ServerConfig.StoreBackend,
		"renderEngine": engineName,
	})
}

// GetJob retrieves a job by ID
// @Summary Get job by ID
// @Description Retrieve details of a specific job by its ID
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} database.Job "Job details"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	jobIDStr := c.Param("id")

	jobID, err := ulid.Parse(jobIDStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		Logger.Error("Failed to get job", "jobID", jobIDStr, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not found",
		})
	}

	return c.JSON(http.StatusOK, job)
}

// GetRecentJobs retrieves recent jobs with pagination
// @Summary Get recent jobs
// @Description Retrieve a list of recent jobs with pagination
// @Tags Jobs
// @Produce json
// @Param limit query int false "Number of jobs to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} database.Job "List of jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	jobs, err := serverHandler.DB.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetActiveJobs retrieves all currently running or pending jobs
// @Summary Get active jobs
// @Description Retrieve all jobs that are currently running or pending
// @Tags Jobs
// @Produce json
// @Success 200 {array} database.Job "List of active jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs()
	if err != nil {
		Logger.Error("Failed to get active jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve active jobs",
		})
	}

	if jobs == nil {
		jobs = []database.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}
