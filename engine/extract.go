package engine

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ledongthuc/pdf"
)

// extractTextResponse mirrors the conversion result shape: text or error,
// never both.
type extractTextResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ExtractText extracts the plain text of an uploaded PDF
// @Summary Extract document text
// @Description Pulls the embedded plain text out of an uploaded PDF without rasterizing it
// @Tags Previews
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document to extract"
// @Success 200 {object} extractTextResponse "Extracted text"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} extractTextResponse "Extraction failed"
// @Router /extract [post]
func (serverHandler *ServerHandler) ExtractText(context echo.Context) error {
	file, fileHeader, err := context.Request().FormFile("file")
	if err != nil {
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

	fullText, err := pdfTextFromBytes(data)
	if err != nil {
		Logger.Info("Text extraction failed", "name", fileHeader.Filename, "error", err)
		return context.JSON(http.StatusUnprocessableEntity, extractTextResponse{Error: err.Error()})
	}

	return context.JSON(http.StatusOK, extractTextResponse{Text: fullText})
}

// pdfTextFromBytes pulls the embedded plain text out of a PDF buffer
func pdfTextFromBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty document buffer")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", err
	}

	fullText := buf.String()
	if fullText == "" {
		return "", errors.New("document has no embedded text")
	}
	return fullText, nil
}
