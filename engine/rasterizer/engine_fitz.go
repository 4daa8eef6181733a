package rasterizer

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// fitzEngine renders documents with go-fitz (MuPDF, requires CGo). Fallback
// backend when the PDFium worker pool cannot be started.
type fitzEngine struct {
}

func newFitzEngine() (*fitzEngine, error) {
	return &fitzEngine{}, nil
}

func (e *fitzEngine) Name() string {
	return "mupdf"
}

// Open parses a document from raw bytes
func (e *fitzEngine) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

// Close cleans up resources (no-op, documents are closed per-conversion)
func (e *fitzEngine) Close() error {
	return nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

// PageSize returns the native page size in points
func (d *fitzDocument) PageSize(index int) (float64, float64, error) {
	bound, err := d.doc.Bound(index)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get page bounds: %w", err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

// RenderPage rasterizes a page at the given zoom factor
func (d *fitzDocument) RenderPage(index int, scale float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(index, enginePointDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
