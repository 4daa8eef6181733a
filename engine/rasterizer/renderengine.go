package rasterizer

import (
	"image"
	"log/slog"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Engine is the rendering engine abstraction. An engine parses encoded
// documents and rasterizes individual pages. The process holds at most one
// engine instance, shared read-only by all conversions.
type Engine interface {
	// Open parses a document from raw bytes
	Open(data []byte) (Document, error)

	// Name identifies the backend, used for logging and the about endpoint
	Name() string

	// Close cleans up any resources used by the engine
	Close() error
}

// Document is an open document held by an engine. Owned by a single
// conversion call and closed when the call finishes.
type Document interface {
	// PageCount returns the number of pages in the document
	PageCount() int

	// PageSize returns the native size of a page in points (1/72 inch)
	PageSize(index int) (width, height float64, err error)

	// RenderPage rasterizes a page at the given zoom factor
	RenderPage(index int, scale float64) (image.Image, error)

	// Close releases the document
	Close() error
}
