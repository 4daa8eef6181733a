package rasterizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
	"github.com/previewlab/previewd/storage"
)

// ViewportScale is the fixed zoom factor for rendered previews. Chosen to
// balance legibility against the memory and time cost of a high resolution
// raster; it is a policy constant, not derived from the input.
const ViewportScale = 3

// enginePointDPI converts page points to pixels at scale 1.
const enginePointDPI = 72

// Conversion failure taxonomy. Every failure is terminal for the current
// conversion call; none are retried internally.
var (
	ErrEnvironment       = errors.New("rendering is disabled in this process")
	ErrDocumentLoad      = errors.New("document could not be loaded")
	ErrPageNotFound      = errors.New("document has no first page")
	ErrSurfaceAllocation = errors.New("raster surface could not be allocated")
	ErrEncoding          = errors.New("raster surface could not be encoded")
)

// SourceDocument is the conversion input: raw document bytes plus the name
// the caller knows the document by. The buffer is owned by the call and
// never mutated.
type SourceDocument struct {
	Name string
	Data []byte
}

// NamedFile is the output artifact: the encoded preview bytes under their
// derived file name, ready for download or storage.
type NamedFile struct {
	Name string
	Data []byte
}

// Size returns the encoded size in bytes
func (f *NamedFile) Size() int {
	return len(f.Data)
}

// ConversionResult is a tagged outcome, not an exception: exactly one of
// File or Error is set. On success ImageURL dereferences the preview bytes
// through the handle store and Release must be called once the preview is
// no longer displayed, otherwise the handle lingers until the purge job
// expires it.
type ConversionResult struct {
	ImageURL string
	File     *NamedFile
	Error    string

	// Handle is the store key behind ImageURL. Empty on failure.
	Handle string
	// Width and Height are the viewport pixel dimensions. Zero on failure.
	Width  int
	Height int
	// Release frees the handle. Nil on failure.
	Release func()
}

// Config wires the rasterizer's dependencies. Loader and Store are
// constructor-injected so tests can substitute doubles.
type Config struct {
	Loader    LoaderFunc
	Store     storage.Store
	HandleTTL time.Duration
	URLPrefix string
	// Disabled marks a process that must not render (API-only replicas).
	// Conversions fail with ErrEnvironment before any engine load starts.
	Disabled bool
}

// Rasterizer converts the first page of a document into a PNG preview.
// Safe for concurrent use: conversions share only the memoized engine.
type Rasterizer struct {
	cell      *engineCell
	store     storage.Store
	handleTTL time.Duration
	urlPrefix string
	disabled  bool
}

// New creates a Rasterizer. The engine is not loaded until the first
// conversion needs it.
func New(cfg Config) *Rasterizer {
	loader := cfg.Loader
	if loader == nil {
		loader = DefaultLoader()
	}
	urlPrefix := cfg.URLPrefix
	if urlPrefix == "" {
		urlPrefix = "/preview/view/"
	}
	return &Rasterizer{
		cell:      newEngineCell(loader),
		store:     cfg.Store,
		handleTTL: cfg.HandleTTL,
		urlPrefix: urlPrefix,
		disabled:  cfg.Disabled,
	}
}

// EngineName reports the loaded backend, or empty when no load has settled
// successfully yet.
func (r *Rasterizer) EngineName() string {
	r.cell.mu.Lock()
	defer r.cell.mu.Unlock()
	if r.cell.engine == nil {
		return ""
	}
	return r.cell.engine.Name()
}

// Close tears down the shared engine. Only for shutdown.
func (r *Rasterizer) Close() error {
	return r.cell.close()
}

// ConvertFirstPage renders page one of the document to a PNG preview. All
// failures are folded into the uniform result shape; nothing escapes as a
// returned error.
func (r *Rasterizer) ConvertFirstPage(ctx context.Context, doc SourceDocument) ConversionResult {
	result, err := r.convert(ctx, doc)
	if err != nil {
		Logger.Error("Conversion failed", "name", doc.Name, "error", err)
		return ConversionResult{Error: err.Error()}
	}
	return result
}

func (r *Rasterizer) convert(ctx context.Context, doc SourceDocument) (ConversionResult, error) {
	if r.disabled {
		return ConversionResult{}, ErrEnvironment
	}
	if len(doc.Data) == 0 {
		return ConversionResult{}, fmt.Errorf("%w: empty document buffer", ErrDocumentLoad)
	}

	engine, err := r.cell.get(ctx)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("rendering engine unavailable: %w", err)
	}

	opened, err := engine.Open(doc.Data)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	defer opened.Close()

	if opened.PageCount() == 0 {
		return ConversionResult{}, ErrPageNotFound
	}

	pageWidth, pageHeight, err := opened.PageSize(0)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}

	// Viewport at the fixed scale, floored to whole pixels.
	viewportWidth := int(math.Floor(pageWidth * ViewportScale))
	viewportHeight := int(math.Floor(pageHeight * ViewportScale))
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return ConversionResult{}, fmt.Errorf("%w: zero-size viewport (%dx%d)", ErrSurfaceAllocation, viewportWidth, viewportHeight)
	}
	surface := image.NewNRGBA(image.Rect(0, 0, viewportWidth, viewportHeight))

	rendered, err := opened.RenderPage(0, ViewportScale)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("render first page: %w", err)
	}

	// Fit the render into the surface at exactly the viewport dimensions
	// with bilinear resampling. Backends render at the requested scale so
	// this normally only corrects sub-pixel rounding.
	fitted := imaging.Resize(rendered, viewportWidth, viewportHeight, imaging.Linear)
	surface = imaging.Paste(surface, fitted, image.Pt(0, 0))

	var buf bytes.Buffer
	if err := png.Encode(&buf, surface); err != nil {
		return ConversionResult{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	handle := ulid.Make().String()
	if err := r.store.Put(ctx, handle, buf.Bytes(), r.handleTTL); err != nil {
		return ConversionResult{}, fmt.Errorf("store preview bytes: %w", err)
	}

	release := func() {
		if err := r.store.Release(context.Background(), handle); err != nil && !errors.Is(err, storage.ErrNotFound) {
			Logger.Warn("Failed to release preview handle", "handle", handle, "error", err)
		}
	}

	return ConversionResult{
		ImageURL: r.urlPrefix + handle,
		File: &NamedFile{
			Name: OutputName(doc.Name),
			Data: buf.Bytes(),
		},
		Handle:  handle,
		Width:   viewportWidth,
		Height:  viewportHeight,
		Release: release,
	}, nil
}

// OutputName derives the preview file name by swapping the source extension
// for .png. The swap is case-insensitive by construction; a name without an
// extension is only appended to.
func OutputName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// Dot-files like ".pdf" keep their full name.
		stem = name
	}
	return stem + ".png"
}
