package rasterizer

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// pdfiumEngine renders documents through the PDFium WebAssembly worker pool
// (pure Go, no CGo). This is the primary backend.
type pdfiumEngine struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

func newPdfiumEngine() (*pdfiumEngine, error) {
	// Single worker is enough: conversions serialize on the instance and the
	// dominant cost is the render itself.
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PDFium WebAssembly worker pool: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &pdfiumEngine{
		pool:     pool,
		instance: instance,
	}, nil
}

func (e *pdfiumEngine) Name() string {
	return "pdfium-wasm"
}

// Open parses a document from raw bytes
func (e *pdfiumEngine) Open(data []byte) (Document, error) {
	doc, err := e.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open document: %w", err)
	}
	return &pdfiumDocument{engine: e, ref: doc.Document}, nil
}

// Close cleans up resources used by the PDFium engine
func (e *pdfiumEngine) Close() error {
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
	e.instance = nil
	return nil
}

type pdfiumDocument struct {
	engine *pdfiumEngine
	ref    references.FPDF_DOCUMENT
}

func (d *pdfiumDocument) PageCount() int {
	resp, err := d.engine.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: d.ref,
	})
	if err != nil {
		Logger.Error("Unable to get page count", "error", err)
		return 0
	}
	return resp.PageCount
}

// PageSize returns the native page size in points
func (d *pdfiumDocument) PageSize(index int) (float64, float64, error) {
	resp, err := d.engine.instance.GetPageSize(&requests.GetPageSize{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.ref,
				Index:    index,
			},
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get page size: %w", err)
	}
	return resp.Width, resp.Height, nil
}

// RenderPage rasterizes a page at the given zoom factor
func (d *pdfiumDocument) RenderPage(index int, scale float64) (image.Image, error) {
	pageRender, err := d.engine.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(enginePointDPI * scale),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.ref,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}

	// The result pixels live in WebAssembly worker memory; clone before
	// Cleanup invalidates them.
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	return img, nil
}

func (d *pdfiumDocument) Close() error {
	_, err := d.engine.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.ref,
	})
	return err
}
