// Package extract turns an uploaded document into normalized OCR output.
package extract

import (
	"context"
	"io"
	"time"

	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
)

// DocumentExtractor is stage 1 of the analysis pipeline: file -> normalized document.
type DocumentExtractor interface {
	Extract(ctx context.Context, r io.Reader, filename, contentType string) (Result, error)
}

type Result struct {
	Document ocr.NormalizedDocument
	Key      string // staged object key, already removed when Extract returns
	Blocks   int
	Duration time.Duration
}

// Stager is the subset of storage.Uploader the extractor needs.
type Stager interface {
	Stage(ctx context.Context, r io.Reader, filename, contentType string) (string, error)
	Remove(ctx context.Context, key string)
}

// BlockSource runs OCR against a staged object.
type BlockSource interface {
	Run(ctx context.Context, key string) ([]ocr.RecognitionBlock, error)
}
