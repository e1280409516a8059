package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
)

// TextractExtractor stages the file, runs the OCR job and normalizes the blocks.
// The staged object is always removed, whatever the outcome.
type TextractExtractor struct {
	stager Stager
	source BlockSource
	logger *slog.Logger
}

var _ DocumentExtractor = (*TextractExtractor)(nil)

func NewTextractExtractor(stager Stager, source BlockSource, logger *slog.Logger) *TextractExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextractExtractor{stager: stager, source: source, logger: logger}
}

func (e *TextractExtractor) Extract(ctx context.Context, r io.Reader, filename, contentType string) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	key, err := e.stager.Stage(ctx, r, filename, contentType)
	if err != nil {
		e.logger.Error("extract.stage.failed", "req_id", rid, "filename", filename, "error", err)
		return Result{}, fmt.Errorf("stage upload: %w", err)
	}
	defer e.stager.Remove(context.WithoutCancel(ctx), key)

	blocks, err := e.source.Run(ctx, key)
	if err != nil {
		e.logger.Error("extract.ocr.failed", "req_id", rid, "key", key, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Result{Key: key}, fmt.Errorf("ocr: %w", err)
	}

	doc := ocr.Normalize(blocks)
	res := Result{Document: doc, Key: key, Blocks: len(blocks), Duration: time.Since(start)}

	e.logger.Info("extract.ok",
		"req_id", rid,
		"filename", filename,
		"blocks", len(blocks),
		"lines", len(doc.Lines),
		"key_values", len(doc.KeyValues),
		"tables", len(doc.Tables),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
