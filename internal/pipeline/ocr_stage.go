package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/extract"
)

// OCRStage validates the upload and turns it into a normalized document.
type OCRStage struct {
	Extractor extract.DocumentExtractor
	Logger    *slog.Logger
}

func NewOCRStage(ex extract.DocumentExtractor, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{Extractor: ex, Logger: logger}
}

// Run rejects unsupported content types before any external call.
func (s *OCRStage) Run(ctx context.Context, r io.Reader, filename, contentType string) (extract.Result, error) {
	ct := constants.NormalizeContentType(contentType)
	if _, ok := constants.AllowedContentTypes[ct]; !ok {
		return extract.Result{}, fmt.Errorf("%w: unsupported content type %q", ErrUnsupportedFile, contentType)
	}
	res, err := s.Extractor.Extract(ctx, r, filename, ct)
	if err != nil {
		return res, err
	}
	if res.Document.Empty() {
		s.Logger.Warn("processor.ocr.empty_document", "filename", filename, "blocks", res.Blocks)
	}
	return res, nil
}
