package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

var ErrUnsupportedFile = errors.New("unsupported file")

// Output is what the analyze endpoint returns.
type Output struct {
	ParsedData         llm.ExtractionResult `json:"parsed_data"`
	Analysis           string               `json:"analysis"`
	StructuredAnalysis *llm.AnalysisResult  `json:"structured_analysis"`
	CreatedAt          time.Time            `json:"created_at"`
	Issues             []llm.ParseIssue     `json:"-"`
}

// Processor coordinates OCR (upload, job, normalize) then the LLM extraction+analysis.
type Processor struct {
	Logger *slog.Logger
	OCR    *OCRStage
	LLM    *LLMStage
	Now    func() time.Time
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, llmStage *LLMStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, LLM: llmStage, Now: time.Now}
}

// Analyze runs the whole document pipeline for one upload.
func (p *Processor) Analyze(ctx context.Context, r io.Reader, filename, contentType string) (Output, error) {
	rid := uuid.New().String()
	start := time.Now()

	// 1) OCR stage → staged upload, textract job, normalized document
	ex, err := p.OCR.Run(ctx, r, filename, contentType)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "req_id", rid, "filename", filename, "err", err)
		return Output{}, err
	}
	p.Logger.Info("processor.ocr.ok",
		"req_id", rid,
		"filename", filename,
		"blocks", ex.Blocks,
		"tables", len(ex.Document.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	// 2) LLM stage → extraction + analysis + narrative
	parsed, err := p.LLM.Run(ctx, ex.Document)
	if err != nil {
		p.Logger.Error("processor.llm.failed", "req_id", rid, "err", err)
		return Output{}, err
	}

	out := Output{
		ParsedData:         parsed.Extraction,
		Analysis:           parsed.Narrative,
		StructuredAnalysis: parsed.Analysis,
		CreatedAt:          p.Now().UTC(),
		Issues:             parsed.Issues,
	}
	p.Logger.Info("processor.analyze.ok",
		"req_id", rid,
		"markers", len(out.ParsedData.TestResults),
		"abnormal", out.ParsedData.AbnormalCount(),
		"has_structured", out.StructuredAnalysis != nil,
		"issues", len(out.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
