package processor

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
)

// LLMStage sends the formatted document to the model and parses the reply.
type LLMStage struct {
	Model  llm.Completer
	Parser *llm.Parser
	Logger *slog.Logger
}

func NewLLMStage(model llm.Completer, logger *slog.Logger) *LLMStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMStage{Model: model, Parser: llm.NewParser(logger), Logger: logger}
}

// Run returns a *llm.CallError when the model call fails. Parse problems never fail.
func (s *LLMStage) Run(ctx context.Context, doc ocr.NormalizedDocument) (llm.ParseResult, error) {
	text, err := s.Model.Complete(ctx, llm.CompletionRequest{
		Instructions: llm.ExtractionInstructions(),
		Input:        llm.BuildAnalysisInput(doc),
	})
	if err != nil {
		return llm.ParseResult{}, err
	}
	res := s.Parser.Parse(text)
	for _, is := range res.Issues {
		s.Logger.Warn("processor.parse.issue", "kind", is.Kind, "detail", is.Detail)
	}
	return res, nil
}
