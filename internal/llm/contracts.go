package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/lumo-backend/constants"
)

// PatientInfo holds the optional demographic fields found on a report.
type PatientInfo struct {
	Name     *string `json:"name"`
	Age      *string `json:"age"`
	Sex      *string `json:"sex"`
	TestDate *string `json:"test_date"`
}

// Marker is one biomarker row. Marker is the only required field.
type Marker struct {
	Marker         string                 `json:"marker"`
	Value          *string                `json:"value"`
	Unit           *string                `json:"unit"`
	ReferenceRange *string                `json:"reference_range"`
	Status         constants.MarkerStatus `json:"status"`
}

// ExtractionResult is the structured biomarker data pulled from a report.
type ExtractionResult struct {
	PatientInfo PatientInfo `json:"patient_info"`
	TestResults []Marker    `json:"test_results"`
}

// EmptyExtraction returns the default used when the model produced nothing usable.
func EmptyExtraction() ExtractionResult {
	return ExtractionResult{TestResults: []Marker{}}
}

// AbnormalCount counts markers flagged high or low.
func (e ExtractionResult) AbnormalCount() int {
	n := 0
	for _, m := range e.TestResults {
		if m.Status.Abnormal() {
			n++
		}
	}
	return n
}

// AnalysisSection groups markers of one physiological system.
type AnalysisSection struct {
	Category string   `json:"category"`
	Icon     string   `json:"icon"`
	Markers  []string `json:"markers"`
	Summary  string   `json:"summary"`
	Details  string   `json:"details"`
}

// AnalysisResult is the model's categorized interpretation.
type AnalysisResult struct {
	Overview string            `json:"overview"`
	Sections []AnalysisSection `json:"sections"`
}

// Uncovered lists extracted marker names that no section references.
func (a AnalysisResult) Uncovered(e ExtractionResult) []string {
	seen := map[string]bool{}
	for _, s := range a.Sections {
		for _, m := range s.Markers {
			seen[m] = true
		}
	}
	var out []string
	for _, m := range e.TestResults {
		if !seen[m.Marker] {
			out = append(out, m.Marker)
		}
	}
	return out
}

// CompletionRequest is a single blocking instruction/input exchange.
type CompletionRequest struct {
	Instructions string
	Input        string
}

// Completer is what the analysis pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ImagePart is an inline image sent with a chat turn.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// ChatTurn is one role/content pair of a conversation.
type ChatTurn struct {
	Role    constants.Role `json:"role"`
	Content string         `json:"content"`
	Image   *ImagePart     `json:"-"`
}

type ChatRequest struct {
	System      string
	Turns       []ChatTurn
	MaxTokens   int
	Temperature *float32 // overrides the provider's configured chat temperature
}

// ChatModel produces the assistant's next reply.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// CallError is a fatal failure talking to a model provider.
type CallError struct {
	Op     string // "complete", "chat"
	Status int    // HTTP status when known
	Err    error
}

func (e *CallError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
