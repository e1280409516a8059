package ingest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	processor "github.com/joseph-ayodele/lumo-backend/internal/pipeline"
)

var errBoom = errors.New("boom")

type fakeAnalyzer struct {
	mu    sync.Mutex
	names []string
	types []string
	fail  map[string]bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, r io.Reader, filename, contentType string) (processor.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.ReadAll(r)
	f.names = append(f.names, filename)
	f.types = append(f.types, contentType)
	if f.fail[filename] {
		return processor.Output{}, errBoom
	}
	value, unit := "13.5", "g/dL"
	return processor.Output{
		ParsedData: llm.ExtractionResult{TestResults: []llm.Marker{{
			Marker: "Hemoglobin",
			Value:  &value,
			Unit:   &unit,
			Status: constants.MarkerNormal,
		}}},
		Analysis: "All values within range.",
	}, nil
}

type fakeSaver struct {
	mu   sync.Mutex
	reqs []analyses.CreateRequest
	err  error
}

func (f *fakeSaver) Create(_ context.Context, userID string, req analyses.CreateRequest) (*analyses.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return &analyses.Record{ID: uuid.New(), UserID: userID, ParsedData: req.ParsedData}, nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}
