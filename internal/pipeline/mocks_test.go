package processor

import (
	"context"
	"io"

	"github.com/joseph-ayodele/lumo-backend/internal/extract"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

type fakeExtractor struct {
	res   extract.Result
	err   error
	calls int
	ct    string
}

func (f *fakeExtractor) Extract(_ context.Context, r io.Reader, _, contentType string) (extract.Result, error) {
	f.calls++
	f.ct = contentType
	_, _ = io.ReadAll(r)
	return f.res, f.err
}

type fakeCompleter struct {
	out   string
	err   error
	calls []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.out, f.err
}
