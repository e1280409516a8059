package chat

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/extract"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

// memMessages is an in-memory MessageRepository.
type memMessages struct {
	mu        sync.Mutex
	rows      []*entity.ChatMessage
	now       func() time.Time
	createErr error
	failOn    int // fail the n-th Create (1-based) when > 0
	creates   int
}

func newMemMessages(now func() time.Time) *memMessages {
	return &memMessages{now: now}
}

func (m *memMessages) Create(_ context.Context, msg *entity.ChatMessage) (*entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil && (m.failOn == 0 || m.failOn == m.creates) {
		return nil, m.createErr
	}
	out := *msg
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = m.now()
	}
	m.rows = append(m.rows, &out)
	return &out, nil
}

func (m *memMessages) ListSince(_ context.Context, userID string, since time.Time) ([]*entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ChatMessage
	for _, r := range m.rows {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memMessages) PurgeBefore(_ context.Context, userID string, cutoff time.Time) (int, []string, error) {
	return m.deleteWhere(func(r *entity.ChatMessage) bool {
		return (userID == "" || r.UserID == userID) && r.CreatedAt.Before(cutoff)
	})
}

func (m *memMessages) DeleteAllForUser(_ context.Context, userID string) (int, []string, error) {
	return m.deleteWhere(func(r *entity.ChatMessage) bool { return r.UserID == userID })
}

func (m *memMessages) deleteWhere(match func(*entity.ChatMessage) bool) (int, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		kept  []*entity.ChatMessage
		paths []string
		n     int
	)
	for _, r := range m.rows {
		if !match(r) {
			kept = append(kept, r)
			continue
		}
		n++
		if r.HasAttachment() {
			paths = append(paths, *r.StoragePath)
		}
	}
	m.rows = kept
	return n, paths, nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeModel struct {
	reply string
	err   error
	reqs  []llm.ChatRequest
}

func (f *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeModel) last() llm.ChatRequest { return f.reqs[len(f.reqs)-1] }

type fakeExtractor struct {
	res   extract.Result
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, r io.Reader, _, _ string) (extract.Result, error) {
	f.calls++
	_, _ = io.ReadAll(r)
	return f.res, f.err
}

var errBoom = errors.New("boom")
