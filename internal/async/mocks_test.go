package async

import (
	"context"
	"sync"
	"time"
)

type fakePurger struct {
	mu      sync.Mutex
	windows []time.Duration
	calls   chan struct{}
	block   chan struct{}
	err     error
}

func newFakePurger() *fakePurger {
	return &fakePurger{calls: make(chan struct{}, 64)}
}

func (f *fakePurger) PurgeExpired(ctx context.Context, window time.Duration) (int, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.windows = append(f.windows, window)
	f.mu.Unlock()
	f.calls <- struct{}{}
	return 2, f.err
}

func (f *fakePurger) seen() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.windows...)
}
