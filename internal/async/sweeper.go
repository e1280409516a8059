// Package async runs background chat retention sweeps.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweep is one purge request. Window <= 0 uses the sweeper default.
type Sweep struct {
	Window      time.Duration
	Reason      string
	SubmittedAt time.Time
}

// Purger deletes expired chat messages of every user. *chat.Service satisfies it.
type Purger interface {
	PurgeExpired(ctx context.Context, window time.Duration) (int, error)
}

type Sweeper struct {
	purger   Purger
	logger   *slog.Logger
	interval time.Duration
	window   time.Duration
	timeout  time.Duration

	ch   chan Sweep
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}
func WithWindow(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}
func WithSweepTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSweeper starts a sweeper that purges on every tick and on Trigger.
func NewSweeper(purger Purger, logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		purger:   purger,
		logger:   logger,
		interval: 5 * time.Minute,
		window:   30 * time.Minute,
		timeout:  time.Minute,
		ch:       make(chan Sweep, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.start()
	return s
}

func (s *Sweeper) start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("sweeper started", "interval", s.interval, "window", s.window)

			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.run(Sweep{Reason: "tick", SubmittedAt: time.Now()})
				case sw, ok := <-s.ch:
					if !ok {
						s.logger.Info("sweeper stopped")
						return
					}
					s.run(sw)
				}
			}
		}()
	})
}

func (s *Sweeper) run(sw Sweep) {
	window := sw.Window
	if window <= 0 {
		window = s.window
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.purger.PurgeExpired(ctx, window)
	if err != nil {
		s.logger.Error("chat.sweep.failed", "reason", sw.Reason, "error", err)
		return
	}
	s.logger.Info("chat.sweep.ok", "reason", sw.Reason, "deleted", n, "window", window,
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Trigger requests an extra sweep. A sweep already pending absorbs the request.
func (s *Sweeper) Trigger(_ context.Context, sw Sweep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("cannot trigger: sweeper is shutting down", "reason", sw.Reason)
		return nil
	}
	if sw.SubmittedAt.IsZero() {
		sw.SubmittedAt = time.Now()
	}
	select {
	case s.ch <- sw:
		s.logger.Debug("sweep queued", "reason", sw.Reason)
	default:
		s.logger.Debug("sweep already pending", "reason", sw.Reason)
	}
	return nil
}

// Shutdown stops the ticker loop, letting a running sweep finish.
func (s *Sweeper) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown interrupted by context")
	case <-done:
		s.logger.Info("sweeper drained, shutdown complete")
	}
}
