package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

var errRateLimited = common.NewAppError("RATE_LIMITED", "Rate limit exceeded", common.ErrRateLimited)

// requestContext copies chi's request id into the common context key.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(common.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog routes chi's request logger through slog.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	})
}

// authenticate verifies the bearer token and stores the caller in the context.
func authenticate(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := verifier.VerifyHeader(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("http.auth.rejected",
					"req_id", common.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				writeError(w, err)
				return
			}
			ctx := common.WithUserID(r.Context(), id.UserID)
			ctx = common.WithEmail(ctx, id.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userLimiter hands out one token bucket per user. Buckets idle longer than idle
// have refilled completely and are dropped on the next sweep.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	buckets   map[string]*userBucket
	lastSweep time.Time
	now       func() time.Time
}

type userBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const minLimiterIdle = 10 * time.Minute

func newUserLimiter(perMinute, burst int) *userLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(perMinute)
	idle := every * time.Duration(burst)
	if idle < minLimiterIdle {
		idle = minLimiterIdle
	}
	return &userLimiter{
		limit:   rate.Every(every),
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*userBucket),
		now:     time.Now,
	}
}

func (l *userLimiter) allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[userID]
	if !ok {
		b = &userBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold mu.
func (l *userLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// middleware rejects callers that exhausted their bucket. A nil limiter allows everything.
func (l *userLimiter) middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(common.UserIDFromContext(r.Context())) {
			writeError(w, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
