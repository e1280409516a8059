// Package server exposes the Lumo HTTP API.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/auth"
	"github.com/joseph-ayodele/lumo-backend/internal/chat"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	processor "github.com/joseph-ayodele/lumo-backend/internal/pipeline"
	"github.com/joseph-ayodele/lumo-backend/internal/subscriptions"
)

const defaultAnalyzeTimeout = 5 * time.Minute

// Analyzer runs the OCR and model pipeline for one upload.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, filename, contentType string) (processor.Output, error)
}

// ChatService is the conversational session manager.
type ChatService interface {
	Window() time.Duration
	History(ctx context.Context, userID string, window time.Duration) ([]*entity.ChatMessage, error)
	Send(ctx context.Context, userID, text string) (string, error)
	SendFile(ctx context.Context, userID string, f chat.FileUpload, caption string) (chat.FileReply, error)
	Clear(ctx context.Context, userID string) (int, error)
}

// AnalysesService stores saved analyses.
type AnalysesService interface {
	List(ctx context.Context, userID string) ([]entity.AnalysisSummary, error)
	Create(ctx context.Context, userID string, req analyses.CreateRequest) (*analyses.Record, error)
	Get(ctx context.Context, userID, id string) (*analyses.Record, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAccount(ctx context.Context, userID string) (analyses.AccountDeletion, error)
}

// Exporter renders a user's analyses as a spreadsheet.
type Exporter interface {
	ExportAnalysesXLSX(ctx context.Context, userID string, from, to *time.Time) ([]byte, error)
}

// SubscriptionService sells and tracks the premium plan.
type SubscriptionService interface {
	Checkout(ctx context.Context, userID string, req subscriptions.CheckoutRequest) (subscriptions.CheckoutResponse, error)
	HasActive(ctx context.Context, userID string) (bool, error)
	Portal(ctx context.Context, userID, returnURL string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// TokenVerifier turns an Authorization header into a verified identity.
type TokenVerifier interface {
	VerifyHeader(header string) (auth.Identity, error)
}

// OAuth drives the Google sign-in flow.
type OAuth interface {
	AuthorizeURL(redirectURL string) (string, error)
	Callback(callbackURL string) (*auth.User, error)
}

// Limits bounds model-backed endpoints per user.
type Limits struct {
	RequestsPerMinute int
	Burst             int
}

// Deps are the collaborators the router dispatches to. Subscriptions and OAuth are optional.
type Deps struct {
	Analyzer       Analyzer
	Chat           ChatService
	Analyses       AnalysesService
	Exporter       Exporter
	Subscriptions  SubscriptionService
	OAuth          OAuth
	Verifier       TokenVerifier
	Logger         *slog.Logger
	AnalyzeTimeout time.Duration
	Limits         Limits
	Now            func() time.Time
}

type handler struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the /api route tree.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.AnalyzeTimeout <= 0 {
		d.AnalyzeTimeout = defaultAnalyzeTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handler{Deps: d, logger: logger}
	limiter := newUserLimiter(d.Limits.RequestsPerMinute, d.Limits.Burst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/ai/health", h.health)
		if d.OAuth != nil {
			r.Post("/auth/google", h.googleAuthorize)
			r.Post("/auth/google/callback", h.googleCallback)
		}
		if d.Subscriptions != nil {
			r.Post("/subscriptions/webhook", h.webhook)
		}

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authenticate(d.Verifier, logger))

			r.With(limiter.middleware).Post("/ai/analyze", h.analyze)

			r.Route("/chat", func(r chi.Router) {
				r.With(limiter.middleware).Post("/send", h.chatSend)
				r.With(limiter.middleware).Post("/send-file", h.chatSendFile)
				r.Post("/history", h.chatHistory)
				r.Post("/clear", h.chatClear)
			})

			r.Route("/analyses", func(r chi.Router) {
				r.Get("/", h.listAnalyses)
				r.Post("/", h.createAnalysis)
				r.Get("/export", h.exportAnalyses)
				r.Delete("/delete-account", h.deleteAccount)
				r.Get("/{id}", h.getAnalysis)
				r.Delete("/{id}", h.deleteAnalysis)
			})

			if d.Subscriptions != nil {
				r.Post("/subscriptions/checkout", h.checkout)
				r.Get("/subscriptions/status", h.subscriptionStatus)
				r.Post("/subscriptions/portal", h.portal)
			}
		})
	})

	return r
}
