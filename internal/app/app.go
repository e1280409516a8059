// Package app turns a loaded configuration into the concrete services used by lumod and lumoctl.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/textract"

	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/auth"
	"github.com/joseph-ayodele/lumo-backend/internal/chat"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/export"
	"github.com/joseph-ayodele/lumo-backend/internal/extract"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	"github.com/joseph-ayodele/lumo-backend/internal/llm/gemini"
	"github.com/joseph-ayodele/lumo-backend/internal/llm/openai"
	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
	processor "github.com/joseph-ayodele/lumo-backend/internal/pipeline"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
	"github.com/joseph-ayodele/lumo-backend/internal/server"
	"github.com/joseph-ayodele/lumo-backend/internal/storage"
	"github.com/joseph-ayodele/lumo-backend/internal/subscriptions"
)

const dbHealthTimeout = 5 * time.Second

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenDB connects, pings and, when enabled, migrates the database.
func OpenDB(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.HealthCheck(ctx, db, dbHealthTimeout, logger); err != nil {
		repository.Close(db, logger)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db, logger); err != nil {
			repository.Close(db, logger)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return db, nil
}

// Cloud holds the AWS clients shared by the analysis pipeline and chat attachments.
type Cloud struct {
	AWS      aws.Config
	S3       *s3.Client
	Textract *textract.Client
}

// NewCloud loads the default AWS credential chain for the configured region.
func NewCloud(ctx context.Context, cfg *common.Config) (*Cloud, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Storage.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Storage.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Cloud{AWS: awsCfg, S3: s3.NewFromConfig(awsCfg), Textract: textract.NewFromConfig(awsCfg)}, nil
}

// NewExtractor wires staging, the OCR job runner and normalization.
func NewExtractor(cloud *Cloud, cfg *common.Config, logger *slog.Logger) *extract.TextractExtractor {
	uploads := storage.NewUploader(storage.NewS3Store(cloud.S3, cfg.Storage.Bucket),
		storage.Config{Prefix: cfg.Storage.UploadPrefix}, logger)
	runner := ocr.NewJobRunner(cloud.Textract, ocr.Config{
		Bucket:       cfg.Storage.Bucket,
		PollInterval: cfg.OCR.PollInterval,
		MaxWait:      cfg.OCR.MaxWait,
	}, logger)
	return extract.NewTextractExtractor(uploads, runner, logger)
}

// NewOpenAI builds the analysis client, which also serves chat by default.
func NewOpenAI(cfg *common.Config, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		ReasoningEffort: cfg.LLM.ReasoningEffort,
		Verbosity:       cfg.LLM.Verbosity,
		ChatModel:       cfg.LLM.ChatModel,
		ChatTemperature: cfg.LLM.ChatTemperature,
		Timeout:         cfg.LLM.Timeout,
	}, logger)
}

// NewChatModel selects the chat provider. The returned func releases provider resources.
func NewChatModel(ctx context.Context, cfg *common.Config, fallback *openai.Client, logger *slog.Logger) (llm.ChatModel, func(), error) {
	switch strings.ToLower(cfg.LLM.ChatProvider) {
	case "", "openai":
		return fallback, func() {}, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.LLM.GeminiAPIKey,
			Model:       cfg.LLM.GeminiModel,
			Temperature: cfg.LLM.ChatTemperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Warn("gemini client close failed", "error", err)
			}
		}, nil
	default:
		return nil, nil, common.NewAppError("CONFIG_ERROR", "unknown CHAT_PROVIDER "+cfg.LLM.ChatProvider, common.ErrInvalidInput)
	}
}

// NewProcessor wires OCR and the model into the analysis pipeline.
func NewProcessor(extractor extract.DocumentExtractor, model llm.Completer, logger *slog.Logger) *processor.Processor {
	return processor.NewProcessor(logger,
		processor.NewOCRStage(extractor, logger),
		processor.NewLLMStage(model, logger),
	)
}

// App is the fully wired service graph.
type App struct {
	Config        *common.Config
	Logger        *slog.Logger
	DB            *repository.DB
	Processor     *processor.Processor
	Chat          *chat.Service
	Analyses      *analyses.Service
	Export        *export.Service
	Subscriptions *subscriptions.Service // nil when billing is not configured
	Verifier      *auth.Verifier
	OAuth         *auth.GoogleOAuth

	closers []func()
}

// Build opens every dependency described by cfg.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := OpenDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() { repository.Close(db, logger) })

	cloud, err := NewCloud(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	extractor := NewExtractor(cloud, cfg, logger)
	oa := NewOpenAI(cfg, logger)
	a.Processor = NewProcessor(extractor, oa, logger)

	chatModel, closeChat, err := NewChatModel(ctx, cfg, oa, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeChat)

	attachments := storage.NewUploader(storage.NewS3Store(cloud.S3, cfg.Storage.AttachmentBucket),
		storage.Config{Prefix: cfg.Storage.AttachmentPrefix}, logger)
	a.Chat = chat.NewService(repository.NewMessageRepository(db, logger), chatModel, attachments, extractor, chat.Config{
		Window:    cfg.Chat.RetentionWindow,
		MaxTokens: cfg.LLM.ChatMaxTokens,
	}, logger)

	analysisRepo := repository.NewAnalysisRepository(db, logger)
	a.Analyses = analyses.NewService(analysisRepo, a.Chat, logger)
	a.Export = export.NewService(analysisRepo, logger)

	if cfg.BillingEnabled() {
		a.Subscriptions = subscriptions.NewService(
			subscriptions.NewStripeBilling(cfg.Billing.SecretKey, cfg.Billing.WebhookSecret),
			repository.NewSubscriptionRepository(db, logger),
			subscriptions.Config{
				MonthlyPriceID: cfg.Billing.MonthlyPriceID,
				YearlyPriceID:  cfg.Billing.YearlyPriceID,
				TrialDays:      cfg.Billing.TrialDays,
				WebhookSecret:  cfg.Billing.WebhookSecret,
			}, logger)
	}

	a.Verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience, logger)
	a.OAuth = auth.NewGoogleOAuth(cfg.Auth.SupabaseURL, a.Verifier)

	logger.Info("app.build.ok",
		"region", cloud.AWS.Region,
		"chat_provider", cfg.LLM.ChatProvider,
		"billing", a.Subscriptions != nil,
	)
	return a, nil
}

// Router returns the HTTP handler for the wired services.
func (a *App) Router() http.Handler {
	d := server.Deps{
		Analyzer:       a.Processor,
		Chat:           a.Chat,
		Analyses:       a.Analyses,
		Exporter:       a.Export,
		Verifier:       a.Verifier,
		Logger:         a.Logger,
		AnalyzeTimeout: a.Config.Server.AnalyzeTimeout,
		Limits: server.Limits{
			RequestsPerMinute: a.Config.Limits.RequestsPerMinute,
			Burst:             a.Config.Limits.Burst,
		},
	}
	// Typed nils would mount routes for missing services.
	if a.Subscriptions != nil {
		d.Subscriptions = a.Subscriptions
	}
	if a.Config.Auth.SupabaseURL != "" {
		d.OAuth = a.OAuth
	}
	return server.NewRouter(d)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
