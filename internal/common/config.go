package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	Chat     ChatConfig     `yaml:"chat"`
	Auth     AuthConfig     `yaml:"auth"`
	Billing  BillingConfig  `yaml:"billing"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	AutoMigrate      bool          `yaml:"auto_migrate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AnalyzeTimeout  time.Duration `yaml:"analyze_timeout"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Region           string `yaml:"region"`
	Bucket           string `yaml:"bucket"`
	AttachmentBucket string `yaml:"attachment_bucket"`
	UploadPrefix     string `yaml:"upload_prefix"`
	AttachmentPrefix string `yaml:"attachment_prefix"`
}

// OCRConfig holds OCR job polling configuration
type OCRConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxWait      time.Duration `yaml:"max_wait"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	Verbosity       string        `yaml:"verbosity"`
	Timeout         time.Duration `yaml:"timeout"`

	ChatProvider    string  `yaml:"chat_provider"` // openai | gemini
	ChatModel       string  `yaml:"chat_model"`
	ChatMaxTokens   int     `yaml:"chat_max_tokens"`
	ChatTemperature float32 `yaml:"chat_temperature"`
	GeminiAPIKey    string  `yaml:"gemini_api_key"`
	GeminiModel     string  `yaml:"gemini_model"`
}

// ChatConfig holds conversational retention configuration
type ChatConfig struct {
	RetentionWindow time.Duration `yaml:"retention_window"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// AuthConfig holds bearer token verification configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	Audience    string `yaml:"audience"`
	SupabaseURL string `yaml:"supabase_url"`
	AnonKey     string `yaml:"anon_key"`
}

// BillingConfig holds subscription billing configuration
type BillingConfig struct {
	SecretKey      string `yaml:"secret_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	MonthlyPriceID string `yaml:"monthly_price_id"`
	YearlyPriceID  string `yaml:"yearly_price_id"`
	TrialDays      int64  `yaml:"trial_days"`
}

// LimitsConfig holds per-user request limits for model-backed endpoints
type LimitsConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        ":8081",
			ShutdownTimeout: 15 * time.Second,
			AnalyzeTimeout:  5 * time.Minute,
		},
		Storage: StorageConfig{
			Region:           "us-east-1",
			UploadPrefix:     "textract_uploads",
			AttachmentPrefix: "chat_attachments",
		},
		OCR: OCRConfig{
			PollInterval: 2 * time.Second,
			MaxWait:      120 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-5.1",
			ReasoningEffort: "medium",
			Verbosity:       "medium",
			Timeout:         3 * time.Minute,
			ChatProvider:    "openai",
			ChatModel:       "gpt-4o-mini",
			ChatMaxTokens:   1000,
			ChatTemperature: 0.7,
			GeminiModel:     "gemini-1.5-flash-latest",
		},
		Chat: ChatConfig{
			RetentionWindow: 30 * time.Minute,
			SweepInterval:   5 * time.Minute,
		},
		Auth: AuthConfig{Audience: "authenticated"},
		Billing: BillingConfig{
			TrialDays: 3,
		},
		Limits: LimitsConfig{RequestsPerMinute: 20, Burst: 5},
	}
}

// LoadConfig layers configuration: defaults, then an optional YAML file named by
// LUMO_CONFIG, then environment variables (a .env file is loaded first if present).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	c := DefaultConfig()
	if path := os.Getenv("LUMO_CONFIG"); path != "" {
		if err := c.mergeYAML(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) mergeYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file "+path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse config file "+path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	c.Database.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AnalyzeTimeout = getEnvAsDuration("ANALYZE_TIMEOUT", c.Server.AnalyzeTimeout)

	c.Storage.Region = getEnv("AWS_REGION", c.Storage.Region)
	c.Storage.Bucket = getEnv("AWS_S3_BUCKET", c.Storage.Bucket)
	c.Storage.AttachmentBucket = getEnv("ATTACHMENT_BUCKET", c.Storage.AttachmentBucket)
	c.Storage.UploadPrefix = getEnv("UPLOAD_PREFIX", c.Storage.UploadPrefix)
	c.Storage.AttachmentPrefix = getEnv("ATTACHMENT_PREFIX", c.Storage.AttachmentPrefix)
	if c.Storage.AttachmentBucket == "" {
		c.Storage.AttachmentBucket = c.Storage.Bucket
	}

	c.OCR.PollInterval = getEnvAsDuration("OCR_POLL_INTERVAL", c.OCR.PollInterval)
	c.OCR.MaxWait = getEnvAsDuration("OCR_MAX_WAIT", c.OCR.MaxWait)

	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.ReasoningEffort = getEnv("OPENAI_REASONING_EFFORT", c.LLM.ReasoningEffort)
	c.LLM.Verbosity = getEnv("OPENAI_VERBOSITY", c.LLM.Verbosity)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.ChatProvider = getEnv("CHAT_PROVIDER", c.LLM.ChatProvider)
	c.LLM.ChatModel = getEnv("CHAT_MODEL", c.LLM.ChatModel)
	c.LLM.ChatMaxTokens = getEnvAsInt("CHAT_MAX_TOKENS", c.LLM.ChatMaxTokens)
	c.LLM.ChatTemperature = getEnvAsFloat32("CHAT_TEMPERATURE", c.LLM.ChatTemperature)
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.GeminiModel = getEnv("GEMINI_MODEL", c.LLM.GeminiModel)

	c.Chat.RetentionWindow = getEnvAsDuration("CHAT_RETENTION_WINDOW", c.Chat.RetentionWindow)
	c.Chat.SweepInterval = getEnvAsDuration("CHAT_SWEEP_INTERVAL", c.Chat.SweepInterval)

	c.Auth.JWTSecret = getEnv("SUPABASE_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Audience = getEnv("JWT_AUDIENCE", c.Auth.Audience)
	c.Auth.SupabaseURL = getEnv("SUPABASE_URL", c.Auth.SupabaseURL)
	c.Auth.AnonKey = getEnv("SUPABASE_ANON_KEY", c.Auth.AnonKey)

	c.Billing.SecretKey = getEnv("STRIPE_SECRET_KEY", c.Billing.SecretKey)
	c.Billing.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", c.Billing.WebhookSecret)
	c.Billing.MonthlyPriceID = getEnv("STRIPE_MONTHLY_PRICE_ID", c.Billing.MonthlyPriceID)
	c.Billing.YearlyPriceID = getEnv("STRIPE_YEARLY_PRICE_ID", c.Billing.YearlyPriceID)
	c.Billing.TrialDays = int64(getEnvAsInt("STRIPE_TRIAL_DAYS", int(c.Billing.TrialDays)))

	c.Limits.RequestsPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", c.Limits.RequestsPerMinute)
	c.Limits.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.Limits.Burst)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration for running the API server.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"DB_URL", c.Database.DSN},
		{"OPENAI_API_KEY", c.LLM.APIKey},
		{"AWS_S3_BUCKET", c.Storage.Bucket},
		{"SUPABASE_JWT_SECRET", c.Auth.JWTSecret},
		{"HTTP_ADDR", c.Server.HTTPAddr},
	}
	for _, r := range required {
		if r.value == "" {
			return NewAppError("CONFIG_ERROR", r.name+" is required", ErrInvalidInput)
		}
	}
	if c.LLM.ChatProvider == "gemini" && c.LLM.GeminiAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required when CHAT_PROVIDER=gemini", ErrInvalidInput)
	}
	if c.OCR.PollInterval <= 0 || c.OCR.MaxWait <= 0 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("invalid OCR timings poll=%s max_wait=%s", c.OCR.PollInterval, c.OCR.MaxWait), ErrInvalidInput)
	}
	if c.Chat.RetentionWindow <= 0 {
		return NewAppError("CONFIG_ERROR", "CHAT_RETENTION_WINDOW must be positive", ErrInvalidInput)
	}
	return nil
}

// BillingEnabled reports whether subscription endpoints can talk to the billing provider.
func (c *Config) BillingEnabled() bool {
	return c.Billing.SecretKey != ""
}
