package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/futig/proposal-backend/internal/entity"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type StorageDriver string

const (
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverSQLite   StorageDriver = "sqlite"
	StorageDriverMemory   StorageDriver = "memory"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Storage configuration
	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"proposal.db"`

	// Database configuration, used by the postgres driver
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	LLMCfg               LLMConfig               `envPrefix:"LLM_"`
	CallbackConnectorCfg CallbackConnectorConfig `envPrefix:"CALLBACK_"`

	// Domain configuration
	QuestionCfg  QuestionConfig  `envPrefix:"QUESTION_"`
	ValidatorCfg ValidatorConfig `envPrefix:"VALIDATION_"`
	ProposalCfg  ProposalConfig  `envPrefix:"SYNTHESIS_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Telegram bot configuration (optional)
	TelegramCfg TelegramConfig `envPrefix:"TELEGRAM_"`

	// Environment (set from flag, not from env var)
	Environment string
}

// LLMConfig describes the provider router. Providers come from a YAML file.
type LLMConfig struct {
	ProvidersFile   string               `env:"PROVIDERS_FILE"`
	DefaultProvider string               `env:"DEFAULT_PROVIDER"`
	CallTimeout     time.Duration        `env:"CALL_TIMEOUT" envDefault:"60s"`
	StreamTimeout   time.Duration        `env:"STREAM_TIMEOUT" envDefault:"5m"`
	HealthThreshold int                  `env:"FAILURE_THRESHOLD" envDefault:"3"`
	HealthCooldown  time.Duration        `env:"COOLDOWN" envDefault:"30s"`
	Retry           pkgRetry.RetryConfig `envPrefix:"RETRY_"`
	HTTP            HTTPClientConfig     `envPrefix:"HTTP_"`

	// Router is filled from ProvidersFile
	Router entity.RouterConfig
}

type CallbackConnectorConfig struct {
	HTTPClientConfig
	Retry pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"5s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"30s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
	UserAgent             string        `env:"USER_AGENT" envDefault:"proposal-backend"`
}

// QuestionConfig controls the question catalog and follow-up generation.
type QuestionConfig struct {
	CatalogFile string        `env:"CATALOG_FILE"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	// Questions is filled from CatalogFile; empty means the built-in catalog
	Questions []entity.Question
}

type ValidatorConfig struct {
	SemanticEnabled bool          `env:"SEMANTIC_ENABLED" envDefault:"false"`
	SemanticTimeout time.Duration `env:"SEMANTIC_TIMEOUT" envDefault:"15s"`
}

type ProposalConfig struct {
	RelevanceThreshold int `env:"RELEVANCE_THRESHOLD" envDefault:"7"`
	RelevanceTopK      int `env:"TOP_K" envDefault:"5"`
	MaxTokens          int `env:"MAX_TOKENS" envDefault:"4000"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken           string        `env:"BOT_TOKEN"`
	WebhookURL         string        `env:"WEBHOOK_URL"`
	UseWebhook         bool          `env:"USE_WEBHOOK" envDefault:"false"`
	UpdateTimeout      int           `env:"UPDATE_TIMEOUT" envDefault:"60"`
	StateTTL           time.Duration `env:"STATE_TTL" envDefault:"24h"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	ShutdownTimeout    int           `env:"SHUTDOWN_TIMEOUT" envDefault:"10"` // seconds
}

// catalogFile represents the structure of the question catalog JSON file
type catalogFile struct {
	Questions []entity.Question `json:"questions"`
}

// LoadConfig reads the env file for the given environment, then the process
// environment, then the provider and catalog files they point to.
func LoadConfig(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Environment = environment

	if err := loadProviders(cfg); err != nil {
		return nil, fmt.Errorf("load llm providers: %w", err)
	}

	if err := loadCatalog(cfg); err != nil {
		return nil, fmt.Errorf("load question catalog: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errs []string

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres storage driver")
		}
		if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
		}
		if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
			errs = append(errs, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
		}
	case StorageDriverSQLite:
		if cfg.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required for the sqlite storage driver")
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER must be one of postgres, sqlite, memory, got %q", cfg.StorageDriver))
	}

	if err := cfg.LLMCfg.Router.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.LLMCfg.CallTimeout <= 0 || cfg.LLMCfg.StreamTimeout <= 0 {
		errs = append(errs, "LLM_CALL_TIMEOUT and LLM_STREAM_TIMEOUT must be positive")
	}
	if cfg.LLMCfg.Retry.Attempts < 1 || cfg.LLMCfg.Retry.Attempts > 5 {
		errs = append(errs, fmt.Sprintf("LLM_RETRY_ATTEMPTS must be between 1 and 5, got %d", cfg.LLMCfg.Retry.Attempts))
	}

	if cfg.ProposalCfg.RelevanceTopK < 1 {
		errs = append(errs, fmt.Sprintf("SYNTHESIS_TOP_K must be positive, got %d", cfg.ProposalCfg.RelevanceTopK))
	}
	if cfg.ProposalCfg.RelevanceThreshold < cfg.ProposalCfg.RelevanceTopK {
		errs = append(errs, fmt.Sprintf("SYNTHESIS_RELEVANCE_THRESHOLD(%d) must not be below SYNTHESIS_TOP_K(%d)",
			cfg.ProposalCfg.RelevanceThreshold, cfg.ProposalCfg.RelevanceTopK))
	}

	if cfg.TelegramCfg.ShutdownTimeout < 1 || cfg.TelegramCfg.ShutdownTimeout > 300 {
		errs = append(errs, fmt.Sprintf("TELEGRAM_SHUTDOWN_TIMEOUT must be between 1 and 300 seconds, got %d", cfg.TelegramCfg.ShutdownTimeout))
	}
	if cfg.TelegramCfg.UseWebhook && cfg.TelegramCfg.WebhookURL == "" {
		errs = append(errs, "TELEGRAM_WEBHOOK_URL is required when TELEGRAM_USE_WEBHOOK is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func loadProviders(cfg *Config) error {
	llmCfg := &cfg.LLMCfg
	if llmCfg.ProvidersFile == "" {
		if !cfg.EnableMocks {
			return fmt.Errorf("%w: LLM_PROVIDERS_FILE is required unless ENABLE_MOCKS is set", entity.ErrMissingField)
		}
		llmCfg.Router = entity.RouterConfig{
			DefaultProvider: "mock",
			Providers:       []entity.ProviderConfig{{ID: "mock", Kind: entity.ProviderKindMock}},
		}
		return nil
	}

	data, err := os.ReadFile(llmCfg.ProvidersFile)
	if err != nil {
		return fmt.Errorf("read providers file: %w", err)
	}
	router, err := ParseProviders(data)
	if err != nil {
		return fmt.Errorf("%s: %w", llmCfg.ProvidersFile, err)
	}
	if llmCfg.DefaultProvider != "" {
		router.DefaultProvider = llmCfg.DefaultProvider
	}
	llmCfg.Router = *router
	return nil
}

// ParseProviders decodes a provider table and resolves API keys from the environment.
func ParseProviders(data []byte) (*entity.RouterConfig, error) {
	var router entity.RouterConfig
	if err := yaml.Unmarshal(data, &router); err != nil {
		return nil, fmt.Errorf("parse providers YAML: %w", err)
	}
	if len(router.Providers) == 0 {
		return nil, entity.ErrNoProviders
	}
	for i := range router.Providers {
		p := &router.Providers[i]
		p.Kind = entity.ProviderKind(strings.ToLower(string(p.Kind)))
		if p.APIKeyEnv == "" {
			continue
		}
		p.APIKey = os.Getenv(p.APIKeyEnv)
		if p.APIKey == "" {
			return nil, fmt.Errorf("%w: %s for provider %s", entity.ErrMissingField, p.APIKeyEnv, p.ID)
		}
	}
	return &router, nil
}

func loadCatalog(cfg *Config) error {
	path := cfg.QuestionCfg.CatalogFile
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	if len(data) == 0 {
		return fmt.Errorf("catalog file is empty: %s", path)
	}

	var parsed catalogFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse catalog JSON: %w", err)
	}

	if len(parsed.Questions) == 0 {
		return fmt.Errorf("catalog file contains no questions: %s", path)
	}

	cfg.QuestionCfg.Questions = parsed.Questions
	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development", "":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
