package builder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/proposal-backend/internal/api"
	proposalapi "github.com/futig/proposal-backend/internal/api/proposal"
	sessionapi "github.com/futig/proposal-backend/internal/api/session"
	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/integration/callback"
	"github.com/futig/proposal-backend/internal/integration/llm"
	"github.com/futig/proposal-backend/internal/pkg/lock"
	"github.com/futig/proposal-backend/internal/pkg/validator"
	"github.com/futig/proposal-backend/internal/repository"
	"github.com/futig/proposal-backend/internal/telegram"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
	"github.com/futig/proposal-backend/internal/usecase/question"
	"github.com/futig/proposal-backend/internal/usecase/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Core holds everything the transports share: storage, the provider router
// and the use cases.
type Core struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Store    repository.Store
	Router   *llm.Router
	Requests *validator.Validator
	Sessions *session.SessionUsecase
	Synth    *proposal.Synthesizer
}

// BuildCore loads configuration for environment and wires the use cases.
func BuildCore(ctx context.Context, environment string) (*Core, error) {
	cfg, err := config.LoadConfig(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("storage", string(cfg.StorageDriver)),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := setupStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	router, err := llm.NewRouterFromConfig(cfg.LLMCfg, logger, llm.NewMetrics(registry))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("setup llm router: %w", err)
	}
	logger.Info("LLM router initialized",
		zap.Int("providers", len(cfg.LLMCfg.Router.Providers)),
		zap.String("default_provider", cfg.LLMCfg.Router.DefaultProvider),
	)

	catalog := question.DefaultCatalog()
	if len(cfg.QuestionCfg.Questions) > 0 {
		catalog, err = question.NewCatalog(cfg.QuestionCfg.Questions)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build question catalog: %w", err)
		}
	}

	var answerOpts []validator.Option
	if cfg.ValidatorCfg.SemanticEnabled {
		evaluator, err := llm.NewSemanticEvaluator(router)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("setup semantic evaluator: %w", err)
		}
		answerOpts = append(answerOpts, validator.WithSemantic(evaluator, cfg.ValidatorCfg.SemanticTimeout))
	}
	logger.Info("Validators initialized", zap.Bool("semantic", cfg.ValidatorCfg.SemanticEnabled))

	locks := lock.NewKeyed()
	requests := validator.NewValidator()

	sessions := session.NewUsecase(
		store,
		locks,
		requests,
		validator.NewAnswerValidator(answerOpts...),
		question.NewSelector(catalog, router, cfg.QuestionCfg.CacheTTL),
	)

	synth := proposal.NewSynthesizer(
		store,
		store,
		locks,
		router,
		catalog,
		callback.NewConnector(cfg.CallbackConnectorCfg, logger),
		proposal.Options{
			RelevanceThreshold: cfg.ProposalCfg.RelevanceThreshold,
			RelevanceTopK:      cfg.ProposalCfg.RelevanceTopK,
			MaxTokens:          cfg.ProposalCfg.MaxTokens,
		},
	)
	logger.Info("Use cases initialized")

	return &Core{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Router:   router,
		Requests: requests,
		Sessions: sessions,
		Synth:    synth,
	}, nil
}

// Close waits for background generations, then releases storage.
func (c *Core) Close(ctx context.Context) error {
	var errs []error
	if err := c.Synth.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for background generations: %w", err))
	}
	c.Logger.Info("Closing storage")
	if err := c.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}

// Build wires the HTTP API.
func Build(environment string) (*App, error) {
	core, err := BuildCore(context.Background(), environment)
	if err != nil {
		return nil, err
	}
	cfg := core.Config

	router := api.SetupRouter(
		sessionapi.NewHandler(core.Sessions),
		proposalapi.NewHandler(core.Synth, core.Requests),
		api.RouterConfig{RequestTimeout: cfg.RequestTimeout, Registry: core.Registry},
		core.Logger,
	)
	core.Logger.Info("HTTP router configured")

	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: proposal streams run for minutes, chi's Timeout
		// bounds the plain endpoints
		IdleTimeout: 60 * time.Second,
	}

	core.Logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	return &App{server: server, core: core, logger: core.Logger}, nil
}

// BuildTelegramBot wires the Telegram transport over the same use cases.
func BuildTelegramBot(environment string) (*BotApp, error) {
	core, err := BuildCore(context.Background(), environment)
	if err != nil {
		return nil, err
	}
	cfg := core.Config
	if cfg.TelegramCfg.BotToken == "" {
		core.Close(context.Background())
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	bot, err := telegram.NewBot(&cfg.TelegramCfg, core.Sessions, core.Synth, core.Logger)
	if err != nil {
		core.Close(context.Background())
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	core.Logger.Info("Telegram bot built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &BotApp{bot: bot, core: core, logger: core.Logger}, nil
}
