package llm

import (
	"fmt"

	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/entity"
	"go.uber.org/zap"
)

// NewProviders instantiates one Provider per configured entry.
func NewProviders(cfg entity.RouterConfig, httpCfg config.HTTPClientConfig, logger *zap.Logger) (map[string]Provider, error) {
	providers := make(map[string]Provider, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		switch pc.Kind {
		case entity.ProviderKindOpenAI:
			providers[pc.ID] = NewOpenAIProvider(pc)
		case entity.ProviderKindGateway:
			providers[pc.ID] = NewGatewayProvider(pc, httpCfg, logger)
		case entity.ProviderKindMock:
			providers[pc.ID] = NewMockProvider(pc.ID)
		default:
			return nil, fmt.Errorf("%w: provider %s has unknown kind %q", entity.ErrInvalidParameter, pc.ID, pc.Kind)
		}
		logger.Info("llm provider configured",
			zap.String("provider", pc.ID),
			zap.String("kind", string(pc.Kind)),
			zap.String("model", pc.Model),
			zap.Int("priority", pc.Priority),
		)
	}
	return providers, nil
}

// NewRouterFromConfig wires providers and router in one step.
func NewRouterFromConfig(cfg config.LLMConfig, logger *zap.Logger, metrics *Metrics) (*Router, error) {
	providers, err := NewProviders(cfg.Router, cfg.HTTP, logger)
	if err != nil {
		return nil, err
	}
	return NewRouter(cfg.Router, providers, RouterOptions{
		Retry:           cfg.Retry,
		CallTimeout:     cfg.CallTimeout,
		StreamTimeout:   cfg.StreamTimeout,
		HealthThreshold: cfg.HealthThreshold,
		HealthCooldown:  cfg.HealthCooldown,
		Metrics:         metrics,
	})
}
