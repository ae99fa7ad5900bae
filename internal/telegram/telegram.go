package telegram

import (
	"context"
	"fmt"

	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/telegram/bot"
	"github.com/futig/proposal-backend/internal/telegram/handlers"
	"github.com/futig/proposal-backend/internal/telegram/state"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot wires the interview handlers to a Bot API connection.
func NewBot(
	cfg *config.TelegramConfig,
	sessions handlers.SessionUsecase,
	synth handlers.Synthesizer,
	logger *zap.Logger,
) (Bot, error) {
	states := state.NewStore(cfg.StateTTL)

	b, err := bot.New(cfg, func(sender handlers.Sender) *handlers.Handler {
		return handlers.NewHandler(sender, sessions, synth, states)
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	logger.Info("telegram bot initialized successfully")
	return b, nil
}
