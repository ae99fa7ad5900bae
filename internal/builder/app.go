package builder

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/futig/proposal-backend/internal/telegram"
	"go.uber.org/zap"
)

// App represents the application with all its components
type App struct {
	server *http.Server
	core   *Core
	logger *zap.Logger
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		a.logger.Error("Server error", zap.Error(err))
		a.core.Close(context.Background())
		return err
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.core.Config.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Shutting down server gracefully")

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error("Server shutdown error", zap.Error(serverErr))
	}
	if err := a.core.Close(ctx); err != nil {
		a.logger.Error("Shutdown error", zap.Error(err))
		return errors.Join(serverErr, err)
	}

	a.logger.Info("Application stopped gracefully")
	return serverErr
}

// BotApp runs the Telegram bot.
type BotApp struct {
	bot    telegram.Bot
	core   *Core
	logger *zap.Logger
}

// Run polls (or listens for webhooks) until SIGINT or SIGTERM.
func (a *BotApp) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.bot.Start(ctx); err != nil {
		a.core.Close(context.Background())
		return err
	}

	errChan := make(chan error, 1)
	var webhook *http.Server
	if a.core.Config.TelegramCfg.UseWebhook {
		// the bot registers its webhook handler on the default mux
		webhook = &http.Server{Addr: a.core.Config.ServerAddr}
		go func() {
			a.logger.Info("Listening for telegram webhooks", zap.String("addr", webhook.Addr))
			if err := webhook.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-errChan:
		a.logger.Error("telegram webhook server error", zap.Error(runErr))
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), a.core.Config.ShutdownTimeout)
	defer stop()
	if webhook != nil {
		webhook.Shutdown(shutdownCtx)
	}
	if err := a.bot.Stop(); err != nil {
		a.logger.Error("error stopping bot", zap.Error(err))
	}
	if err := a.core.Close(shutdownCtx); err != nil {
		a.logger.Error("Shutdown error", zap.Error(err))
	}
	a.logger.Info("telegram bot stopped gracefully")
	return runErr
}
