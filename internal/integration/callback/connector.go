package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/integration/common"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	pkghttp "github.com/futig/proposal-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const eventHeader = "X-Proposal-Event"

// Connector posts asynchronous generation outcomes to caller supplied URLs.
type Connector struct {
	retry     pkgRetry.RetryConfig
	connector *pkghttp.Connector
	now       func() time.Time
}

func NewConnector(cfg config.CallbackConnectorConfig, logger *zap.Logger) *Connector {
	// zero attempts would mean retrying forever
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = *pkgRetry.DefaultRetryConfig()
	}
	return &Connector{
		retry:     cfg.Retry,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		now:       time.Now,
	}
}

// ProposalCreated delivers a stored draft. Delivery failures are logged, not returned.
func (c *Connector) ProposalCreated(ctx context.Context, target entity.CallbackTarget, data *entity.GenerateProposalResponse) {
	if err := c.Send(ctx, target, entity.CallbackEventTypeProposalCreated, data); err != nil {
		ctxzap.Error(ctx, "proposal callback not delivered", zap.Error(err))
	}
}

// ProposalFailed reports why a generation produced no draft.
func (c *Connector) ProposalFailed(ctx context.Context, target entity.CallbackTarget, cause error) {
	if err := c.Send(ctx, target, entity.CallbackEventTypeError, ErrorData(target, cause)); err != nil {
		ctxzap.Error(ctx, "error callback not delivered", zap.Error(err))
	}
}

// ErrorData describes cause the way the HTTP error body does, including
// per-provider diagnostics when every provider failed.
func ErrorData(target entity.CallbackTarget, cause error) *entity.CallbackErrorData {
	data := &entity.CallbackErrorData{
		Kind:    entity.KindOf(cause),
		Message: cause.Error(),
		Format:  target.Format,
	}
	var exhausted *entity.AllProvidersExhaustedError
	if errors.As(cause, &exhausted) {
		data.Details = map[string]any{"failures": exhausted.Failures, "aborted": exhausted.Aborted}
	}
	return data
}

// Send posts one event, retrying transient failures.
func (c *Connector) Send(ctx context.Context, target entity.CallbackTarget, event entity.CallbackEventType, data any) error {
	body := &entity.CallbackEvent{
		Event:     event,
		RequestID: target.RequestID,
		SessionID: target.SessionID,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(
		zap.String("event_type", string(event)),
		zap.String("callback_url", target.URL),
	))

	opts := []pkghttp.RequestOpt{
		pkghttp.WithURL(target.URL),
		pkghttp.WithHeader("X-Request-ID", target.RequestID),
		pkghttp.WithHeader(eventHeader, string(event)),
	}

	attempts := 0
	err := retry.Do(func() error {
		attempts++
		return c.connector.DoRequest(ctx, http.MethodPost, "", body, nil, opts...)
	}, c.retry.ToRetryOptions(ctx, pkghttp.IsRetryable)...)
	if err != nil {
		return fmt.Errorf("deliver %s callback to %s after %d attempt(s): %w", event, target.URL, attempts, err)
	}

	ctxzap.Info(ctx, "callback delivered", zap.Int("attempts", attempts))
	return nil
}
