package proposal

import (
	"context"
	"fmt"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// GenerateAsync checks preconditions, then generates in the background and
// reports the outcome to callbackURL. The returned request id tags both the
// log lines and the callback.
func (s *Synthesizer) GenerateAsync(
	ctx context.Context,
	sessionID string,
	format entity.ProposalFormat,
	callbackURL string,
	includeMetadata bool,
) (string, error) {
	if s.callbacks == nil {
		return "", entity.ErrCallbacksDisabled
	}
	if callbackURL == "" {
		return "", fmt.Errorf("%w: callback_url", entity.ErrMissingField)
	}

	requestID := uuid.NewString()
	ctx = logger.AddFields(logger.WithSession(ctx, sessionID),
		zap.String("format", string(format)),
		zap.String("request_id", requestID),
	)

	p, err := s.prepare(ctx, sessionID, format)
	if err != nil {
		return "", err
	}

	target := entity.CallbackTarget{URL: callbackURL, RequestID: requestID, SessionID: sessionID, Format: format}
	bg := logger.WithAction(logger.Detach(ctx), "generate_proposal_async")
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		draft, err := s.generate(bg, p)
		if err != nil {
			ctxzap.Error(bg, "async proposal generation failed", zap.Error(err))
			s.callbacks.ProposalFailed(bg, target, err)
			return
		}
		s.callbacks.ProposalCreated(bg, target, ToGenerateResponse(draft, includeMetadata))
	}()

	ctxzap.Info(ctx, "async proposal generation started")
	return requestID, nil
}

// Wait blocks until background generations finish or ctx ends.
func (s *Synthesizer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
