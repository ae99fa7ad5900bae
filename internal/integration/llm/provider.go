package llm

import (
	"context"
	"errors"
	"iter"

	"github.com/futig/proposal-backend/internal/entity"
	pkghttp "github.com/futig/proposal-backend/pkg/http"
)

// Provider is the closed contract every LLM backend implements. Failures must be
// *entity.ProviderError values tagged retryable or not; the Router relies on it.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req *entity.LLMRequest) (string, error)
	Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[string, error]
}

var (
	errEmptyResponse = errors.New("provider returned an empty response")
)

// classifyStatus maps an HTTP status from a provider API onto the retry policy.
func classifyStatus(providerID string, status int, err error) *entity.ProviderError {
	if pkghttp.IsRetryableStatus(status) {
		return entity.NewRetryableError(providerID, err)
	}
	return entity.NewFatalError(providerID, err)
}

// classifyContext handles errors caused by deadlines and cancellation:
// an expired per-call deadline is a timeout and worth retrying, a cancelled caller is not.
func classifyContext(providerID string, err error) (*entity.ProviderError, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return entity.NewRetryableError(providerID, err), true
	case errors.Is(err, context.Canceled):
		return entity.NewFatalError(providerID, err), true
	default:
		return nil, false
	}
}
