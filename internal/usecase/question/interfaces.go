package question

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
)

type LLMRouter interface {
	Complete(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error)
}
