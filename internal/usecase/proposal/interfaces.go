package proposal

import (
	"context"
	"iter"

	"github.com/futig/proposal-backend/internal/entity"
)

type LLMRouter interface {
	Complete(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error)
	Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[entity.LLMChunk, error]
}

type Catalog interface {
	ByImportance() []entity.Question
}

type CallbackConnector interface {
	ProposalCreated(ctx context.Context, target entity.CallbackTarget, data *entity.GenerateProposalResponse)
	ProposalFailed(ctx context.Context, target entity.CallbackTarget, cause error)
}
