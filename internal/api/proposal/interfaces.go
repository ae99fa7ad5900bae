package proposal

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
)

type Synthesizer interface {
	Generate(ctx context.Context, sessionID string, format entity.ProposalFormat) (*entity.ProposalDraft, error)
	GenerateAsync(ctx context.Context, sessionID string, format entity.ProposalFormat, callbackURL string, includeMetadata bool) (string, error)
	Stream(ctx context.Context, sessionID string, format entity.ProposalFormat) (*proposal.ProposalStream, error)
	Latest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error)
	Versions(ctx context.Context, sessionID string) ([]*entity.ProposalDraft, error)
}
