package repository

import (
	"context"

	"github.com/futig/proposal-backend/internal/entity"
)

// SessionRepository persists sessions, their answers and chat history.
// Status rules are enforced by the caller; the repository only stores.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *entity.Session) error
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	// SaveAnswer upserts the answer by key, keeping its original position, and
	// appends the question/answer turns to the history.
	SaveAnswer(ctx context.Context, sessionID string, answer *entity.Answer) error
	UpdateSessionStatus(ctx context.Context, id string, status entity.SessionStatus) error
}

// HistoryStore is the append-only store of proposal drafts.
type HistoryStore interface {
	// Append assigns the next version (max + 1) and stores the draft.
	// Concurrent appends for one session never share a version.
	Append(ctx context.Context, draft *entity.ProposalDraft) (*entity.ProposalDraft, error)
	GetLatest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error)
	ListVersions(ctx context.Context, sessionID string) ([]*entity.ProposalDraft, error)
}

// Store is what a storage driver provides.
type Store interface {
	SessionRepository
	HistoryStore
	Close() error
}
