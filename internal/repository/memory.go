package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/google/uuid"
)

var _ Store = &MemoryStore{}

// MemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
	drafts   map[string][]*entity.ProposalDraft
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entity.Session),
		drafts:   make(map[string][]*entity.ProposalDraft),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", entity.ErrInvalidParameter, session.ID)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStore) SaveAnswer(_ context.Context, sessionID string, answer *entity.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return entity.ErrSessionNotFound
	}
	stored := *answer
	session.PutAnswer(&stored)
	return nil
}

func (s *MemoryStore) UpdateSessionStatus(_ context.Context, id string, status entity.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return entity.ErrSessionNotFound
	}
	session.Status = status
	session.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Append(_ context.Context, draft *entity.ProposalDraft) (*entity.ProposalDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[draft.SessionID]; !ok {
		return nil, entity.ErrSessionNotFound
	}

	stored := prepareDraft(draft, s.now)
	versions := s.drafts[draft.SessionID]
	stored.Version = len(versions) + 1
	if n := len(versions); n > 0 {
		stored.Version = versions[n-1].Version + 1
	}
	s.drafts[draft.SessionID] = append(versions, stored)

	return copyDraft(stored), nil
}

func (s *MemoryStore) GetLatest(_ context.Context, sessionID string) (*entity.ProposalDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.drafts[sessionID]
	if len(versions) == 0 {
		return nil, entity.ErrDraftNotFound
	}
	return copyDraft(versions[len(versions)-1]), nil
}

func (s *MemoryStore) ListVersions(_ context.Context, sessionID string) ([]*entity.ProposalDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.drafts[sessionID]
	out := make([]*entity.ProposalDraft, 0, len(versions))
	for _, d := range versions {
		out = append(out, copyDraft(d))
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

// prepareDraft copies a draft and fills the id and timestamp when missing.
func prepareDraft(draft *entity.ProposalDraft, now func() time.Time) *entity.ProposalDraft {
	stored := copyDraft(draft)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now().UTC()
	}
	return stored
}

func copyDraft(d *entity.ProposalDraft) *entity.ProposalDraft {
	c := *d
	c.Sources = append([]entity.DraftSource(nil), d.Sources...)
	return &c
}
