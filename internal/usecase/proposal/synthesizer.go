package proposal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/pkg/lock"
	"github.com/futig/proposal-backend/internal/pkg/logger"
	"github.com/futig/proposal-backend/internal/repository"
	"github.com/gowebpki/jcs"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultRelevanceThreshold = 7
	defaultRelevanceTopK      = 5
	defaultMaxTokens          = 4000
)

// Options bound prompt size.
type Options struct {
	// RelevanceThreshold is the answer count above which the relevance filter kicks in.
	RelevanceThreshold int
	RelevanceTopK      int
	MaxTokens          int
}

// Synthesizer turns a session's answers into versioned proposal drafts.
//
// A generation runs in three phases: the prompt is built inside the session's
// exclusive section, the provider is called outside it, and the draft is
// appended after re-entering the section and re-checking the session status.
type Synthesizer struct {
	sessions  repository.SessionRepository
	history   repository.HistoryStore
	locks     *lock.Keyed
	router    LLMRouter
	catalog   Catalog
	callbacks CallbackConnector
	opts      Options
	now       func() time.Time

	// background tracks GenerateAsync work still running.
	background sync.WaitGroup
}

func NewSynthesizer(
	sessions repository.SessionRepository,
	history repository.HistoryStore,
	locks *lock.Keyed,
	router LLMRouter,
	catalog Catalog,
	callbacks CallbackConnector,
	opts Options,
) *Synthesizer {
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = defaultRelevanceThreshold
	}
	if opts.RelevanceTopK <= 0 {
		opts.RelevanceTopK = defaultRelevanceTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Synthesizer{
		sessions:  sessions,
		history:   history,
		locks:     locks,
		router:    router,
		catalog:   catalog,
		callbacks: callbacks,
		opts:      opts,
		now:       time.Now,
	}
}

// Generate produces and stores a new draft. Nothing is stored when it fails.
func (s *Synthesizer) Generate(ctx context.Context, sessionID string, format entity.ProposalFormat) (*entity.ProposalDraft, error) {
	ctx = logger.AddFields(logger.WithSession(ctx, sessionID), zap.String("format", string(format)))

	p, err := s.prepare(ctx, sessionID, format)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, p)
}

func (s *Synthesizer) generate(ctx context.Context, p *plan) (*entity.ProposalDraft, error) {
	started := s.now()
	resp, err := s.router.Complete(ctx, s.request(p))
	if err != nil {
		ctxzap.Error(ctx, "proposal generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate proposal: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, &entity.AllProvidersExhaustedError{Failures: []entity.ProviderFailure{{
			Provider: resp.Provider, Reason: "empty proposal text", Retryable: true, Attempts: 1,
		}}}
	}

	ctxzap.Info(ctx, "proposal text generated",
		zap.String("provider", resp.Provider),
		zap.Int("length", utf8.RuneCountInString(resp.Text)),
		zap.Duration("duration", s.now().Sub(started)),
	)

	return s.persist(ctx, p, resp.Text, resp.Provider)
}

// Stream starts a streaming generation. Preconditions are checked before it
// returns, so a missing session or an empty answer set fails here rather than
// inside the token sequence.
func (s *Synthesizer) Stream(ctx context.Context, sessionID string, format entity.ProposalFormat) (*ProposalStream, error) {
	ctx = logger.AddFields(logger.WithSession(ctx, sessionID),
		zap.String("format", string(format)),
		zap.Bool("stream", true),
	)

	p, err := s.prepare(ctx, sessionID, format)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	persist := func(text, provider string) (*entity.ProposalDraft, error) {
		return s.persist(ctx, p, text, provider)
	}
	return newProposalStream(streamCtx, cancel, s.router.Stream(streamCtx, s.request(p)), persist), nil
}

// Latest returns the newest draft of a session.
func (s *Synthesizer) Latest(ctx context.Context, sessionID string) (*entity.ProposalDraft, error) {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.history.GetLatest(ctx, sessionID)
}

// Versions lists a session's drafts in ascending version order.
func (s *Synthesizer) Versions(ctx context.Context, sessionID string) ([]*entity.ProposalDraft, error) {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.history.ListVersions(ctx, sessionID)
}

// prepare is phase one: status check, answer snapshot and prompt assembly,
// all inside the session's exclusive section.
func (s *Synthesizer) prepare(ctx context.Context, sessionID string, format entity.ProposalFormat) (*plan, error) {
	t, ok := TemplateFor(format)
	if !ok {
		return nil, fmt.Errorf("%w: proposal format %q", entity.ErrInvalidFormat, format)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Status.AcceptsAnswers() {
		return nil, &entity.ConflictError{SessionID: sessionID, Status: session.Status, Operation: "generate proposal for"}
	}
	if len(session.Answers) == 0 {
		return nil, &entity.InsufficientDataError{SessionID: sessionID}
	}

	p := buildPlan(session, s.catalog.ByImportance(), t, s.opts.RelevanceThreshold, s.opts.RelevanceTopK)

	verbatim := 0
	for _, src := range p.sources {
		if src.Verbatim {
			verbatim++
		}
	}
	ctxzap.Debug(ctx, "proposal prompt prepared",
		zap.Int("answers", len(p.sources)),
		zap.Int("verbatim", verbatim),
		zap.Int("prompt_chars", utf8.RuneCountInString(p.messages[1].Content)),
	)
	return p, nil
}

func (s *Synthesizer) request(p *plan) *entity.LLMRequest {
	return &entity.LLMRequest{
		Purpose:   entity.LLMPurposeProposal,
		Messages:  p.messages,
		MaxTokens: s.opts.MaxTokens,
	}
}

// persist is phase three. The status is re-checked because the session may
// have been closed while the provider was working.
func (s *Synthesizer) persist(ctx context.Context, p *plan, text, provider string) (*entity.ProposalDraft, error) {
	unlock := s.locks.Lock(p.sessionID)
	defer unlock()

	session, err := s.sessions.GetSession(ctx, p.sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Status.AcceptsAnswers() {
		ctxzap.Warn(ctx, "session closed during generation, draft discarded",
			zap.String("status", string(session.Status)))
		return nil, &entity.ConflictError{SessionID: p.sessionID, Status: session.Status, Operation: "store proposal for"}
	}

	draft := &entity.ProposalDraft{
		SessionID: p.sessionID,
		Format:    p.template.Format,
		Content:   text,
		Provider:  provider,
		Sources:   p.sources,
		CreatedAt: s.now().UTC(),
	}
	if draft.Digest, err = Digest(draft); err != nil {
		return nil, err
	}

	stored, err := s.history.Append(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("append draft: %w", err)
	}

	if session.Status == entity.SessionStatusActive {
		if err := s.sessions.UpdateSessionStatus(ctx, p.sessionID, entity.SessionStatusGenerating); err != nil {
			return nil, fmt.Errorf("update session status: %w", err)
		}
	}

	ctxzap.Info(ctx, "proposal draft stored",
		zap.Int("version", stored.Version),
		zap.String("provider", provider),
		zap.String("digest", stored.Digest),
	)
	return stored, nil
}

// Digest is the sha256 of the RFC 8785 canonical form of the draft body.
// The version is left out so the same text digests the same at any version.
func Digest(d *entity.ProposalDraft) (string, error) {
	body, err := json.Marshal(struct {
		SessionID string                `json:"session_id"`
		Format    entity.ProposalFormat `json:"format"`
		Content   string                `json:"content"`
		Sources   []entity.DraftSource  `json:"sources"`
	}{d.SessionID, d.Format, d.Content, d.Sources})
	if err != nil {
		return "", fmt.Errorf("marshal draft body: %w", err)
	}
	canonical, err := jcs.Transform(body)
	if err != nil {
		return "", fmt.Errorf("canonicalize draft body: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// IsCancelled reports whether err ended a generation because the caller gave up.
func IsCancelled(err error) bool {
	return errors.Is(err, entity.ErrStreamCancelled) || errors.Is(err, context.Canceled)
}
