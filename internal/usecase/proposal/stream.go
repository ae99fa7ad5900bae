package proposal

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ProposalStream delivers a proposal token by token. The draft is stored only
// when every token has been delivered; a stream that is cancelled or abandoned
// by its consumer stores nothing.
type ProposalStream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	chunks  iter.Seq2[entity.LLMChunk, error]
	persist func(text, provider string) (*entity.ProposalDraft, error)

	mu       sync.Mutex
	consumed bool
	once     sync.Once
	done     chan struct{}
	draft    *entity.ProposalDraft
	err      error
}

func newProposalStream(
	ctx context.Context,
	cancel context.CancelFunc,
	chunks iter.Seq2[entity.LLMChunk, error],
	persist func(text, provider string) (*entity.ProposalDraft, error),
) *ProposalStream {
	return &ProposalStream{
		ctx:     ctx,
		cancel:  cancel,
		chunks:  chunks,
		persist: persist,
		done:    make(chan struct{}),
	}
}

// Tokens returns the sequence of proposal text fragments. A stream has one
// consumer: a second call, or a call after Result, fails with
// ErrStreamConsumed. Breaking out of the loop cancels generation.
func (s *ProposalStream) Tokens() (iter.Seq[string], error) {
	if !s.claim() {
		return nil, entity.ErrStreamConsumed
	}
	return func(yield func(string) bool) {
		s.once.Do(func() { s.run(yield) })
	}, nil
}

// Result waits for the stream to end and returns the stored draft. When no
// one is ranging over the tokens yet, Result drains the stream itself, and a
// sequence obtained earlier from Tokens then yields nothing.
func (s *ProposalStream) Result() (*entity.ProposalDraft, error) {
	s.claim()
	s.once.Do(func() { s.run(func(string) bool { return true }) })
	<-s.done
	return s.draft, s.err
}

// Cancel stops generation. It is safe to call at any time and more than once.
func (s *ProposalStream) Cancel() {
	s.cancel()
}

func (s *ProposalStream) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return false
	}
	s.consumed = true
	return true
}

func (s *ProposalStream) run(yield func(string) bool) {
	defer close(s.done)
	defer s.cancel()

	var (
		text     strings.Builder
		provider string
		tokens   int
	)
	for chunk, err := range s.chunks {
		if err != nil {
			s.err = s.interpret(err)
			s.logEnd(tokens)
			return
		}
		if s.ctx.Err() != nil {
			s.err = fmt.Errorf("%w: %w", entity.ErrStreamCancelled, s.ctx.Err())
			s.logEnd(tokens)
			return
		}
		text.WriteString(chunk.Text)
		provider = chunk.Provider
		tokens++
		if !yield(chunk.Text) {
			s.err = fmt.Errorf("%w: consumer stopped reading", entity.ErrStreamCancelled)
			s.logEnd(tokens)
			return
		}
	}

	if err := s.ctx.Err(); err != nil {
		s.err = fmt.Errorf("%w: %w", entity.ErrStreamCancelled, err)
		s.logEnd(tokens)
		return
	}
	if strings.TrimSpace(text.String()) == "" {
		s.err = &entity.AllProvidersExhaustedError{Failures: []entity.ProviderFailure{{
			Provider: provider, Reason: "empty proposal text", Retryable: true, Attempts: 1,
		}}}
		return
	}
	s.draft, s.err = s.persist(text.String(), provider)
}

// interpret turns a failure caused by our own cancellation into ErrStreamCancelled.
func (s *ProposalStream) interpret(err error) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", entity.ErrStreamCancelled, err)
	}
	return err
}

func (s *ProposalStream) logEnd(tokens int) {
	if IsCancelled(s.err) {
		ctxzap.Info(s.ctx, "proposal stream cancelled, nothing stored", zap.Int("tokens", tokens))
		return
	}
	ctxzap.Error(s.ctx, "proposal stream failed", zap.Int("tokens", tokens), zap.Error(s.err))
}
