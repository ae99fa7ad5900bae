package question

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	maxQuestionLength = 200

	followUpInstruction = `You are a proposal specialist helping gather information for a project proposal.
Based on the previous questions and answers, identify the most important missing information
and ask ONE specific follow-up question to help create a comprehensive proposal.
Focus on gaps in: scope details, budget clarification, timeline specifics, requirements,
key deliverables, or success criteria.
Reply with the question only.`

	followUpDirective = "Based on our conversation so far, what's the most important question I should answer next for the proposal?"

	skippedPreamble = "I would rather not answer these questions, please ask about something else:"
)

// Selector decides what to ask next.
type Selector struct {
	catalog *Catalog
	router  LLMRouter
	cache   *cache.Cache
}

// NewSelector builds a selector. router may be nil, in which case no dynamic
// questions are generated. Generated questions are cached for cacheTTL.
func NewSelector(catalog *Catalog, router LLMRouter, cacheTTL time.Duration) *Selector {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Selector{
		catalog: catalog,
		router:  router,
		cache:   cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (s *Selector) Catalog() *Catalog {
	return s.catalog
}

// Lookup resolves a caller supplied key to a catalog question by exact id or text.
func (s *Selector) Lookup(key string) (entity.Question, bool) {
	return s.catalog.Lookup(key)
}

// Unanswered returns catalog questions the session has not covered yet.
func (s *Selector) Unanswered(sess *entity.Session) []entity.Question {
	return s.catalog.Unanswered(askedQuestions(sess))
}

// Next returns the most important unanswered catalog question, or a generated
// follow-up once the catalog is exhausted. Keys in skipped are passed over: a
// skipped catalog question counts as exhausted, and skipped follow-ups are
// named to the model so it asks about something else. Next returns nil when no
// question could be produced; callers fall back to entity.DefaultNextQuestion.
func (s *Selector) Next(ctx context.Context, sess *entity.Session, skipped ...string) *entity.NextQuestion {
	for _, q := range s.Unanswered(sess) {
		if slices.Contains(skipped, q.ID) {
			continue
		}
		return &entity.NextQuestion{
			Key:        q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Importance: q.Importance,
			Source:     entity.QuestionSourceCatalog,
		}
	}

	text, err := s.followUp(ctx, sess, s.dynamicOnly(skipped))
	if err != nil {
		ctxzap.Warn(ctx, "dynamic question generation failed", zap.Error(err))
		return nil
	}
	if text == "" {
		return nil
	}

	return &entity.NextQuestion{
		Key:    text,
		Text:   text,
		Type:   entity.QuestionTypeGeneral,
		Source: entity.QuestionSourceDynamic,
	}
}

// dynamicOnly drops catalog ids and the default question from skipped.
func (s *Selector) dynamicOnly(skipped []string) []string {
	var out []string
	for _, key := range skipped {
		if _, ok := s.catalog.Lookup(key); ok || key == entity.DefaultQuestion {
			continue
		}
		out = append(out, key)
	}
	return out
}

func (s *Selector) followUp(ctx context.Context, sess *entity.Session, avoid []string) (string, error) {
	if s.router == nil {
		return "", entity.ErrNoProviders
	}

	key := fmt.Sprintf("%s:%d:%d", sess.ID, len(sess.History), len(avoid))
	if cached, ok := s.cache.Get(key); ok {
		ctxzap.Debug(ctx, "dynamic question served from cache")
		return cached.(string), nil
	}

	messages := make([]entity.ChatMessage, 0, len(sess.History)+3)
	messages = append(messages, entity.ChatMessage{Role: entity.RoleSystem, Content: followUpInstruction})
	messages = append(messages, sess.History...)
	if len(avoid) > 0 {
		messages = append(messages, entity.ChatMessage{
			Role:    entity.RoleUser,
			Content: skippedPreamble + "\n- " + strings.Join(avoid, "\n- "),
		})
	}
	messages = append(messages, entity.ChatMessage{Role: entity.RoleUser, Content: followUpDirective})

	resp, err := s.router.Complete(ctx, &entity.LLMRequest{
		Purpose:  entity.LLMPurposeQuestion,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("generate follow-up question: %w", err)
	}

	text := TrimQuestion(resp.Text)
	if text != "" {
		s.cache.Set(key, text, cache.DefaultExpiration)
	}

	ctxzap.Info(ctx, "dynamic question generated",
		zap.String("provider", resp.Provider),
		zap.Int("length", utf8.RuneCountInString(text)),
		zap.Int("avoided", len(avoid)),
	)
	return text, nil
}

// TrimQuestion keeps verbose model output out of the question stream: anything
// longer than 200 characters is cut to its first sentence holding a '?', or
// truncated with an ellipsis when there is none.
func TrimQuestion(raw string) string {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) <= maxQuestionLength {
		return text
	}

	for _, sentence := range strings.Split(text, ".") {
		if idx := strings.Index(sentence, "?"); idx >= 0 {
			if q := strings.TrimSpace(sentence[:idx+1]); q != "?" {
				return q
			}
		}
	}

	return string([]rune(text)[:maxQuestionLength]) + "..."
}

// askedQuestions collects every key and question text the session has recorded.
func askedQuestions(sess *entity.Session) []string {
	out := make([]string, 0, 2*len(sess.AnswerOrder))
	for _, a := range sess.OrderedAnswers() {
		out = append(out, a.QuestionKey)
		if a.Question != "" && a.Question != a.QuestionKey {
			out = append(out, a.Question)
		}
	}
	return out
}
