package question

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/integration/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answered(t *testing.T, keys ...string) *entity.Session {
	t.Helper()
	sess := entity.NewSession("s1", entity.User{ID: "u", Name: "Test"}, nil, time.Now())
	for _, k := range keys {
		sess.PutAnswer(&entity.Answer{QuestionKey: k, Question: k, Value: "answer to " + k, QuestionType: entity.QuestionTypeGeneral, CreatedAt: time.Now()})
	}
	return sess
}

func ids(qs []entity.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestCatalog_UnansweredOrdersByImportanceStable(t *testing.T) {
	c := DefaultCatalog()

	got := ids(c.Unanswered(nil))
	assert.Equal(t, []string{"project_name", "project_goals", "scope", "budget", "timeline", "stakeholders", "success_criteria"}, got)

	got = ids(c.Unanswered([]string{"project_name", "scope"}))
	assert.Equal(t, []string{"project_goals", "budget", "timeline", "stakeholders", "success_criteria"}, got)
}

func TestCatalog_LooseMatch(t *testing.T) {
	c := DefaultCatalog()

	// case-insensitive substring on the id
	got := ids(c.Unanswered([]string{"Revised BUDGET figures"}))
	assert.NotContains(t, got, "budget")

	// the full question text embedded in a longer key also counts
	got = ids(c.Unanswered([]string{"Follow up: what is the desired timeline or deadline for this project? (again)"}))
	assert.NotContains(t, got, "timeline")
	assert.Len(t, got, 6)
}

func TestCatalog_LookupIsExact(t *testing.T) {
	c := DefaultCatalog()

	q, ok := c.Lookup("BUDGET")
	require.True(t, ok)
	assert.Equal(t, entity.QuestionTypeBudget, q.Type)

	q, ok = c.Lookup("What is the desired timeline or deadline for this project?")
	require.True(t, ok)
	assert.Equal(t, "timeline", q.ID)

	_, ok = c.Lookup("How flexible is the budget?")
	assert.False(t, ok)
}

func TestNewCatalog_RejectsBadEntries(t *testing.T) {
	_, err := NewCatalog([]entity.Question{{ID: "a", Text: "A?"}, {ID: "a", Text: "B?"}})
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)

	_, err = NewCatalog([]entity.Question{{ID: "", Text: "A?"}})
	assert.ErrorIs(t, err, entity.ErrMissingField)
}

func TestSelector_CatalogBeforeDynamic(t *testing.T) {
	calls := 0
	router := llmtest.CompleteFunc(func(context.Context, *entity.LLMRequest) (*entity.LLMResponse, error) {
		calls++
		return &entity.LLMResponse{Text: "What else?"}, nil
	})
	s := NewSelector(DefaultCatalog(), router, time.Minute)

	next := s.Next(context.Background(), answered(t))
	require.NotNil(t, next)
	assert.Equal(t, "project_name", next.Key)
	assert.Equal(t, entity.QuestionSourceCatalog, next.Source)
	assert.Equal(t, 10, next.Importance)
	assert.Zero(t, calls)
}

func TestSelector_DynamicAfterCatalogExhausted(t *testing.T) {
	var seen *entity.LLMRequest
	router := llmtest.CompleteFunc(func(_ context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error) {
		seen = req
		return &entity.LLMResponse{Text: "  Which integrations does the system need?  ", Provider: "p"}, nil
	})
	s := NewSelector(DefaultCatalog(), router, time.Minute)
	sess := answered(t, "project_name", "project_goals", "budget", "timeline", "stakeholders", "success_criteria", "scope")

	next := s.Next(context.Background(), sess)
	require.NotNil(t, next)
	assert.Equal(t, entity.QuestionSourceDynamic, next.Source)
	assert.Equal(t, "Which integrations does the system need?", next.Text)

	require.NotNil(t, seen)
	assert.Equal(t, entity.LLMPurposeQuestion, seen.Purpose)
	assert.Equal(t, entity.RoleSystem, seen.Messages[0].Role)
	assert.Len(t, seen.Messages, len(sess.History)+2)
	assert.Equal(t, followUpDirective, seen.Messages[len(seen.Messages)-1].Content)
}

func TestSelector_SkippedKeysArePassedOver(t *testing.T) {
	var seen *entity.LLMRequest
	router := llmtest.CompleteFunc(func(_ context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error) {
		seen = req
		return &entity.LLMResponse{Text: "What are the main risks?"}, nil
	})
	s := NewSelector(DefaultCatalog(), router, time.Minute)
	sess := answered(t, "project_name", "project_goals", "budget", "timeline", "stakeholders")

	next := s.Next(context.Background(), sess, "scope")
	require.NotNil(t, next)
	assert.Equal(t, "success_criteria", next.Key)
	assert.Nil(t, seen)

	next = s.Next(context.Background(), sess, "scope", "success_criteria", entity.DefaultQuestion, "Any deadlines?")
	require.NotNil(t, next)
	assert.Equal(t, entity.QuestionSourceDynamic, next.Source)
	assert.Equal(t, "What are the main risks?", next.Text)

	require.NotNil(t, seen)
	assert.Len(t, seen.Messages, len(sess.History)+3)
	avoid := seen.Messages[len(seen.Messages)-2]
	assert.Equal(t, entity.RoleUser, avoid.Role)
	assert.Equal(t, skippedPreamble+"\n- Any deadlines?", avoid.Content)
}

func TestSelector_DynamicQuestionIsCached(t *testing.T) {
	calls := 0
	router := llmtest.CompleteFunc(func(context.Context, *entity.LLMRequest) (*entity.LLMResponse, error) {
		calls++
		return &entity.LLMResponse{Text: "Any risks?"}, nil
	})
	s := NewSelector(DefaultCatalog(), router, time.Minute)
	sess := answered(t, "project_name", "project_goals", "budget", "timeline", "stakeholders", "success_criteria", "scope")

	s.Next(context.Background(), sess)
	s.Next(context.Background(), sess)
	assert.Equal(t, 1, calls)

	sess.PutAnswer(&entity.Answer{QuestionKey: "Any risks?", Question: "Any risks?", Value: "none known", CreatedAt: time.Now()})
	s.Next(context.Background(), sess)
	assert.Equal(t, 2, calls, "new history invalidates the cache key")
}

func TestSelector_ReturnsNilOnFailure(t *testing.T) {
	full := answered(t, "project_name", "project_goals", "budget", "timeline", "stakeholders", "success_criteria", "scope")

	failing := llmtest.CompleteFunc(func(context.Context, *entity.LLMRequest) (*entity.LLMResponse, error) {
		return nil, errors.New("all down")
	})
	assert.Nil(t, NewSelector(DefaultCatalog(), failing, time.Minute).Next(context.Background(), full))

	assert.Nil(t, NewSelector(DefaultCatalog(), nil, time.Minute).Next(context.Background(), full))

	fallback := entity.DefaultNextQuestion()
	assert.Equal(t, "Is there any additional information you would like to provide for the proposal?", fallback.Text)
	assert.Equal(t, entity.QuestionSourceDefault, fallback.Source)
}

func TestTrimQuestion(t *testing.T) {
	short := "What is the deadline?"
	assert.Equal(t, short, TrimQuestion("  "+short+" "))

	verbose := "Thanks for all the detail so far. " + strings.Repeat("It helps a lot. ", 10) +
		"What is the single most important deliverable? Also consider the rest."
	assert.Equal(t, "What is the single most important deliverable?", TrimQuestion(verbose))

	noQuestion := strings.Repeat("word ", 60)
	got := TrimQuestion(noQuestion)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxQuestionLength+3, len([]rune(got)))
}
