package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/integration/llm"
	"github.com/futig/proposal-backend/internal/integration/llm/llmtest"
	"github.com/futig/proposal-backend/internal/pkg/lock"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	"github.com/futig/proposal-backend/internal/pkg/validator"
	"github.com/futig/proposal-backend/internal/repository"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
	"github.com/futig/proposal-backend/internal/usecase/question"
	"github.com/futig/proposal-backend/internal/usecase/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	store    *repository.MemoryStore
	sessions *session.SessionUsecase
	synth    *proposal.Synthesizer
}

func newStack(t *testing.T, provider *llmtest.Fake) *stack {
	t.Helper()
	router, err := llm.NewRouter(
		entity.RouterConfig{Providers: []entity.ProviderConfig{{ID: provider.ID(), Kind: entity.ProviderKindMock, Priority: 1}}},
		map[string]llm.Provider{provider.ID(): provider},
		llm.RouterOptions{
			Retry:         pkgRetry.RetryConfig{Attempts: 1, Delay: time.Millisecond, MaxDelay: time.Millisecond},
			CallTimeout:   time.Second,
			StreamTimeout: time.Second,
		},
	)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	locks := lock.NewKeyed()
	catalog := question.DefaultCatalog()
	return &stack{
		store: store,
		sessions: session.NewUsecase(store, locks, validator.NewValidator(), validator.NewAnswerValidator(),
			question.NewSelector(catalog, router, time.Minute)),
		synth: proposal.NewSynthesizer(store, store, locks, router, catalog, nil, proposal.Options{}),
	}
}

func TestInterview_AnswersSkipsAndRejections(t *testing.T) {
	s := newStack(t, llmtest.New("p", llmtest.Step{Text: "## Executive Summary\nApollo ships in Q3."}))
	in := strings.NewReader("Apollo\n:skip\nA mobile app and its admin panel\nlots\n$50,000\n:done\n")
	var out bytes.Buffer

	err := runInterview(context.Background(), in, &out, s.sessions, s.synth, interviewOptions{
		User:   "ada",
		Format: entity.ProposalFormatBrief,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "? What is the name of the project?")
	assert.Contains(t, text, "? What are the main goals and objectives of this project?")
	assert.Contains(t, text, "? What is the scope of work for this project?")
	assert.Contains(t, text, "! Budget must be a valid number")
	assert.Equal(t, 2, strings.Count(text, "? What is the estimated budget for this project?"))
	assert.Contains(t, text, "Apollo ships in Q3.")

	sessionID := strings.Fields(strings.TrimPrefix(text, "Session "))[0]
	sessionID = strings.TrimSuffix(sessionID, ".")
	dto, err := s.sessions.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusComplete, dto.Status)
	require.Len(t, dto.Answers, 3)
	assert.Equal(t, "budget", dto.Answers[2].QuestionKey)
}

func TestInterview_StreamsAndExports(t *testing.T) {
	provider := llmtest.New("p").WithStream(llmtest.StreamStep{Tokens: []string{"## Summary\n", "Ship ", "it."}})
	s := newStack(t, provider)
	path := filepath.Join(t.TempDir(), "proposal.md")
	var out bytes.Buffer

	err := runInterview(context.Background(), strings.NewReader("Apollo\n"), &out, s.sessions, s.synth, interviewOptions{
		User:   "ada",
		Format: entity.ProposalFormatBrief,
		Stream: true,
		Export: entity.ExportMarkdown,
		Out:    path,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "## Summary\nShip it.")
	assert.Equal(t, 1, provider.StreamCalls())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ship it.")
}

func TestInterview_NothingAnswered(t *testing.T) {
	s := newStack(t, llmtest.New("p", llmtest.Step{Text: "unused"}))
	var out bytes.Buffer

	err := runInterview(context.Background(), strings.NewReader(":skip\n:done\n"), &out, s.sessions, s.synth, interviewOptions{
		Format: entity.ProposalFormatBrief,
	})
	assert.ErrorIs(t, err, entity.ErrInsufficientData)
}

func TestPrintProviders(t *testing.T) {
	var out bytes.Buffer
	err := printProviders(&out, entity.RouterConfig{
		DefaultProvider: "primary",
		Providers: []entity.ProviderConfig{
			{ID: "backup", Kind: entity.ProviderKindGateway, Model: "m2", Priority: 2},
			{ID: "primary", Kind: entity.ProviderKindOpenAI, Model: "m1", Priority: 1,
				Purposes: []entity.LLMPurpose{entity.LLMPurposeProposal}},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "primary"))
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "any")
}

func TestPrintFormats(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printFormats(&out))
	for _, f := range entity.ProposalFormats {
		assert.Contains(t, out.String(), string(f))
	}
}
