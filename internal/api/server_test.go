package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	proposalapi "github.com/futig/proposal-backend/internal/api/proposal"
	sessionapi "github.com/futig/proposal-backend/internal/api/session"
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
	"go.uber.org/zap"
)

type callbackSink struct {
	mu     sync.Mutex
	events []string
}

func (c *callbackSink) ProposalCreated(_ context.Context, _ entity.CallbackTarget, _ *entity.GenerateProposalResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, string(entity.CallbackEventTypeProposalCreated))
}

func (c *callbackSink) ProposalFailed(_ context.Context, _ entity.CallbackTarget, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, string(entity.CallbackEventTypeError))
}

type testServer struct {
	handler   http.Handler
	synth     *proposal.Synthesizer
	callbacks *callbackSink
}

func newTestServer(t *testing.T, provider *llmtest.Fake) *testServer {
	t.Helper()
	router, err := llm.NewRouter(
		entity.RouterConfig{Providers: []entity.ProviderConfig{{ID: provider.ID(), Kind: entity.ProviderKindMock, Priority: 1}}},
		map[string]llm.Provider{provider.ID(): provider},
		llm.RouterOptions{
			Retry:         pkgRetry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
			CallTimeout:   time.Second,
			StreamTimeout: time.Second,
		},
	)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	locks := lock.NewKeyed()
	catalog := question.DefaultCatalog()
	requests := validator.NewValidator()
	callbacks := &callbackSink{}

	sessions := session.NewUsecase(store, locks, requests, validator.NewAnswerValidator(),
		question.NewSelector(catalog, router, time.Minute))
	synth := proposal.NewSynthesizer(store, store, locks, router, catalog, callbacks, proposal.Options{})

	handler := SetupRouter(
		sessionapi.NewHandler(sessions),
		proposalapi.NewHandler(synth, requests),
		RouterConfig{RequestTimeout: 5 * time.Second},
		zap.NewNop(),
	)
	return &testServer{handler: handler, synth: synth, callbacks: callbacks}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/sessions", entity.CreateSessionRequest{UserID: "u1", UserName: "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entity.CreateSessionResponse](t, rec).SessionID
}

func TestAPI_InterviewAndGenerate(t *testing.T) {
	s := newTestServer(t, llmtest.New("p", llmtest.Step{Text: "## Executive Summary\nShip it."}))
	id := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "budget", Answer: "$50,000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	answer := decode[entity.SubmitAnswerResponse](t, rec)
	assert.True(t, answer.Success)
	require.NotNil(t, answer.NextQuestion)
	assert.Equal(t, "project_name", answer.NextQuestion.Key)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/questions/unanswered", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unanswered := decode[struct {
		Questions []entity.Question `json:"questions"`
	}](t, rec)
	assert.Len(t, unanswered.Questions, 6)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/proposals", entity.GenerateProposalRequest{Format: "brief", IncludeMetadata: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	generated := decode[entity.GenerateProposalResponse](t, rec)
	assert.Equal(t, 1, generated.Version)
	assert.Equal(t, entity.ProposalFormatBrief, generated.Format)
	require.NotNil(t, generated.Metadata)
	assert.Len(t, generated.Metadata.Sources, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.SessionStatusGenerating, decode[entity.SessionDTO](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/latest?export=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "proposal-"+id+"-v1.md")
	assert.Contains(t, rec.Body.String(), "## Executive Summary")

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[struct {
		Versions []entity.ProposalVersionDTO `json:"versions"`
	}](t, rec)
	require.Len(t, versions.Versions, 1)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.SessionStatusComplete, decode[entity.SessionDTO](t, rec).Status)
}

func TestAPI_ErrorKinds(t *testing.T) {
	s := newTestServer(t, llmtest.New("p", llmtest.Step{Text: "proposal"}))
	id := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "budget", Answer: "-5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rejected := decode[entity.SubmitAnswerResponse](t, rec)
	assert.False(t, rejected.Success)
	assert.Equal(t, entity.KindValidation, rejected.Kind)
	assert.NotEmpty(t, rejected.Message)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/proposals", entity.GenerateProposalRequest{Format: "brief"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, entity.KindInsufficientData, decode[entity.ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/proposals", entity.GenerateProposalRequest{Format: "sonnet"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, entity.KindNotFound, decode[entity.ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/abandon", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "budget", Answer: "100"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, entity.KindConflict, decode[entity.ErrorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, entity.KindInvalidState, decode[entity.ErrorResponse](t, rec).Kind)
}

func TestAPI_StreamSSE(t *testing.T) {
	s := newTestServer(t, llmtest.New("p").WithStream(llmtest.StreamStep{Tokens: []string{"## Budget\n", "Fifty thousand."}}))
	id := s.createSession(t)
	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "budget", Answer: "50000"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/stream?format=brief", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "data: ## Budget\ndata: \n\n")
	assert.Contains(t, body, "data: Fifty thousand.\n\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"), body)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "## Budget\nFifty thousand.", decode[entity.ProposalDraft](t, rec).Content)
}

func TestAPI_StreamPreconditionIsJSON(t *testing.T) {
	s := newTestServer(t, llmtest.New("p").WithStream(llmtest.StreamStep{Tokens: []string{"x"}}))
	id := s.createSession(t)

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/stream", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, entity.KindInsufficientData, decode[entity.ErrorResponse](t, rec).Kind)
}

func TestAPI_StreamFailureEndsWithErrorEvent(t *testing.T) {
	s := newTestServer(t, llmtest.New("p").WithStream(llmtest.StreamStep{
		Tokens: []string{"partial"},
		Err:    entity.NewRetryableError("p", assert.AnError),
	}))
	id := s.createSession(t)
	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "budget", Answer: "50000"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/proposals/stream", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "data: partial\n\n")
	assert.Contains(t, body, "data: [ERROR] ")
	assert.NotContains(t, body, "[DONE]")
}

func TestAPI_GenerateWithCallbackIsAccepted(t *testing.T) {
	s := newTestServer(t, llmtest.New("p", llmtest.Step{Text: "proposal"}))
	id := s.createSession(t)
	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/answers", entity.SubmitAnswerRequest{Question: "timeline", Answer: "3 months"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/proposals", entity.GenerateProposalRequest{
		Format:      "executive",
		CallbackURL: "http://hooks.example.test/proposal",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, rec)["request_id"])

	require.NoError(t, s.synth.Wait(context.Background()))
	s.callbacks.mu.Lock()
	defer s.callbacks.mu.Unlock()
	assert.Equal(t, []string{string(entity.CallbackEventTypeProposalCreated)}, s.callbacks.events)
}

func TestAPI_FormatsHealthMetrics(t *testing.T) {
	s := newTestServer(t, llmtest.New("p", llmtest.Step{Text: "x"}))

	rec := s.do(t, http.MethodGet, "/api/v1/formats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	formats := decode[struct {
		Formats []proposal.FormatInfo `json:"formats"`
	}](t, rec)
	require.Len(t, formats.Formats, 4)
	assert.Equal(t, entity.ProposalFormatFormal, formats.Formats[3].Format)
	assert.Len(t, formats.Formats[3].Sections, 10)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "proposal_http_requests_total")
}
