package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/integration/llm"
	"github.com/futig/proposal-backend/internal/integration/llm/llmtest"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("503 service unavailable")

func testOptions() llm.RouterOptions {
	return llm.RouterOptions{
		Retry:         pkgRetry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		CallTimeout:   time.Second,
		StreamTimeout: time.Second,
	}
}

func newRouter(t *testing.T, cfg entity.RouterConfig, opts llm.RouterOptions, fakes ...*llmtest.Fake) *llm.Router {
	t.Helper()
	providers := make(map[string]llm.Provider, len(fakes))
	for _, f := range fakes {
		providers[f.ID()] = f
	}
	r, err := llm.NewRouter(cfg, providers, opts)
	require.NoError(t, err)
	return r
}

func chainConfig(ids ...string) entity.RouterConfig {
	cfg := entity.RouterConfig{}
	for i, id := range ids {
		cfg.Providers = append(cfg.Providers, entity.ProviderConfig{ID: id, Kind: entity.ProviderKindMock, Priority: i + 1})
	}
	return cfg
}

func retryable(id string) llmtest.Step {
	return llmtest.Step{Err: entity.NewRetryableError(id, errUnavailable)}
}

func proposalRequest(content string) *entity.LLMRequest {
	return &entity.LLMRequest{
		Purpose:  entity.LLMPurposeProposal,
		Messages: []entity.ChatMessage{{Role: entity.RoleUser, Content: content}},
	}
}

func TestRouter_FallsBackInPriorityOrder(t *testing.T) {
	a := llmtest.New("A", retryable("A"))
	b := llmtest.New("B", retryable("B"))
	c := llmtest.New("C", llmtest.Step{Text: "draft"})
	r := newRouter(t, chainConfig("A", "B", "C"), testOptions(), a, b, c)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "draft", resp.Text)
	assert.Equal(t, "C", resp.Provider)
	assert.Equal(t, 2, a.Calls(), "retryable failure is retried exactly once")
	assert.Equal(t, 2, b.Calls())
	assert.Equal(t, 1, c.Calls())

	require.Len(t, resp.Failures, 2)
	assert.Equal(t, "A", resp.Failures[0].Provider)
	assert.Equal(t, "B", resp.Failures[1].Provider)
	for _, f := range resp.Failures {
		assert.True(t, f.Retryable)
		assert.Equal(t, 2, f.Attempts)
		assert.Contains(t, f.Reason, "503")
	}
}

func TestRouter_ExhaustionCarriesOrderedDiagnostics(t *testing.T) {
	a := llmtest.New("A", retryable("A"))
	b := llmtest.New("B", retryable("B"))
	c := llmtest.New("C", retryable("C"))
	r := newRouter(t, chainConfig("A", "B", "C"), testOptions(), a, b, c)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.Error(t, err)

	var exhausted *entity.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.False(t, exhausted.Aborted)
	require.Len(t, exhausted.Failures, 3)
	for i, id := range []string{"A", "B", "C"} {
		assert.Equal(t, id, exhausted.Failures[i].Provider)
		assert.Equal(t, 2, exhausted.Failures[i].Attempts)
		assert.True(t, exhausted.Failures[i].Retryable)
		assert.Contains(t, exhausted.Failures[i].Reason, "503")
	}
	assert.Equal(t, entity.KindProvidersExhausted, entity.KindOf(err))
	assert.ErrorIs(t, err, entity.ErrAllProvidersExhausted)
}

func TestRouter_RetriesOnceThenSucceeds(t *testing.T) {
	a := llmtest.New("A", retryable("A"), llmtest.Step{Text: "second time lucky"})
	b := llmtest.New("B", llmtest.Step{Text: "unused"})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "A", resp.Provider)
	assert.Empty(t, resp.Failures)
	assert.Equal(t, 2, a.Calls())
	assert.Zero(t, b.Calls())
}

func TestRouter_NonRetryableFailureAborts(t *testing.T) {
	a := llmtest.New("A", llmtest.Step{Err: entity.NewFatalError("A", errors.New("401 unauthorized"))})
	b := llmtest.New("B", llmtest.Step{Text: "unused"})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))

	var exhausted *entity.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.True(t, exhausted.Aborted)
	require.Len(t, exhausted.Failures, 1)
	assert.False(t, exhausted.Failures[0].Retryable)
	assert.Equal(t, 1, a.Calls())
	assert.Zero(t, b.Calls())
}

func TestRouter_EmptyResponseIsRetryable(t *testing.T) {
	a := llmtest.New("A", llmtest.Step{Text: "   "})
	b := llmtest.New("B", llmtest.Step{Text: "real"})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider)
	assert.Equal(t, 2, a.Calls())
}

func TestRouter_UnclassifiedErrorIsRetryable(t *testing.T) {
	a := llmtest.New("A", llmtest.Step{Err: errors.New("connection reset")})
	b := llmtest.New("B", llmtest.Step{Text: "ok"})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider)
	assert.Equal(t, 2, a.Calls())
}

func TestRouter_PerProviderTimeoutFallsBack(t *testing.T) {
	slow := llmtest.New("slow", llmtest.Step{Text: "too late"}).WithDelay(200 * time.Millisecond)
	fast := llmtest.New("fast", llmtest.Step{Text: "in time"})
	cfg := chainConfig("slow", "fast")
	cfg.Providers[0].Timeout = 10 * time.Millisecond
	r := newRouter(t, cfg, testOptions(), slow, fast)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Provider)
	assert.Equal(t, 2, slow.Calls())
}

func TestRouter_CallerCancellationIsNotExhaustion(t *testing.T) {
	slow := llmtest.New("slow", llmtest.Step{Text: "late"}).WithDelay(time.Second)
	other := llmtest.New("other", llmtest.Step{Text: "unused"})
	r := newRouter(t, chainConfig("slow", "other"), testOptions(), slow, other)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Complete(ctx, proposalRequest("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, entity.ErrAllProvidersExhausted)
	assert.Zero(t, other.Calls())
}

func TestRouter_SizePredicates(t *testing.T) {
	short := llmtest.New("short", llmtest.Step{Text: "from short"})
	long := llmtest.New("long", llmtest.Step{Text: "from long"})
	cfg := entity.RouterConfig{Providers: []entity.ProviderConfig{
		{ID: "short", Kind: entity.ProviderKindMock, Priority: 1, MaxInputChars: 50},
		{ID: "long", Kind: entity.ProviderKindMock, Priority: 2, MinInputChars: 51},
	}}
	r := newRouter(t, cfg, testOptions(), short, long)

	resp, err := r.Complete(context.Background(), proposalRequest("brief"))
	require.NoError(t, err)
	assert.Equal(t, "short", resp.Provider)

	resp, err = r.Complete(context.Background(), proposalRequest(strings.Repeat("x", 80)))
	require.NoError(t, err)
	assert.Equal(t, "long", resp.Provider)
}

func TestRouter_NoProviderAcceptsInput(t *testing.T) {
	tiny := llmtest.New("tiny", llmtest.Step{Text: "x"})
	cfg := entity.RouterConfig{Providers: []entity.ProviderConfig{
		{ID: "tiny", Kind: entity.ProviderKindMock, MaxInputChars: 3},
	}}
	r := newRouter(t, cfg, testOptions(), tiny)

	_, err := r.Complete(context.Background(), proposalRequest("too long"))
	assert.ErrorIs(t, err, entity.ErrNoProviders)
	assert.Zero(t, tiny.Calls())
}

func TestRouter_PurposeMatchFirstDefaultLast(t *testing.T) {
	def := llmtest.New("def", retryable("def"))
	writer := llmtest.New("writer", retryable("writer"))
	asker := llmtest.New("asker", retryable("asker"))
	cfg := entity.RouterConfig{
		DefaultProvider: "def",
		Providers: []entity.ProviderConfig{
			{ID: "def", Kind: entity.ProviderKindMock, Priority: 0, Purposes: []entity.LLMPurpose{entity.LLMPurposeQuestion}},
			{ID: "writer", Kind: entity.ProviderKindMock, Priority: 1, Purposes: []entity.LLMPurpose{entity.LLMPurposeProposal}},
			{ID: "asker", Kind: entity.ProviderKindMock, Priority: 2, Purposes: []entity.LLMPurpose{entity.LLMPurposeQuestion}},
		},
	}
	r := newRouter(t, cfg, testOptions(), def, writer, asker)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))

	var exhausted *entity.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	order := make([]string, 0, len(exhausted.Failures))
	for _, f := range exhausted.Failures {
		order = append(order, f.Provider)
	}
	assert.Equal(t, []string{"writer", "asker", "def"}, order)
}

func TestRouter_DefaultIsPrimaryWhenNothingMatches(t *testing.T) {
	first := llmtest.New("first", llmtest.Step{Text: "first"})
	def := llmtest.New("def", llmtest.Step{Text: "default"})
	cfg := entity.RouterConfig{
		DefaultProvider: "def",
		Providers: []entity.ProviderConfig{
			{ID: "first", Kind: entity.ProviderKindMock, Priority: 1, Purposes: []entity.LLMPurpose{entity.LLMPurposeValidation}},
			{ID: "def", Kind: entity.ProviderKindMock, Priority: 2, Purposes: []entity.LLMPurpose{entity.LLMPurposeValidation}},
		},
	}
	r := newRouter(t, cfg, testOptions(), first, def)

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "def", resp.Provider)
}

func TestRouter_UnhealthyProviderIsSkipped(t *testing.T) {
	a := llmtest.New("A", retryable("A"))
	b := llmtest.New("B", llmtest.Step{Text: "ok"})
	opts := testOptions()
	opts.HealthThreshold = 2
	opts.HealthCooldown = time.Hour
	r := newRouter(t, chainConfig("A", "B"), opts, a, b)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.False(t, r.Healthy("A"))

	resp, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "B", resp.Provider)
	assert.Equal(t, 2, a.Calls(), "provider in cooldown is not called again")
}

func TestRouter_ProviderDefaultsFillRequest(t *testing.T) {
	a := llmtest.New("A", llmtest.Step{Text: "ok"})
	temp := float32(0.3)
	cfg := chainConfig("A")
	cfg.Providers[0].Temperature = &temp
	cfg.Providers[0].MaxTokens = 512
	r := newRouter(t, cfg, testOptions(), a)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)

	reqs := a.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Temperature)
	assert.InDelta(t, 0.3, *reqs[0].Temperature, 1e-6)
	assert.Equal(t, 512, reqs[0].MaxTokens)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := testOptions()
	opts.Metrics = llm.NewMetrics(reg)
	a := llmtest.New("A", retryable("A"))
	b := llmtest.New("B", llmtest.Step{Text: "ok"})
	r := newRouter(t, chainConfig("A", "B"), opts, a, b)

	_, err := r.Complete(context.Background(), proposalRequest("hello"))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "proposal_llm_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per provider and outcome")

	count, err = testutil.GatherAndCount(reg, "proposal_llm_fallbacks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func collect(t *testing.T, r *llm.Router, ctx context.Context, req *entity.LLMRequest) (string, []string, error) {
	t.Helper()
	var text strings.Builder
	var providers []string
	for chunk, err := range r.Stream(ctx, req) {
		if err != nil {
			return text.String(), providers, err
		}
		text.WriteString(chunk.Text)
		providers = append(providers, chunk.Provider)
	}
	return text.String(), providers, nil
}

func TestRouterStream_FallsBackBeforeFirstToken(t *testing.T) {
	a := llmtest.New("A").WithStream(llmtest.StreamStep{Err: entity.NewRetryableError("A", errUnavailable)})
	b := llmtest.New("B").WithStream(llmtest.StreamStep{Tokens: []string{"Hello ", "world"}})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	text, providers, err := collect(t, r, context.Background(), proposalRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, []string{"B", "B"}, providers)
	assert.Equal(t, 2, a.StreamCalls())
}

func TestRouterStream_FirstChunkCarriesEarlierFailures(t *testing.T) {
	a := llmtest.New("A").WithStream(llmtest.StreamStep{Err: entity.NewRetryableError("A", errUnavailable)})
	b := llmtest.New("B").WithStream(llmtest.StreamStep{Err: entity.NewRetryableError("B", errUnavailable)})
	c := llmtest.New("C").WithStream(llmtest.StreamStep{Tokens: []string{"one ", "two"}})
	r := newRouter(t, chainConfig("A", "B", "C"), testOptions(), a, b, c)

	var chunks []entity.LLMChunk
	for chunk, err := range r.Stream(context.Background(), proposalRequest("hi")) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 2)
	require.Len(t, chunks[0].Failures, 2)
	assert.Equal(t, "A", chunks[0].Failures[0].Provider)
	assert.Equal(t, "B", chunks[0].Failures[1].Provider)
	assert.Empty(t, chunks[1].Failures)
}

func TestRouterStream_MidStreamFailureInterrupts(t *testing.T) {
	a := llmtest.New("A").WithStream(llmtest.StreamStep{
		Tokens: []string{"partial ", "draft"},
		Err:    entity.NewRetryableError("A", errUnavailable),
	})
	b := llmtest.New("B").WithStream(llmtest.StreamStep{Tokens: []string{"never"}})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	text, _, err := collect(t, r, context.Background(), proposalRequest("hi"))
	require.Error(t, err)
	assert.Equal(t, "partial draft", text)

	var interrupted *entity.StreamInterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, "A", interrupted.Provider)
	assert.Equal(t, 2, interrupted.Emitted)
	assert.Equal(t, entity.KindStreamInterrupted, entity.KindOf(err))
	assert.Equal(t, 1, a.StreamCalls(), "no retry after the first token")
	assert.Zero(t, b.StreamCalls(), "no fallback after the first token")
}

func TestRouterStream_ConsumerStopEndsQuietly(t *testing.T) {
	a := llmtest.New("A").WithStream(llmtest.StreamStep{Tokens: []string{"one ", "two ", "three"}})
	r := newRouter(t, chainConfig("A"), testOptions(), a)

	var got []string
	for chunk, err := range r.Stream(context.Background(), proposalRequest("hi")) {
		require.NoError(t, err)
		got = append(got, chunk.Text)
		break
	}
	assert.Equal(t, []string{"one "}, got)
	assert.Equal(t, 1, a.StreamCalls())
}

func TestRouterStream_ExhaustedBeforeAnyToken(t *testing.T) {
	a := llmtest.New("A").WithStream(llmtest.StreamStep{Err: entity.NewRetryableError("A", errUnavailable)})
	b := llmtest.New("B").WithStream(llmtest.StreamStep{})
	r := newRouter(t, chainConfig("A", "B"), testOptions(), a, b)

	text, _, err := collect(t, r, context.Background(), proposalRequest("hi"))
	assert.Empty(t, text)

	var exhausted *entity.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, "A", exhausted.Failures[0].Provider)
	assert.Equal(t, "B", exhausted.Failures[1].Provider)
}

func TestNewRouter_RejectsMissingImplementation(t *testing.T) {
	_, err := llm.NewRouter(chainConfig("A"), map[string]llm.Provider{}, testOptions())
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)

	_, err = llm.NewRouter(entity.RouterConfig{}, nil, testOptions())
	assert.ErrorIs(t, err, entity.ErrNoProviders)
}
