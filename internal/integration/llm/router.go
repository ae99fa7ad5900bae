package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/futig/proposal-backend/internal/entity"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultCallTimeout     = 60 * time.Second
	defaultStreamTimeout   = 5 * time.Minute
	defaultHealthThreshold = 3
	defaultHealthCooldown  = 30 * time.Second
)

// RouterOptions tune retries, deadlines and health tracking.
type RouterOptions struct {
	Retry           pkgRetry.RetryConfig
	CallTimeout     time.Duration
	StreamTimeout   time.Duration
	HealthThreshold int
	HealthCooldown  time.Duration
	Metrics         *Metrics
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		Retry:           *pkgRetry.DefaultRetryConfig(),
		CallTimeout:     defaultCallTimeout,
		StreamTimeout:   defaultStreamTimeout,
		HealthThreshold: defaultHealthThreshold,
		HealthCooldown:  defaultHealthCooldown,
	}
}

type route struct {
	cfg      entity.ProviderConfig
	provider Provider
}

// Router picks a provider per call, retries it once on transient failures and
// falls back through the remaining providers. Its configuration is immutable
// after construction so it is safe for concurrent use.
type Router struct {
	routes    []route
	defaultID string
	opts      RouterOptions
	health    *health
	metrics   *Metrics
}

// NewRouter pairs every configured provider with its implementation.
func NewRouter(cfg entity.RouterConfig, providers map[string]Provider, opts RouterOptions) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		return nil, entity.ErrNoProviders
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaultStreamTimeout
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry.Attempts = 1
	}

	routes := make([]route, 0, len(cfg.Providers))
	for _, pc := range cfg.Sorted() {
		p, ok := providers[pc.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no implementation for provider %s", entity.ErrInvalidParameter, pc.ID)
		}
		routes = append(routes, route{cfg: pc, provider: p})
	}

	return &Router{
		routes:    routes,
		defaultID: cfg.DefaultProvider,
		opts:      opts,
		health:    newHealth(opts.HealthThreshold, opts.HealthCooldown),
		metrics:   opts.Metrics,
	}, nil
}

// Providers lists the configured providers in priority order.
func (r *Router) Providers() []entity.ProviderConfig {
	out := make([]entity.ProviderConfig, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.cfg)
	}
	return out
}

// Healthy reports whether the provider is currently outside its cooldown.
func (r *Router) Healthy(id string) bool {
	return r.health.available(id)
}

// chain orders the candidates for one call: the first provider whose predicate
// matches, then the other eligible providers by priority, with the default last.
func (r *Router) chain(rc entity.RouteContext) []route {
	var eligible []route
	for _, rt := range r.routes {
		if rt.cfg.Accepts(rc) && r.health.available(rt.cfg.ID) {
			eligible = append(eligible, rt)
		}
	}
	// every provider cooling down: try them anyway rather than fail without a call
	if len(eligible) == 0 {
		for _, rt := range r.routes {
			if rt.cfg.Accepts(rc) {
				eligible = append(eligible, rt)
			}
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	primary := -1
	for i, rt := range eligible {
		if rt.cfg.Matches(rc) {
			primary = i
			break
		}
	}
	if primary < 0 {
		for i, rt := range eligible {
			if rt.cfg.ID == r.defaultID {
				primary = i
				break
			}
		}
	}
	if primary < 0 {
		primary = 0
	}

	out := make([]route, 0, len(eligible))
	out = append(out, eligible[primary])
	var fallback *route
	for i := range eligible {
		if i == primary {
			continue
		}
		if eligible[i].cfg.ID == r.defaultID {
			fallback = &eligible[i]
			continue
		}
		out = append(out, eligible[i])
	}
	if fallback != nil {
		out = append(out, *fallback)
	}
	return out
}

// Complete runs a non-streaming call through the provider chain.
func (r *Router) Complete(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error) {
	rc := entity.RouteContext{Purpose: req.Purpose, InputSize: req.InputSize()}
	chain := r.chain(rc)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: none accepts %d input characters", entity.ErrNoProviders, rc.InputSize)
	}

	failures := make([]entity.ProviderFailure, 0, len(chain))
	for i, rt := range chain {
		if i > 0 {
			r.fallback(ctx, "falling back to next llm provider", failures[i-1], rt.cfg.ID)
		}

		text, attempts, err := r.completeWith(ctx, rt, req)
		if err == nil {
			ctxzap.Debug(ctx, "llm call completed",
				zap.String("provider", rt.cfg.ID),
				zap.String("purpose", string(req.Purpose)),
				zap.Int("attempts", attempts),
			)
			return &entity.LLMResponse{Text: text, Provider: rt.cfg.ID, Failures: failures}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		failure := failureOf(rt.cfg.ID, attempts, err)
		failures = append(failures, failure)
		if !failure.Retryable {
			return nil, r.exhausted(ctx, failures, true)
		}
	}

	return nil, r.exhausted(ctx, failures, false)
}

func (r *Router) completeWith(ctx context.Context, rt route, req *entity.LLMRequest) (string, int, error) {
	id := rt.cfg.ID
	req = withProviderDefaults(rt.cfg, req)
	attempts := 0

	text, err := retry.DoWithData(func() (string, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, timeoutFor(rt.cfg, r.opts.CallTimeout))
		defer cancel()

		started := time.Now()
		text, err := rt.provider.Complete(callCtx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = entity.NewRetryableError(id, errEmptyResponse)
		}
		err = normalize(ctx, id, err)
		r.metrics.observeAttempt(id, started, err)
		r.record(id, err)
		return text, err
	}, r.opts.Retry.ToRetryOptions(ctx, entity.IsRetryable)...)

	return text, attempts, err
}

// Stream runs a streaming call. Fallback is only possible before the first
// chunk reaches the consumer; after that a failure ends the sequence with a
// *entity.StreamInterruptedError.
func (r *Router) Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[entity.LLMChunk, error] {
	return func(yield func(entity.LLMChunk, error) bool) {
		rc := entity.RouteContext{Purpose: req.Purpose, InputSize: req.InputSize()}
		chain := r.chain(rc)
		if len(chain) == 0 {
			yield(entity.LLMChunk{}, fmt.Errorf("%w: none accepts %d input characters", entity.ErrNoProviders, rc.InputSize))
			return
		}

		failures := make([]entity.ProviderFailure, 0, len(chain))
		for i, rt := range chain {
			if i > 0 {
				r.fallback(ctx, "falling back to next llm provider before first token", failures[i-1], rt.cfg.ID)
			}

			attempts, stopped, err := r.streamWith(ctx, rt, req, failures, yield)
			if stopped || err == nil {
				return
			}
			if ctx.Err() != nil {
				yield(entity.LLMChunk{}, ctx.Err())
				return
			}
			var interrupted *entity.StreamInterruptedError
			if errors.As(err, &interrupted) {
				yield(entity.LLMChunk{}, err)
				return
			}

			failure := failureOf(rt.cfg.ID, attempts, err)
			failures = append(failures, failure)
			if !failure.Retryable {
				yield(entity.LLMChunk{}, r.exhausted(ctx, failures, true))
				return
			}
		}
		yield(entity.LLMChunk{}, r.exhausted(ctx, failures, false))
	}
}

// streamWith drives one provider. stopped is true when the consumer broke out.
// The first chunk it yields carries the failures of earlier providers.
func (r *Router) streamWith(
	ctx context.Context,
	rt route,
	req *entity.LLMRequest,
	failures []entity.ProviderFailure,
	yield func(entity.LLMChunk, error) bool,
) (attempts int, stopped bool, err error) {
	id := rt.cfg.ID
	req = withProviderDefaults(rt.cfg, req)
	emitted := 0

	retryIf := func(err error) bool {
		return emitted == 0 && !stopped && entity.IsRetryable(err)
	}

	err = retry.Do(func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, timeoutFor(rt.cfg, r.opts.StreamTimeout))
		defer cancel()

		started := time.Now()
		var streamErr error
		for chunk, err := range rt.provider.Stream(callCtx, req) {
			if err != nil {
				streamErr = err
				break
			}
			if chunk == "" {
				continue
			}
			out := entity.LLMChunk{Text: chunk, Provider: id}
			if emitted == 0 && len(failures) > 0 {
				out.Failures = slices.Clone(failures)
			}
			emitted++
			if !yield(out, nil) {
				stopped = true
				break
			}
		}

		if stopped {
			r.metrics.observeAttempt(id, started, nil)
			return nil
		}
		if streamErr == nil && emitted == 0 {
			streamErr = entity.NewRetryableError(id, errEmptyResponse)
		}
		streamErr = normalize(ctx, id, streamErr)
		r.metrics.observeAttempt(id, started, streamErr)
		r.record(id, streamErr)

		if streamErr != nil && emitted > 0 {
			return retry.Unrecoverable(&entity.StreamInterruptedError{Provider: id, Emitted: emitted, Err: streamErr})
		}
		return streamErr
	}, r.opts.Retry.ToRetryOptions(ctx, retryIf)...)

	return attempts, stopped, err
}

func (r *Router) fallback(ctx context.Context, msg string, failed entity.ProviderFailure, to string) {
	r.metrics.observeFallback(failed.Provider)
	ctxzap.Warn(ctx, msg,
		zap.String("from", failed.Provider),
		zap.String("to", to),
		zap.String("reason", failed.Reason),
		zap.Int("attempts", failed.Attempts),
	)
}

func (r *Router) record(id string, err error) {
	if err == nil {
		r.health.success(id)
		return
	}
	if entity.IsRetryable(err) {
		r.health.failure(id)
	}
}

func (r *Router) exhausted(ctx context.Context, failures []entity.ProviderFailure, aborted bool) error {
	r.metrics.observeExhausted()
	err := &entity.AllProvidersExhaustedError{Failures: failures, Aborted: aborted}
	ctxzap.Error(ctx, "llm providers exhausted", zap.Error(err), zap.Bool("aborted", aborted))
	return err
}

// normalize makes sure every provider failure is a tagged *entity.ProviderError.
// Unclassified errors count as transient.
func normalize(parent context.Context, id string, err error) error {
	if err == nil {
		return nil
	}
	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if parent.Err() != nil {
		return entity.NewFatalError(id, err)
	}
	if pe, ok := classifyContext(id, err); ok {
		return pe
	}
	return entity.NewRetryableError(id, err)
}

func failureOf(id string, attempts int, err error) entity.ProviderFailure {
	reason := err.Error()
	var pe *entity.ProviderError
	if errors.As(err, &pe) && pe.Err != nil {
		reason = pe.Err.Error()
	}
	return entity.ProviderFailure{
		Provider:  id,
		Reason:    reason,
		Retryable: entity.IsRetryable(err),
		Attempts:  attempts,
	}
}

func timeoutFor(cfg entity.ProviderConfig, fallback time.Duration) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return fallback
}

// withProviderDefaults fills sampling parameters the caller left unset.
func withProviderDefaults(cfg entity.ProviderConfig, req *entity.LLMRequest) *entity.LLMRequest {
	if (req.Temperature != nil || cfg.Temperature == nil) && (req.MaxTokens > 0 || cfg.MaxTokens == 0) {
		return req
	}
	out := *req
	if out.Temperature == nil {
		out.Temperature = cfg.Temperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = cfg.MaxTokens
	}
	return &out
}
