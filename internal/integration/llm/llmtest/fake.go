// Package llmtest provides scripted LLM providers for tests.
package llmtest

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/futig/proposal-backend/internal/entity"
)

// Step is one scripted Complete outcome.
type Step struct {
	Text string
	Err  error
}

// StreamStep is one scripted Stream outcome: Tokens are emitted, then Err if set.
type StreamStep struct {
	Tokens []string
	Err    error
}

// Fake is a thread-safe scripted provider. Steps are consumed in order and the
// last one repeats once the script runs out.
//
//	fake := llmtest.New("primary",
//	    llmtest.Step{Err: entity.NewRetryableError("primary", errors.New("503"))},
//	    llmtest.Step{Text: "ok"},
//	)
type Fake struct {
	mu          sync.Mutex
	id          string
	steps       []Step
	streamSteps []StreamStep
	delay       time.Duration
	calls       int
	streamCalls int
	requests    []*entity.LLMRequest
}

func New(id string, steps ...Step) *Fake {
	return &Fake{id: id, steps: steps}
}

// WithStream sets the scripted stream outcomes.
func (f *Fake) WithStream(steps ...StreamStep) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamSteps = steps
	return f
}

// WithDelay makes every call wait d or until the context ends.
func (f *Fake) WithDelay(d time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

func (f *Fake) ID() string {
	return f.id
}

func (f *Fake) Complete(ctx context.Context, req *entity.LLMRequest) (string, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	delay := f.delay
	var step Step
	if len(f.steps) > 0 {
		step = f.steps[min(idx, len(f.steps)-1)]
	}
	f.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return "", err
	}
	return step.Text, step.Err
}

func (f *Fake) Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		idx := f.streamCalls
		f.streamCalls++
		f.requests = append(f.requests, req)
		delay := f.delay
		var step StreamStep
		if len(f.streamSteps) > 0 {
			step = f.streamSteps[min(idx, len(f.streamSteps)-1)]
		}
		f.mu.Unlock()

		for _, tok := range step.Tokens {
			if err := wait(ctx, delay); err != nil {
				yield("", err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
		if step.Err != nil {
			yield("", step.Err)
		}
	}
}

// Calls returns the number of Complete invocations.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// StreamCalls returns the number of Stream invocations.
func (f *Fake) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

// Requests returns every request seen, in call order.
func (f *Fake) Requests() []*entity.LLMRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.LLMRequest(nil), f.requests...)
}

// CompleteFunc adapts a function to the router's Complete method.
type CompleteFunc func(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error)

func (f CompleteFunc) Complete(ctx context.Context, req *entity.LLMRequest) (*entity.LLMResponse, error) {
	return f(ctx, req)
}

// Reply returns a CompleteFunc that always answers text.
func Reply(text string) CompleteFunc {
	return func(context.Context, *entity.LLMRequest) (*entity.LLMResponse, error) {
		return &entity.LLMResponse{Text: text, Provider: "fake"}, nil
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
