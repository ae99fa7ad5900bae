package entity

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"
)

type LLMPurpose string

const (
	LLMPurposeQuestion   LLMPurpose = "question"
	LLMPurposeValidation LLMPurpose = "validation"
	LLMPurposeProposal   LLMPurpose = "proposal"
)

// LLMRequest is a provider-neutral chat completion request.
type LLMRequest struct {
	Purpose     LLMPurpose    `json:"purpose"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// InputSize is the number of characters the provider has to read.
func (r *LLMRequest) InputSize() int {
	n := 0
	for _, m := range r.Messages {
		n += utf8.RuneCountInString(m.Content)
	}
	return n
}

// RouteContext is what selection predicates are evaluated against.
type RouteContext struct {
	Purpose   LLMPurpose
	InputSize int
}

type ProviderKind string

const (
	ProviderKindOpenAI  ProviderKind = "openai"
	ProviderKindGateway ProviderKind = "gateway"
	ProviderKindMock    ProviderKind = "mock"
)

// ProviderConfig describes one configured LLM provider.
type ProviderConfig struct {
	ID            string        `yaml:"id" json:"id"`
	Kind          ProviderKind  `yaml:"kind" json:"kind"`
	Model         string        `yaml:"model" json:"model"`
	BaseURL       string        `yaml:"base_url" json:"base_url,omitempty"`
	APIKeyEnv     string        `yaml:"api_key_env" json:"api_key_env,omitempty"`
	APIKey        string        `yaml:"-" json:"-"`
	MaxInputChars int           `yaml:"max_input_chars" json:"max_input_chars,omitempty"`
	MinInputChars int           `yaml:"min_input_chars" json:"min_input_chars,omitempty"`
	Purposes      []LLMPurpose  `yaml:"purposes" json:"purposes,omitempty"`
	Priority      int           `yaml:"priority" json:"priority"`
	Temperature   *float32      `yaml:"temperature" json:"temperature,omitempty"`
	MaxTokens     int           `yaml:"max_tokens" json:"max_tokens,omitempty"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// Accepts reports whether the provider can take an input of the given size.
func (p ProviderConfig) Accepts(rc RouteContext) bool {
	return p.MaxInputChars <= 0 || rc.InputSize <= p.MaxInputChars
}

// Matches is the selection predicate: the provider wants this call.
func (p ProviderConfig) Matches(rc RouteContext) bool {
	if rc.InputSize < p.MinInputChars {
		return false
	}
	if len(p.Purposes) > 0 && !slices.Contains(p.Purposes, rc.Purpose) {
		return false
	}
	return p.Accepts(rc)
}

func (p ProviderConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: provider id", ErrMissingField)
	}
	switch p.Kind {
	case ProviderKindOpenAI, ProviderKindGateway:
		if p.Model == "" {
			return fmt.Errorf("%w: model for provider %s", ErrMissingField, p.ID)
		}
	case ProviderKindMock:
	default:
		return fmt.Errorf("%w: provider %s has unknown kind %q", ErrInvalidParameter, p.ID, p.Kind)
	}
	if p.Kind == ProviderKindGateway && p.BaseURL == "" {
		return fmt.Errorf("%w: base_url for gateway provider %s", ErrMissingField, p.ID)
	}
	if p.MaxInputChars > 0 && p.MinInputChars > p.MaxInputChars {
		return fmt.Errorf("%w: provider %s min_input_chars exceeds max_input_chars", ErrInvalidParameter, p.ID)
	}
	return nil
}

// RouterConfig is loaded once at startup and never mutated afterwards.
type RouterConfig struct {
	DefaultProvider string           `yaml:"default_provider" json:"default_provider"`
	Providers       []ProviderConfig `yaml:"providers" json:"providers"`
}

// Sorted returns providers ordered by ascending priority, stable on ties.
func (c RouterConfig) Sorted() []ProviderConfig {
	out := slices.Clone(c.Providers)
	slices.SortStableFunc(out, func(a, b ProviderConfig) int { return a.Priority - b.Priority })
	return out
}

func (c RouterConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate provider id %s", ErrInvalidParameter, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if c.DefaultProvider != "" {
		if _, ok := seen[c.DefaultProvider]; !ok {
			return fmt.Errorf("%w: default provider %s is not configured", ErrInvalidParameter, c.DefaultProvider)
		}
	}
	return nil
}

// SemanticVerdict is the semantic evaluator's judgement of one answer.
type SemanticVerdict struct {
	Passing bool   `json:"passing"`
	Reason  string `json:"reason"`
}

// LLMResponse is a completed generation and the provider that produced it.
// Failures lists the providers that failed before it, in chain order.
type LLMResponse struct {
	Text     string
	Provider string
	Failures []ProviderFailure
}

// LLMChunk is one streamed token group. Only the first chunk of a stream
// carries the failures of providers tried before the one now streaming.
type LLMChunk struct {
	Text     string
	Provider string
	Failures []ProviderFailure
}
