package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"math"

	"github.com/futig/proposal-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider talks to any OpenAI compatible chat completions API.
type OpenAIProvider struct {
	id     string
	model  string
	client *openai.Client
}

func NewOpenAIProvider(cfg entity.ProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		id:     cfg.ID,
		model:  cfg.Model,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (p *OpenAIProvider) ID() string {
	return p.id
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *entity.LLMRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", entity.NewRetryableError(p.id, errEmptyResponse)
	}

	ctxzap.Debug(ctx, "openai completion finished",
		zap.String("provider", p.id),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
		if err != nil {
			yield("", p.classify(err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", p.classify(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func (p *OpenAIProvider) buildRequest(req *entity.LLMRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	out := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
		// go-openai omits a zero temperature, which the API reads as its default of 1
		if out.Temperature == 0 {
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return out
}

func (p *OpenAIProvider) classify(err error) error {
	if pe, ok := classifyContext(p.id, err); ok {
		return pe
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(p.id, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(p.id, reqErr.HTTPStatusCode, err)
	}
	// transport failures: connection refused, reset, malformed stream
	return entity.NewRetryableError(p.id, err)
}
