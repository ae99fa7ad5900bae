package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/integration/common"
	pkghttp "github.com/futig/proposal-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	gatewayCompleteEndpoint = "/v1/complete"
	gatewayStreamEndpoint   = "/v1/stream"
)

type gatewayRequest struct {
	Model       string               `json:"model"`
	Messages    []entity.ChatMessage `json:"messages"`
	Temperature *float32             `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type gatewayResponse struct {
	Text string `json:"text"`
}

// gatewayEvent is one NDJSON line of a streamed gateway response.
type gatewayEvent struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// GatewayProvider calls an internal LLM gateway over plain JSON.
type GatewayProvider struct {
	id        string
	model     string
	connector *pkghttp.Connector
}

// NewGatewayProvider builds the gateway client. The router owns call deadlines,
// so the connector's own request timeout is disabled.
func NewGatewayProvider(cfg entity.ProviderConfig, httpCfg config.HTTPClientConfig, logger *zap.Logger) *GatewayProvider {
	httpCfg.Url = cfg.BaseURL
	httpCfg.Token = cfg.APIKey
	httpCfg.RequestTimeout = 0
	return &GatewayProvider{
		id:        cfg.ID,
		model:     cfg.Model,
		connector: common.NewBaseConnector(httpCfg, logger),
	}
}

func (p *GatewayProvider) ID() string {
	return p.id
}

func (p *GatewayProvider) Complete(ctx context.Context, req *entity.LLMRequest) (string, error) {
	var resp gatewayResponse
	err := p.connector.DoRequest(ctx, http.MethodPost, gatewayCompleteEndpoint, p.buildRequest(req), &resp)
	if err != nil {
		return "", p.classify(err)
	}
	ctxzap.Debug(ctx, "gateway completion finished", zap.String("provider", p.id), zap.Int("result_length", len(resp.Text)))
	return resp.Text, nil
}

func (p *GatewayProvider) Stream(ctx context.Context, req *entity.LLMRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := p.connector.DoStream(ctx, http.MethodPost, gatewayStreamEndpoint, p.buildRequest(req),
			pkghttp.WithAccept("application/x-ndjson"))
		if err != nil {
			yield("", p.classify(err))
			return
		}
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var ev gatewayEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				yield("", entity.NewRetryableError(p.id, fmt.Errorf("decode stream event: %w", err)))
				return
			}
			if ev.Error != "" {
				yield("", entity.NewRetryableError(p.id, errors.New(ev.Error)))
				return
			}
			if ev.Delta != "" && !yield(ev.Delta, nil) {
				return
			}
			if ev.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", p.classify(err))
			return
		}
		// body ended without a done marker
		yield("", entity.NewRetryableError(p.id, errors.New("stream closed before completion")))
	}
}

func (p *GatewayProvider) buildRequest(req *entity.LLMRequest) *gatewayRequest {
	return &gatewayRequest{
		Model:       p.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (p *GatewayProvider) classify(err error) error {
	if pe, ok := classifyContext(p.id, err); ok {
		return pe
	}
	if pkghttp.IsRetryable(err) {
		return entity.NewRetryableError(p.id, err)
	}
	return entity.NewFatalError(p.id, err)
}
