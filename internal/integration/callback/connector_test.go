package callback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/entity"
	pkgRetry "github.com/futig/proposal-backend/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConnector() *Connector {
	c := NewConnector(config.CallbackConnectorConfig{
		Retry: pkgRetry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond},
	}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600)) }
	return c
}

func TestConnector_ProposalCreated(t *testing.T) {
	var got entity.CallbackEvent
	var requestID, event string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
		event = r.Header.Get(eventHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	target := entity.CallbackTarget{URL: server.URL, RequestID: "req-1", SessionID: "s1", Format: entity.ProposalFormatBrief}
	testConnector().ProposalCreated(context.Background(), target, &entity.GenerateProposalResponse{
		Proposal: "# Proposal", Version: 1, SessionID: "s1", Format: entity.ProposalFormatBrief,
	})

	assert.Equal(t, entity.CallbackEventTypeProposalCreated, got.Event)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, string(entity.CallbackEventTypeProposalCreated), event)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "2026-03-01T11:00:00Z", got.Timestamp)
	data, ok := got.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "# Proposal", data["proposal"])
}

func TestConnector_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testConnector().Send(context.Background(), entity.CallbackTarget{URL: server.URL, RequestID: "req-2"},
		entity.CallbackEventTypeError, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnector_ProposalFailedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	var got struct {
		Event entity.CallbackEventType `json:"event"`
		Data  entity.CallbackErrorData `json:"data"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	cause := &entity.AllProvidersExhaustedError{Failures: []entity.ProviderFailure{{Provider: "a"}}}
	testConnector().ProposalFailed(context.Background(), entity.CallbackTarget{URL: server.URL, RequestID: "req-3",
		Format: entity.ProposalFormatFormal}, cause)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, entity.CallbackEventTypeError, got.Event)
	assert.Equal(t, entity.KindProvidersExhausted, got.Data.Kind)
	assert.Equal(t, entity.ProposalFormatFormal, got.Data.Format)
	assert.Contains(t, got.Data.Details, "failures")
}

func TestErrorData_PlainError(t *testing.T) {
	data := ErrorData(entity.CallbackTarget{}, &entity.InsufficientDataError{SessionID: "s1"})
	assert.Equal(t, entity.KindInsufficientData, data.Kind)
	assert.Nil(t, data.Details)

	data = ErrorData(entity.CallbackTarget{}, errors.New("boom"))
	assert.Equal(t, entity.KindInternal, data.Kind)
	assert.Equal(t, "boom", data.Message)
}
