package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/delivery"
	"github.com/janhq/whatsapp-relay/internal/domain/event"
	"github.com/janhq/whatsapp-relay/internal/domain/pipeline"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/handlers"
	"github.com/janhq/whatsapp-relay/internal/interfaces/httpserver/responses"
	"github.com/janhq/whatsapp-relay/internal/utils/platformerrors"
)

// MockProcessor is a mock implementation of handlers.WebhookProcessor.
type MockProcessor struct {
	HandleWebhookFunc   func(ctx context.Context, payload map[string]any) pipeline.Result
	SendTestMessageFunc func(ctx context.Context, agentID, phone, text string) (delivery.Outcome, error)
}

func (m *MockProcessor) HandleWebhook(ctx context.Context, payload map[string]any) pipeline.Result {
	if m.HandleWebhookFunc != nil {
		return m.HandleWebhookFunc(ctx, payload)
	}
	return pipeline.Result{Success: true, Status: pipeline.StatusProcessed}
}

func (m *MockProcessor) SendTestMessage(ctx context.Context, agentID, phone, text string) (delivery.Outcome, error) {
	if m.SendTestMessageFunc != nil {
		return m.SendTestMessageFunc(ctx, agentID, phone, text)
	}
	return delivery.Success{}, nil
}

// MockEventReader is a mock implementation of handlers.EventReader.
type MockEventReader struct {
	FindFunc func(ctx context.Context, id string) (*event.WebhookEvent, error)
}

func (m *MockEventReader) Find(ctx context.Context, id string) (*event.WebhookEvent, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, id)
	}
	return nil, event.ErrNotFound
}

func setupRouter(processor *MockProcessor, events *MockEventReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	provider := handlers.NewProvider(processor, events, zerolog.Nop())
	router.POST("/webhooks/evolution", provider.Webhook.Receive)
	router.POST("/v1/agents/:agent_id/messages/test", provider.Agent.SendTestMessage)
	router.GET("/v1/webhook-events/:event_id", provider.Event.Get)
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Receive(t *testing.T) {
	var received map[string]any
	processor := &MockProcessor{
		HandleWebhookFunc: func(_ context.Context, payload map[string]any) pipeline.Result {
			received = payload
			return pipeline.Result{Success: true, EventID: "ev-1", Status: pipeline.StatusProcessed}
		},
	}
	router := setupRouter(processor, &MockEventReader{})

	w := doRequest(router, http.MethodPost, "/webhooks/evolution", []byte(`{"event":"messages.upsert","instance":"relay-1"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, "messages.upsert", received["event"])
}

func TestWebhookHandler_HardFailureReportsFalse(t *testing.T) {
	processor := &MockProcessor{
		HandleWebhookFunc: func(context.Context, map[string]any) pipeline.Result {
			return pipeline.Result{Success: false, Status: pipeline.StatusFailed}
		},
	}
	router := setupRouter(processor, &MockEventReader{})

	w := doRequest(router, http.MethodPost, "/webhooks/evolution", []byte(`{"event":"messages.upsert"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false}`, w.Body.String())
}

func TestWebhookHandler_RejectsNonJSON(t *testing.T) {
	called := false
	processor := &MockProcessor{
		HandleWebhookFunc: func(context.Context, map[string]any) pipeline.Result {
			called = true
			return pipeline.Result{}
		},
	}
	router := setupRouter(processor, &MockEventReader{})

	for _, body := range []string{"not json", "", "[1,2]"} {
		w := doRequest(router, http.MethodPost, "/webhooks/evolution", []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
	assert.False(t, called)
}

func TestAgentHandler_SendTestMessage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		outcome    delivery.Outcome
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			outcome:    delivery.Success{ProviderMessageID: "OUT1"},
			wantStatus: http.StatusOK,
			wantBody:   "OUT1",
		},
		{
			name:       "provider failure is reported",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			outcome:    delivery.Failure{Reason: "bad number", State: "close"},
			wantStatus: http.StatusOK,
			wantBody:   "bad number",
		},
		{
			name:       "inactive agent",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			err:        pipeline.ErrAgentInactive,
			wantStatus: http.StatusBadRequest,
			wantBody:   pipeline.TextAgentInactive,
		},
		{
			name:       "unknown agent",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			err:        pipeline.ErrAgentNotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   "agent not found",
		},
		{
			name:       "missing message",
			body:       `{"phone":"5511988887777"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "phone and message are required",
		},
		{
			name:       "lookup error",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "failed to send test message",
		},
		{
			name:       "typed error keeps its status",
			body:       `{"phone":"5511988887777","message":"ping"}`,
			err:        fmt.Errorf("find agent: %w", platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "channel not found", nil, "7c9e6679-7425-40de-944b-e07fc1f90ae7")),
			wantStatus: http.StatusNotFound,
			wantBody:   "failed to send test message: channel not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAgent string
			processor := &MockProcessor{
				SendTestMessageFunc: func(_ context.Context, agentID, _, _ string) (delivery.Outcome, error) {
					gotAgent = agentID
					return tt.outcome, tt.err
				},
			}
			router := setupRouter(processor, &MockEventReader{})

			w := doRequest(router, http.MethodPost, "/v1/agents/agent-1/messages/test", []byte(tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "agent-1", gotAgent)
			}
		})
	}
}

func TestEventHandler_Get(t *testing.T) {
	processedAt := time.Unix(1714471300, 0)
	related := "msg-1"
	events := &MockEventReader{
		FindFunc: func(_ context.Context, id string) (*event.WebhookEvent, error) {
			switch id {
			case "ev-1":
				return &event.WebhookEvent{
					ID:               "ev-1",
					Event:            "messages.upsert",
					Instance:         "relay-1",
					RawData:          event.RedactionMarker(),
					Processed:        true,
					ProcessedAt:      &processedAt,
					RelatedMessageID: &related,
					CreatedAt:        time.Unix(1714471200, 0),
				}, nil
			case "gone":
				return nil, platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "webhook event not found", nil, "9f1c2a4e-0d7b-4e55-8f0a-6a1d2b3c4d5e")
			case "broken":
				return nil, platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find webhook event", errors.New("conn reset"), "2b1f6f7e-3f0a-4d53-9a55-0c1f0d0b7c11")
			}
			return nil, event.ErrNotFound
		},
	}
	router := setupRouter(&MockProcessor{}, events)

	w := doRequest(router, http.MethodGet, "/v1/webhook-events/ev-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got responses.WebhookEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ev-1", got.ID)
	assert.True(t, got.Processed)
	assert.True(t, got.Redacted)
	require.NotNil(t, got.RelatedMessageID)
	assert.Equal(t, "msg-1", *got.RelatedMessageID)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, int64(1714471300), *got.ProcessedAt)

	w = doRequest(router, http.MethodGet, "/v1/webhook-events/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/v1/webhook-events/gone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "webhook event not found")

	w = doRequest(router, http.MethodGet, "/v1/webhook-events/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
