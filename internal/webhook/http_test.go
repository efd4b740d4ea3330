package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:      2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffStrategy: retry.BackoffFixed,
	}
}

func fixtures(url string) (*channel.Agent, *conversation.Chat, *conversation.Message) {
	agent := &channel.Agent{ID: "agent-1", IsActive: true, OnNewMessageURL: url}
	chat := &conversation.Chat{ID: "chat-1", WhatsappPhone: "5511988887777@s.whatsapp.net"}
	message := &conversation.Message{ID: "msg-1", ChatID: "chat-1", Text: "Hello", UserName: "Maria"}
	return agent, chat, message
}

func TestNotifyNewMessage_PostsPayload(t *testing.T) {
	var received Payload
	var eventHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		eventHeader = r.Header.Get("X-Relay-Event")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	svc := NewHTTPService(zerolog.Nop(), fastPolicy())
	agent, chat, message := fixtures(server.URL)

	require.NoError(t, svc.NotifyNewMessage(context.Background(), agent, chat, message))
	assert.Equal(t, EventMessageReceived, eventHeader)
	assert.Equal(t, EventMessageReceived, received.Event)
	assert.Equal(t, "chat-1", received.ChatID)
	assert.Equal(t, "msg-1", received.MessageID)
	assert.Equal(t, "Hello", received.Text)
	assert.Equal(t, "agent-1", received.AgentID)
}

func TestNotifyNewMessage_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewHTTPService(zerolog.Nop(), fastPolicy())
	agent, chat, message := fixtures(server.URL)

	require.NoError(t, svc.NotifyNewMessage(context.Background(), agent, chat, message))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNotifyNewMessage_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewHTTPService(zerolog.Nop(), fastPolicy())
	agent, chat, message := fixtures(server.URL)

	err := svc.NotifyNewMessage(context.Background(), agent, chat, message)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotifyNewMessage_SkipsWithoutURL(t *testing.T) {
	svc := NewHTTPService(zerolog.Nop(), fastPolicy())
	agent, chat, message := fixtures("")

	assert.NoError(t, svc.NotifyNewMessage(context.Background(), agent, chat, message))
	assert.NoError(t, svc.NotifyNewMessage(context.Background(), nil, chat, message))
}
