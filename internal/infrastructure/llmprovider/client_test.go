package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/cache"
)

type MockChatCompleter struct {
	CreateChatCompletionFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	requests                 []openai.ChatCompletionRequest
}

func (m *MockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	return m.CreateChatCompletionFunc(ctx, req)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
	}}
}

func TestGenerator_UsesSettingsAndHistory(t *testing.T) {
	mock := &MockChatCompleter{CreateChatCompletionFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return reply("  Sure, Maria!  "), nil
	}}
	history := cache.NewMemoryHistory(10)
	gen := NewGenerator(mock, history, Config{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 500, SystemPrompt: "Be brief."}, zerolog.Nop())
	ctx := context.Background()

	out, err := gen.GenerateReply(ctx, "whatsapp-5511", "Hello", "Maria")
	require.NoError(t, err)
	assert.Equal(t, "Sure, Maria!", out)

	_, err = gen.GenerateReply(ctx, "whatsapp-5511", "Again", "Maria")
	require.NoError(t, err)

	require.Len(t, mock.requests, 2)
	first := mock.requests[0]
	assert.Equal(t, "gpt-4o", first.Model)
	assert.InDelta(t, 0.7, first.Temperature, 0.0001)
	assert.Equal(t, 500, first.MaxTokens)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, first.Messages[0].Role)
	assert.Contains(t, first.Messages[0].Content, "Be brief.")
	assert.Contains(t, first.Messages[0].Content, "Maria")

	second := mock.requests[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "Hello", second.Messages[1].Content)
	assert.Equal(t, "Sure, Maria!", second.Messages[2].Content)
	assert.Equal(t, "Again", second.Messages[3].Content)
}

func TestGenerator_EmptyChoices(t *testing.T) {
	mock := &MockChatCompleter{CreateChatCompletionFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, nil
	}}
	gen := NewGenerator(mock, nil, Config{}, zerolog.Nop())

	_, err := gen.GenerateReply(context.Background(), "k", "Hello", "")
	assert.ErrorIs(t, err, conversation.ErrEmptyReply)
	assert.Equal(t, openai.GPT4o, mock.requests[0].Model)
	assert.Len(t, mock.requests[0].Messages, 1)
}

func TestGenerator_ProviderErrorKeepsHistoryClean(t *testing.T) {
	mock := &MockChatCompleter{CreateChatCompletionFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, errors.New("connection reset")
	}}
	history := cache.NewMemoryHistory(10)
	gen := NewGenerator(mock, history, Config{}, zerolog.Nop())

	_, err := gen.GenerateReply(context.Background(), "k", "Hello", "")
	require.Error(t, err)

	turns, err := history.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestNewOpenAIClient_AgainstCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply("pong"))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	gen := NewGenerator(client, nil, Config{Model: "gpt-4o-mini"}, zerolog.Nop())

	out, err := gen.GenerateReply(context.Background(), "k", "ping", "")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestGenerator_APIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	gen := NewGenerator(NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}), nil, Config{}, zerolog.Nop())
	_, err := gen.GenerateReply(context.Background(), "k", "ping", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}
