// Package llmprovider generates chat replies with an OpenAI compatible API.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/cache"
)

// Config holds reply generation settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// ChatCompleter is the subset of the OpenAI client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator implements conversation.ReplyGenerator.
type Generator struct {
	client  ChatCompleter
	history cache.HistoryStore
	cfg     Config
	log     zerolog.Logger
}

var _ conversation.ReplyGenerator = (*Generator)(nil)

// NewOpenAIClient builds the go-openai client for cfg.
func NewOpenAIClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewGenerator creates a reply generator. history may be nil.
func NewGenerator(client ChatCompleter, history cache.HistoryStore, cfg Config, log zerolog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if history == nil {
		history = cache.NewMemoryHistory(0)
	}
	return &Generator{
		client:  client,
		history: history,
		cfg:     cfg,
		log:     log.With().Str("component", "reply-generator").Str("model", cfg.Model).Logger(),
	}
}

// GenerateReply answers text in the conversation identified by contextKey.
func (g *Generator) GenerateReply(ctx context.Context, contextKey, text, counterpartyName string) (string, error) {
	var reply string
	err := g.history.WithLock(ctx, contextKey, func() error {
		turns, err := g.history.Load(ctx, contextKey)
		if err != nil {
			g.log.Warn().Err(err).Str("context_key", contextKey).Msg("continuing without conversation history")
			turns = nil
		}

		reply, err = g.complete(ctx, g.buildMessages(turns, text, counterpartyName))
		if err != nil {
			return err
		}

		if err := g.history.Append(ctx, contextKey,
			cache.Turn{Role: openai.ChatMessageRoleUser, Content: text},
			cache.Turn{Role: openai.ChatMessageRoleAssistant, Content: reply},
		); err != nil {
			g.log.Warn().Err(err).Str("context_key", contextKey).Msg("failed to store conversation history")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (g *Generator) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed with status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", conversation.ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", conversation.ErrEmptyReply
	}

	g.log.Debug().
		Dur("duration", time.Since(start)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("reply generated")
	return reply, nil
}

func (g *Generator) buildMessages(turns []cache.Turn, text, counterpartyName string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)

	system := strings.TrimSpace(g.cfg.SystemPrompt)
	if counterpartyName != "" {
		if system != "" {
			system += "\n\n"
		}
		system += fmt.Sprintf("You are talking with %s.", counterpartyName)
	}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
}
