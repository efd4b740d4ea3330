package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/channel"
	"github.com/janhq/whatsapp-relay/internal/domain/conversation"
	"github.com/janhq/whatsapp-relay/internal/domain/retry"
	"github.com/janhq/whatsapp-relay/internal/infrastructure/metrics"
)

const userAgent = "whatsapp-relay/1.0"

// HTTPService implements agent notifications via HTTP POST.
type HTTPService struct {
	client *resty.Client
	policy retry.Policy
	log    zerolog.Logger
	now    func() time.Time
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a new HTTP-based notification service.
func NewHTTPService(log zerolog.Logger, policy retry.Policy) *HTTPService {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent)

	return &HTTPService{
		client: client,
		policy: policy,
		log:    log.With().Str("component", "webhook").Logger(),
		now:    time.Now,
	}
}

// NotifyNewMessage sends a message.received notification to the agent.
func (s *HTTPService) NotifyNewMessage(ctx context.Context, agent *channel.Agent, chat *conversation.Chat, message *conversation.Message) error {
	if agent == nil || strings.TrimSpace(agent.OnNewMessageURL) == "" {
		metrics.RecordNotification("skipped")
		return nil
	}
	if chat == nil || message == nil {
		return fmt.Errorf("notification requires chat and message")
	}

	payload := Payload{
		Event:         EventMessageReceived,
		AgentID:       agent.ID,
		ChatID:        chat.ID,
		MessageID:     message.ID,
		Text:          message.Text,
		WhatsappPhone: chat.WhatsappPhone,
		UserName:      message.UserName,
		OccurredAt:    s.now().UTC().Format(time.RFC3339),
	}

	err := s.send(ctx, agent.OnNewMessageURL, payload)
	if err != nil {
		metrics.RecordNotification("failed")
		return err
	}
	metrics.RecordNotification("delivered")
	return nil
}

func (s *HTTPService) send(ctx context.Context, url string, payload Payload) error {
	attempts := s.policy.MaxRetries + 1
	return retry.Execute(ctx, s.policy, func(ctx context.Context, attempt int) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("X-Relay-Event", payload.Event).
			SetHeader("X-Relay-Message-ID", payload.MessageID).
			SetBody(payload).
			Post(url)
		if err != nil {
			s.log.Warn().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("notification delivery failed")
			return fmt.Errorf("send notification (attempt %d/%d): %w", attempt+1, attempts, err)
		}

		status := resp.StatusCode()
		if status >= 200 && status < 300 {
			s.log.Info().
				Str("url", url).
				Int("status", status).
				Str("message_id", payload.MessageID).
				Msg("notification delivered successfully")
			return nil
		}

		s.log.Warn().Int("status", status).Str("url", url).Int("attempt", attempt+1).Msg("notification delivery failed")
		statusErr := fmt.Errorf("notification returned status %d (attempt %d/%d)", status, attempt+1, attempts)
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
			return retry.Permanent(statusErr)
		}
		return statusErr
	})
}
