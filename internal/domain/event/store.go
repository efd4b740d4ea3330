package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/janhq/whatsapp-relay/internal/domain/audit"
	stageErrors "github.com/janhq/whatsapp-relay/internal/domain/errors"
)

// pgProgramLimitExceeded is the postgres error code for row or value size limits.
const pgProgramLimitExceeded = "54000"

// IsSizeLimitError reports whether err signals a storage size limit.
func IsSizeLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPayloadTooLarge) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgProgramLimitExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too large") || strings.Contains(msg, "size exceeds")
}

// Store persists one event per callback with a redacted fallback for oversized payloads.
type Store struct {
	repo Repository
	sink audit.Sink
	log  zerolog.Logger
}

// NewStore creates an event store.
func NewStore(repo Repository, sink audit.Sink, log zerolog.Logger) *Store {
	return &Store{
		repo: repo,
		sink: sink,
		log:  log.With().Str("component", "event-store").Logger(),
	}
}

// Persist writes ev. A size limit failure is retried once with the redaction marker;
// any other failure is returned as a hard stage error.
func (s *Store) Persist(ctx context.Context, ev *WebhookEvent) (bool, error) {
	err := s.repo.Create(ctx, ev)
	if err == nil {
		return false, nil
	}
	if !IsSizeLimitError(err) {
		return false, stageErrors.Hard(stageErrors.StagePersist, stageErrors.CodeEventPersist, "failed to store webhook event", err)
	}

	s.log.Warn().Err(err).Str("instance", ev.Instance).Msg("raw payload too large, storing redacted event")
	s.sink.Record(ctx, audit.Record{
		Kind:    audit.KindDegradation,
		Stage:   string(stageErrors.StagePersist),
		Message: "raw payload replaced by redaction marker",
		Fields:  map[string]any{"cause": err.Error()},
	})

	ev.RawData = RedactionMarker()
	if retryErr := s.repo.Create(ctx, ev); retryErr != nil {
		return true, stageErrors.Hard(stageErrors.StagePersist, stageErrors.CodeEventPersist,
			"failed to store redacted webhook event", fmt.Errorf("%w (after size fallback: %v)", retryErr, err))
	}
	return true, nil
}

// Find loads an event by id.
func (s *Store) Find(ctx context.Context, id string) (*WebhookEvent, error) {
	return s.repo.FindByID(ctx, id)
}

// Complete marks the event processed with an optional error and related message.
func (s *Store) Complete(ctx context.Context, id string, update ProcessingUpdate) error {
	if err := s.repo.MarkProcessed(ctx, id, update); err != nil {
		return fmt.Errorf("mark event %s processed: %w", id, err)
	}
	return nil
}

// RecordError writes an audit error onto an already processed event.
func (s *Store) RecordError(ctx context.Context, id, message string) error {
	if err := s.repo.RecordError(ctx, id, message); err != nil {
		return fmt.Errorf("record error on event %s: %w", id, err)
	}
	return nil
}
