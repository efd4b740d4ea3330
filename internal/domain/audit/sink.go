// Package audit provides the structured audit trail injected into pipeline components.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies the audit record type.
type Kind string

const (
	KindDegradation Kind = "degradation"
	KindSuppressed  Kind = "suppressed"
	KindRecorded    Kind = "recorded"
	KindDelivery    Kind = "delivery"
	KindHardFailure Kind = "hard_failure"
	KindInfo        Kind = "info"
)

// Record is one audit entry.
type Record struct {
	Kind      Kind
	Stage     string
	EventID   string
	ChatID    string
	MessageID string
	Message   string
	Fields    map[string]any
	At        time.Time
}

// Sink receives audit records.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// Redactor scrubs counterparty data from record fields before they are logged.
type Redactor interface {
	SanitizeFields(fields map[string]any) map[string]any
}

// LogSink writes audit records through zerolog.
type LogSink struct {
	log      zerolog.Logger
	redactor Redactor
}

// NewLogSink creates a zerolog backed sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

// WithRedactor sets the redactor applied to record fields.
func (s *LogSink) WithRedactor(r Redactor) *LogSink {
	s.redactor = r
	return s
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, rec Record) {
	var event *zerolog.Event
	switch rec.Kind {
	case KindHardFailure:
		event = s.log.Error()
	case KindRecorded, KindDelivery:
		event = s.log.Warn()
	case KindDegradation:
		event = s.log.Debug()
	default:
		event = s.log.Info()
	}

	event = event.Str("kind", string(rec.Kind)).Str("stage", rec.Stage)
	if rec.EventID != "" {
		event = event.Str("event_id", rec.EventID)
	}
	if rec.ChatID != "" {
		event = event.Str("chat_id", rec.ChatID)
	}
	if rec.MessageID != "" {
		event = event.Str("message_id", rec.MessageID)
	}
	if len(rec.Fields) > 0 {
		fields := rec.Fields
		if s.redactor != nil {
			fields = s.redactor.SanitizeFields(fields)
		}
		event = event.Fields(fields)
	}
	event.Msg(rec.Message)
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink.
func (s *MemorySink) Record(_ context.Context, rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Records returns a copy of all records.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Filter returns the records of the given kind.
func (s *MemorySink) Filter(kind Kind) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// Nop discards records.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Record) {}
