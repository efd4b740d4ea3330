// Package inbound turns loosely shaped provider webhook payloads into canonical records.
package inbound

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Provider event names.
const (
	EventMessagesUpsert   = "messages.upsert"
	EventConnectionUpdate = "connection.update"
)

// Unknown is the placeholder for missing identifiers.
const Unknown = "unknown"

// Placeholder texts for message kinds without text.
const (
	TextAudio           = "(Audio message)"
	TextSticker         = "(Sticker)"
	TextContact         = "(Contact shared)"
	TextLocation        = "(Location shared)"
	TextMessageReceived = "(Message received)"
	TextEmpty           = "(Empty message)"
)

// MessageKind enumerates the recognized message shapes.
type MessageKind string

const (
	KindConversation MessageKind = "conversation"
	KindExtendedText MessageKind = "extendedText"
	KindImage        MessageKind = "image"
	KindVideo        MessageKind = "video"
	KindDocument     MessageKind = "document"
	KindAudio        MessageKind = "audio"
	KindSticker      MessageKind = "sticker"
	KindContact      MessageKind = "contact"
	KindLocation     MessageKind = "location"
	KindUnknown      MessageKind = "unknown"
	KindEmpty        MessageKind = "empty"
)

// Degradation records a field that was missing or malformed and replaced by a default.
type Degradation struct {
	Field  string
	Reason string
}

// Normalized is the canonical record extracted from one webhook payload.
type Normalized struct {
	Event             string
	InstanceName      string
	InstanceID        string
	RemoteAddress     string
	FromSelf          bool
	ProviderMessageID string
	SenderDisplayName string
	MessageType       string
	Kind              MessageKind
	Text              string
	ProviderTimestamp int64

	DateTime    time.Time
	Destination string
	Sender      string
	ServerURL   string
	APIKey      string
	TestMode    bool

	// Data is the payload's data object, never nil.
	Data         map[string]any
	Degradations []Degradation
}

// IsMessage reports whether the payload is an inbound message event.
func (n *Normalized) IsMessage() bool {
	return n.Event == EventMessagesUpsert
}

// CounterpartyAddress strips the address suffix from the remote address.
func (n *Normalized) CounterpartyAddress() string {
	return PhoneFromAddress(n.RemoteAddress)
}

// PhoneFromAddress returns the part of a messaging address before '@'.
func PhoneFromAddress(address string) string {
	if idx := strings.IndexByte(address, '@'); idx >= 0 {
		return address[:idx]
	}
	return address
}

// Normalizer extracts canonical records. It never fails.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock creates a normalizer with a fixed clock source.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize reads every field with a default-on-absence policy.
func (n *Normalizer) Normalize(payload map[string]any) *Normalized {
	out := &Normalized{}
	degrade := func(field, reason string) {
		out.Degradations = append(out.Degradations, Degradation{Field: field, Reason: reason})
	}

	out.Event = stringField(payload, "event")
	if out.Event == "" {
		out.Event = Unknown
		degrade("event", "missing event, using \"unknown\"")
	}

	out.InstanceName = stringField(payload, "instance")
	if out.InstanceName == "" {
		out.InstanceName = Unknown
		degrade("instance", "missing instance, using \"unknown\"")
	}

	data, ok := payload["data"].(map[string]any)
	if !ok {
		data = map[string]any{}
		degrade("data", "missing data object, using empty object")
	}
	out.Data = data

	out.InstanceID = stringField(data, "instanceId")
	out.DateTime = n.parseDateTime(payload["date_time"])
	out.Destination = stringField(payload, "destination")
	out.Sender = stringField(payload, "sender")
	out.ServerURL = stringField(payload, "server_url")
	out.APIKey = stringField(payload, "apikey")
	out.TestMode = boolField(payload, "_testMode")

	if out.Event != EventMessagesUpsert {
		return out
	}

	key, ok := data["key"].(map[string]any)
	if !ok || len(key) == 0 {
		key = map[string]any{}
		degrade("data.key", "missing or empty key object")
	}
	out.RemoteAddress = stringField(key, "remoteJid")
	if out.RemoteAddress == "" {
		degrade("data.key.remoteJid", "missing remoteJid")
	}
	out.FromSelf = boolField(key, "fromMe")
	out.ProviderMessageID = stringField(key, "id")
	out.SenderDisplayName = stringField(data, "pushName")

	out.MessageType = stringField(data, "messageType")
	if out.MessageType == "" {
		out.MessageType = Unknown
		degrade("data.messageType", "missing messageType, using \"unknown\"")
	}

	ts, tsReason := parseTimestamp(data["messageTimestamp"])
	if tsReason != "" {
		ts = n.now().Unix()
		degrade("data.messageTimestamp", tsReason)
	}
	out.ProviderTimestamp = ts

	message, _ := data["message"].(map[string]any)
	if len(message) == 0 {
		degrade("data.message", "missing or empty message object")
	}
	out.Kind, out.Text = ExtractText(out.MessageType, message)
	if out.Kind == KindUnknown {
		degrade("data.message", fmt.Sprintf("unrecognized message shape, keys: %s", strings.Join(keys(message), ", ")))
	}

	return out
}

// ExtractText dispatches on the message shape and returns its kind and display text.
func ExtractText(messageType string, message map[string]any) (MessageKind, string) {
	if len(message) == 0 {
		return KindEmpty, ""
	}

	if text := stringField(message, "conversation"); text != "" && (messageType == "conversation" || messageType == Unknown || messageType == "") {
		return KindConversation, text
	}
	if text := nestedString(message, "extendedTextMessage", "text"); text != "" {
		return KindExtendedText, text
	}
	if text := nestedString(message, "imageMessage", "caption"); text != "" {
		return KindImage, text
	}
	if text := nestedString(message, "videoMessage", "caption"); text != "" {
		return KindVideo, text
	}
	if text := nestedString(message, "documentMessage", "caption"); text != "" {
		return KindDocument, text
	}
	if present(message, "audioMessage") {
		return KindAudio, TextAudio
	}
	if present(message, "stickerMessage") {
		return KindSticker, TextSticker
	}
	if present(message, "contactMessage") || present(message, "contactsArrayMessage") {
		return KindContact, TextContact
	}
	if present(message, "locationMessage") {
		name := strings.TrimSpace(nestedString(message, "locationMessage", "name"))
		if name != "" {
			return KindLocation, fmt.Sprintf("(Location: %s)", name)
		}
		return KindLocation, TextLocation
	}
	if text := stringField(message, "conversation"); text != "" {
		return KindConversation, text
	}

	return KindUnknown, TextMessageReceived
}

func (n *Normalizer) parseDateTime(v any) time.Time {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return n.now()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return n.now()
}

// parseTimestamp accepts numbers, numeric strings and {low, high} long objects.
// A non-empty reason means the value could not be used.
func parseTimestamp(v any) (int64, string) {
	switch t := v.(type) {
	case nil:
		return 0, "missing messageTimestamp, using current time"
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, ""
		}
		if f, err := t.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), ""
		}
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			return int64(t), ""
		}
	case int64:
		return t, ""
	case int:
		return int64(t), ""
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, ""
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), ""
		}
	case map[string]any:
		low, reason := parseTimestamp(t["low"])
		if reason == "" {
			high, _ := parseTimestamp(t["high"])
			return high<<32 | (low & 0xffffffff), ""
		}
	}
	return 0, fmt.Sprintf("invalid messageTimestamp format: %v, using current time", v)
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func nestedString(m map[string]any, outer, inner string) string {
	child, ok := m[outer].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(child, inner)
}

func present(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
