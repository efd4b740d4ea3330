package inbound

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizerWithClock(func() time.Time { return fixedNow })
}

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var payload map[string]any
	require.NoError(t, dec.Decode(&payload))
	return payload
}

func hasDegradation(n *Normalized, field string) bool {
	for _, d := range n.Degradations {
		if d.Field == field {
			return true
		}
	}
	return false
}

func TestNormalize_Conversation(t *testing.T) {
	payload := decode(t, `{
		"event": "messages.upsert",
		"instance": "sales-line",
		"date_time": "2024-04-30T10:00:00.000Z",
		"sender": "5511999999999@s.whatsapp.net",
		"apikey": "secret",
		"data": {
			"instanceId": "inst-1",
			"key": {"remoteJid": "5511988887777@s.whatsapp.net", "fromMe": false, "id": "MSG1"},
			"pushName": "Maria",
			"messageType": "conversation",
			"messageTimestamp": 1714471200,
			"message": {"conversation": "Hello"}
		}
	}`)

	n := newTestNormalizer().Normalize(payload)

	assert.Equal(t, EventMessagesUpsert, n.Event)
	assert.True(t, n.IsMessage())
	assert.Equal(t, "sales-line", n.InstanceName)
	assert.Equal(t, "inst-1", n.InstanceID)
	assert.Equal(t, "5511988887777@s.whatsapp.net", n.RemoteAddress)
	assert.Equal(t, "5511988887777", n.CounterpartyAddress())
	assert.False(t, n.FromSelf)
	assert.Equal(t, "MSG1", n.ProviderMessageID)
	assert.Equal(t, "Maria", n.SenderDisplayName)
	assert.Equal(t, KindConversation, n.Kind)
	assert.Equal(t, "Hello", n.Text)
	assert.Equal(t, int64(1714471200), n.ProviderTimestamp)
	assert.Equal(t, 2024, n.DateTime.Year())
	assert.Equal(t, "secret", n.APIKey)
	assert.Empty(t, n.Degradations)
}

func TestNormalize_MissingStructuresNeverFail(t *testing.T) {
	cases := map[string]string{
		"empty payload":   `{}`,
		"no data":         `{"event": "messages.upsert", "instance": "x"}`,
		"no key":          `{"event": "messages.upsert", "instance": "x", "data": {"message": {"conversation": "hi"}}}`,
		"no message":      `{"event": "messages.upsert", "instance": "x", "data": {"key": {"remoteJid": "1@s.whatsapp.net"}}}`,
		"data not object": `{"event": "messages.upsert", "instance": "x", "data": "oops"}`,
		"key not object":  `{"event": "messages.upsert", "data": {"key": 42, "message": []}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			payload := decode(t, raw)
			var n *Normalized
			require.NotPanics(t, func() { n = newTestNormalizer().Normalize(payload) })
			require.NotNil(t, n)
			assert.NotNil(t, n.Data)
			assert.NotEmpty(t, n.InstanceName)
			assert.NotEmpty(t, n.Degradations)
		})
	}
}

func TestNormalize_DefaultsAreLabeled(t *testing.T) {
	n := newTestNormalizer().Normalize(map[string]any{"event": "messages.upsert"})

	assert.Equal(t, Unknown, n.InstanceName)
	assert.Equal(t, Unknown, n.MessageType)
	assert.Equal(t, "", n.RemoteAddress)
	assert.Equal(t, fixedNow.Unix(), n.ProviderTimestamp)
	assert.Equal(t, fixedNow, n.DateTime)
	assert.Equal(t, KindEmpty, n.Kind)
	assert.Equal(t, "", n.Text)

	for _, field := range []string{"instance", "data", "data.key", "data.key.remoteJid", "data.messageType", "data.messageTimestamp", "data.message"} {
		assert.True(t, hasDegradation(n, field), "expected degradation for %s", field)
	}
}

func TestNormalize_Timestamp(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int64
		degraded bool
	}{
		{"number", `1714471200`, 1714471200, false},
		{"numeric string", `"1714471200"`, 1714471200, false},
		{"long object", `{"low": 1714471200, "high": 0, "unsigned": true}`, 1714471200, false},
		{"not numeric", `"yesterday"`, fixedNow.Unix(), true},
		{"boolean", `true`, fixedNow.Unix(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := decode(t, `{"event":"messages.upsert","instance":"x","data":{"messageType":"conversation","messageTimestamp":`+tt.value+`,"message":{"conversation":"x"}}}`)
			n := newTestNormalizer().Normalize(payload)
			assert.Equal(t, tt.expected, n.ProviderTimestamp)
			assert.Equal(t, tt.degraded, hasDegradation(n, "data.messageTimestamp"))
		})
	}
}

func TestExtractText_KindDispatch(t *testing.T) {
	tests := []struct {
		name        string
		messageType string
		message     map[string]any
		kind        MessageKind
		text        string
	}{
		{"conversation", "conversation", map[string]any{"conversation": "Hello"}, KindConversation, "Hello"},
		{"extended text", "extendedTextMessage", map[string]any{"extendedTextMessage": map[string]any{"text": "see https://jan.ai"}}, KindExtendedText, "see https://jan.ai"},
		{"image caption", "imageMessage", map[string]any{"imageMessage": map[string]any{"caption": "my cat"}}, KindImage, "my cat"},
		{"video caption", "videoMessage", map[string]any{"videoMessage": map[string]any{"caption": "clip"}}, KindVideo, "clip"},
		{"document caption", "documentMessage", map[string]any{"documentMessage": map[string]any{"caption": "invoice"}}, KindDocument, "invoice"},
		{"audio", "audioMessage", map[string]any{"audioMessage": map[string]any{"seconds": 4}}, KindAudio, TextAudio},
		{"sticker", "stickerMessage", map[string]any{"stickerMessage": map[string]any{}}, KindSticker, TextSticker},
		{"contact", "contactMessage", map[string]any{"contactMessage": map[string]any{"displayName": "Bob"}}, KindContact, TextContact},
		{"contacts array", "contactsArrayMessage", map[string]any{"contactsArrayMessage": map[string]any{}}, KindContact, TextContact},
		{"named location", "locationMessage", map[string]any{"locationMessage": map[string]any{"name": "Office"}}, KindLocation, "(Location: Office)"},
		{"blank location name", "locationMessage", map[string]any{"locationMessage": map[string]any{"name": "  "}}, KindLocation, TextLocation},
		{"image without caption", "imageMessage", map[string]any{"imageMessage": map[string]any{"url": "x"}}, KindUnknown, TextMessageReceived},
		{"unrecognized", "pollCreationMessage", map[string]any{"pollCreationMessage": map[string]any{}}, KindUnknown, TextMessageReceived},
		{"empty", "conversation", map[string]any{}, KindEmpty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, text := ExtractText(tt.messageType, tt.message)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestNormalize_EnvelopeOnlyForNonMessageEvents(t *testing.T) {
	payload := decode(t, `{"event":"connection.update","instance":"sales-line","_testMode":true,"data":{"instance":"sales-line","state":"open"}}`)

	n := newTestNormalizer().Normalize(payload)

	assert.Equal(t, EventConnectionUpdate, n.Event)
	assert.False(t, n.IsMessage())
	assert.True(t, n.TestMode)
	assert.Equal(t, "open", n.Data["state"])
	assert.Empty(t, n.Degradations)
}

func TestPhoneFromAddress(t *testing.T) {
	assert.Equal(t, "5511988887777", PhoneFromAddress("5511988887777@s.whatsapp.net"))
	assert.Equal(t, "5511988887777", PhoneFromAddress("5511988887777"))
	assert.Equal(t, "", PhoneFromAddress(""))
}
