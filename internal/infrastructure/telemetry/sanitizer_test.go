package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, PIILevelNone, ParseLevel("none"))
	assert.Equal(t, PIILevelFull, ParseLevel(" FULL "))
	assert.Equal(t, PIILevelHashed, ParseLevel("hashed"))
	assert.Equal(t, PIILevelHashed, ParseLevel(""))
	assert.Equal(t, PIILevelHashed, ParseLevel("bogus"))
}

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		name  string
		level PIILevel
		input string
		check func(t *testing.T, got string)
	}{
		{
			name:  "hashed keeps server suffix",
			level: PIILevelHashed,
			input: "5511988887777@s.whatsapp.net",
			check: func(t *testing.T, got string) {
				assert.NotContains(t, got, "5511988887777")
				assert.Contains(t, got, "[PHONE:")
				assert.Contains(t, got, "@s.whatsapp.net")
			},
		},
		{
			name:  "hashed bare number",
			level: PIILevelHashed,
			input: "5511988887777",
			check: func(t *testing.T, got string) {
				assert.NotContains(t, got, "5511988887777")
				assert.Contains(t, got, "[PHONE:")
			},
		},
		{
			name:  "none redacts",
			level: PIILevelNone,
			input: "5511988887777@s.whatsapp.net",
			check: func(t *testing.T, got string) { assert.Equal(t, "[REDACTED]", got) },
		},
		{
			name:  "full passes through",
			level: PIILevelFull,
			input: "5511988887777@s.whatsapp.net",
			check: func(t *testing.T, got string) { assert.Equal(t, "5511988887777@s.whatsapp.net", got) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewSanitizer(tt.level, "relay").SanitizeAddress(tt.input))
		})
	}
}

func TestSanitizeAddress_StableHash(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "relay")
	assert.Equal(t, s.SanitizeAddress("5511988887777@s.whatsapp.net"), s.SanitizeAddress("5511988887777@s.whatsapp.net"))

	other := NewSanitizer(PIILevelHashed, "other-salt")
	assert.NotEqual(t, s.SanitizeAddress("5511988887777"), other.SanitizeAddress("5511988887777"))
}

func TestSanitizeText(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "relay")
	got := s.SanitizeText("call me on +55 11 98888-7777 or mail maria@example.com please")

	assert.NotContains(t, got, "98888-7777")
	assert.NotContains(t, got, "maria@example.com")
	assert.Contains(t, got, "[PHONE:")
	assert.Contains(t, got, "[EMAIL:")
	assert.Contains(t, got, "please")

	assert.Equal(t, "Hello", s.SanitizeText("Hello"))
	assert.Equal(t, "", NewSanitizer(PIILevelNone, "relay").SanitizeText(""))
}

func TestSanitizeFields(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "relay")
	fields := map[string]any{
		"phone":          "5511988887777@s.whatsapp.net",
		"interaction_id": "int-1",
		"attempts":       2,
		"text":           "my number is 5511988887777",
	}

	got := s.SanitizeFields(fields)
	require.Len(t, got, 4)
	assert.NotContains(t, got["phone"], "5511988887777")
	assert.NotContains(t, got["text"], "5511988887777")
	assert.Equal(t, "int-1", got["interaction_id"])
	assert.Equal(t, 2, got["attempts"])
	assert.Equal(t, "5511988887777@s.whatsapp.net", fields["phone"], "input must not be mutated")

	assert.Nil(t, s.SanitizeFields(nil))
	full := NewSanitizer(PIILevelFull, "relay")
	assert.Equal(t, fields, full.SanitizeFields(fields))
}
