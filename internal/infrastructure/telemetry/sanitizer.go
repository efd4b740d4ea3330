// Package telemetry redacts counterparty data before it reaches logs.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel defines the level of PII sanitization
type PIILevel string

const (
	// PIILevelNone redacts all counterparty content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed hashes addresses and phone numbers with the service salt
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

// ParseLevel maps a config value to a PIILevel, defaulting to hashed.
func ParseLevel(raw string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(raw))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

// addressKeys hold a messaging address or phone number.
var addressKeys = map[string]bool{
	"phone":          true,
	"remote_jid":     true,
	"whatsapp_phone": true,
	"address":        true,
	"participant":    true,
}

// textKeys hold free text written by the counterparty or the agent.
var textKeys = map[string]bool{
	"text":            true,
	"message_content": true,
	"reply":           true,
}

// Sanitizer handles PII sanitization for audit records and logs.
type Sanitizer struct {
	level PIILevel
	salt  string

	phonePattern *regexp.Regexp
	emailPattern *regexp.Regexp
}

// NewSanitizer creates a sanitizer salted per deployment.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level:        level,
		salt:         salt,
		phonePattern: regexp.MustCompile(`\+?\d[\d\s.-]{7,}\d`),
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// SanitizeAddress hashes the user part of a messaging address, keeping the server suffix.
func (s *Sanitizer) SanitizeAddress(address string) string {
	if address == "" {
		return ""
	}
	switch s.level {
	case PIILevelFull:
		return address
	case PIILevelNone:
		return "[REDACTED]"
	}

	user, server, found := strings.Cut(address, "@")
	if !found {
		return fmt.Sprintf("[PHONE:%s]", s.hash(address))
	}
	return fmt.Sprintf("[PHONE:%s]@%s", s.hash(user), server)
}

// SanitizeText redacts phone numbers and emails inside free text.
func (s *Sanitizer) SanitizeText(input string) string {
	switch s.level {
	case PIILevelFull:
		return input
	case PIILevelNone:
		if input == "" {
			return ""
		}
		return "[REDACTED]"
	}

	result := s.emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	return s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
}

// SanitizeFields returns a copy of fields with address and text values redacted.
func (s *Sanitizer) SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil || s.level == PIILevelFull {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		str, ok := v.(string)
		switch {
		case !ok:
			result[k] = v
		case addressKeys[k]:
			result[k] = s.SanitizeAddress(str)
		case textKeys[k]:
			result[k] = s.SanitizeText(str)
		default:
			result[k] = v
		}
	}
	return result
}

func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}
