package delivery

import (
	"encoding/json"
	"fmt"
)

// Fail reasons written on outbound messages.
const (
	ReasonUnknownProviderError = "Unknown error from Evolution API"
	ReasonAmbiguousResponse    = "Unexpected response format from Evolution API"
)

// Outcome is the classified result of one send attempt.
// It is one of Success, Failure or Ambiguous.
type Outcome interface {
	isOutcome()
	// Label names the variant for metrics and logs.
	Label() string
}

// Success means the provider accepted the message.
type Success struct {
	ProviderMessageID string
}

// Failure means the provider or transport rejected the message.
type Failure struct {
	Reason string
	// State is the provider instance connection state, when reported.
	State string
}

// Ambiguous means the response shape was not recognized.
type Ambiguous struct {
	RawDescription string
}

func (Success) isOutcome()   {}
func (Failure) isOutcome()   {}
func (Ambiguous) isOutcome() {}

func (Success) Label() string   { return "success" }
func (Failure) Label() string   { return "failure" }
func (Ambiguous) Label() string { return "ambiguous" }

// Classify maps a loosely typed provider send response onto an Outcome.
func Classify(resp map[string]any) Outcome {
	if resp == nil {
		return Ambiguous{RawDescription: "null"}
	}

	if key := resp["key"]; present(key) {
		return Success{ProviderMessageID: providerMessageID(key)}
	}

	switch success := resp["success"].(type) {
	case bool:
		if success {
			return Success{}
		}
		reason := failureReason(resp["error"])
		state, _ := resp["state"].(string)
		return Failure{Reason: reason, State: state}
	}

	return Ambiguous{RawDescription: describe(resp)}
}

// present reports whether a key value identifies a sent message.
func present(key any) bool {
	switch k := key.(type) {
	case map[string]any:
		return len(k) > 0
	case string:
		return k != ""
	}
	return false
}

func failureReason(v any) string {
	switch reason := v.(type) {
	case nil:
		return ReasonUnknownProviderError
	case string:
		if reason == "" {
			return ReasonUnknownProviderError
		}
		return reason
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func providerMessageID(key any) string {
	m, ok := key.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["id"].(string)
	return id
}

func describe(resp map[string]any) string {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("%v", resp)
	}
	const maxLen = 512
	if len(raw) > maxLen {
		return string(raw[:maxLen]) + "..."
	}
	return string(raw)
}
