package inbound

import "strings"

// GroupAddressSuffix is the suffix of group conversation addresses.
const GroupAddressSuffix = "@g.us"

// GroupSignals lists which independent group indicators were observed.
type GroupSignals struct {
	GroupAddress       bool
	SenderKeyMarker    bool
	ParticipantPresent bool
}

// Any reports whether at least one signal fired.
func (s GroupSignals) Any() bool {
	return s.GroupAddress || s.SenderKeyMarker || s.ParticipantPresent
}

// IsGroup reports whether a message originated in a group conversation.
func IsGroup(remoteAddress string, payload map[string]any) bool {
	return DetectGroup(remoteAddress, payload).Any()
}

// DetectGroup evaluates each group signal independently.
func DetectGroup(remoteAddress string, payload map[string]any) GroupSignals {
	signals := GroupSignals{
		GroupAddress: strings.HasSuffix(remoteAddress, GroupAddressSuffix),
	}

	data, _ := payload["data"].(map[string]any)
	if message, ok := data["message"].(map[string]any); ok {
		signals.SenderKeyMarker = truthy(message["senderKeyDistributionMessage"])
	}

	signals.ParticipantPresent = truthy(payload["participant"]) || truthy(data["participant"])
	if key, ok := data["key"].(map[string]any); ok && truthy(key["participant"]) {
		signals.ParticipantPresent = true
	}

	return signals
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	default:
		return true
	}
}
