package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGroup_EachSignalInIsolation(t *testing.T) {
	direct := "5511988887777@s.whatsapp.net"

	tests := []struct {
		name    string
		address string
		payload map[string]any
		want    GroupSignals
	}{
		{
			name:    "direct message",
			address: direct,
			payload: map[string]any{"data": map[string]any{"message": map[string]any{"conversation": "hi"}}},
			want:    GroupSignals{},
		},
		{
			name:    "group address suffix",
			address: "120363025@g.us",
			payload: map[string]any{},
			want:    GroupSignals{GroupAddress: true},
		},
		{
			name:    "sender key distribution marker",
			address: direct,
			payload: map[string]any{"data": map[string]any{"message": map[string]any{
				"senderKeyDistributionMessage": map[string]any{"groupId": "x"},
			}}},
			want: GroupSignals{SenderKeyMarker: true},
		},
		{
			name:    "top level participant",
			address: direct,
			payload: map[string]any{"participant": "5511911112222@s.whatsapp.net"},
			want:    GroupSignals{ParticipantPresent: true},
		},
		{
			name:    "participant inside key",
			address: direct,
			payload: map[string]any{"data": map[string]any{"key": map[string]any{"participant": "5511911112222@s.whatsapp.net"}}},
			want:    GroupSignals{ParticipantPresent: true},
		},
		{
			name:    "empty participant is ignored",
			address: direct,
			payload: map[string]any{"participant": ""},
			want:    GroupSignals{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectGroup(tt.address, tt.payload)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Any(), IsGroup(tt.address, tt.payload))
		})
	}
}

func TestIsGroup_NilPayload(t *testing.T) {
	assert.False(t, IsGroup("", nil))
}
