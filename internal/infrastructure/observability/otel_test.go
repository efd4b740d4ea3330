package observability

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/whatsapp-relay/internal/config"
)

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("authorization=Bearer abc, x-team = relay ,broken,=novalue")

	assert.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-team":        "relay",
	}, headers)
	assert.Empty(t, parseHeaders(""))
}

func TestNormalizeEndpoint(t *testing.T) {
	endpoint, insecure := normalizeEndpoint("https://collector.example.com:4318")
	assert.Equal(t, "collector.example.com:4318", endpoint)
	assert.False(t, insecure)

	endpoint, insecure = normalizeEndpoint("http://otel-collector:4318")
	assert.Equal(t, "otel-collector:4318", endpoint)
	assert.True(t, insecure)

	endpoint, insecure = normalizeEndpoint("otel-collector:4318")
	assert.Equal(t, "otel-collector:4318", endpoint)
	assert.True(t, insecure)
}

func TestIsGRPC(t *testing.T) {
	assert.True(t, isGRPC("grpc"))
	assert.True(t, isGRPC(" GRPC "))
	assert.False(t, isGRPC("http/protobuf"))
	assert.False(t, isGRPC(""))
}

func TestSetup_WithoutExporter(t *testing.T) {
	cfg := &config.Config{ServiceName: "whatsapp-relay", ServiceNamespace: "jan", Environment: "test"}

	shutdown, err := Setup(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	_, span := StartStageSpan(context.Background(), "correlate", "ev-1")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
