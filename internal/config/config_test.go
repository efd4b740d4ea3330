package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "whatsapp-relay", cfg.ServiceName)
	assert.Equal(t, 500, cfg.ReplyMaxTokens)
	assert.InDelta(t, 0.7, cfg.ReplyTemperature, 0.0001)
	assert.Equal(t, 5*time.Minute, cfg.SweeperStaleAfter)
	assert.Equal(t, ":8095", cfg.Addr())
	assert.Equal(t, "http/protobuf", cfg.OTLPProtocol)
	assert.Equal(t, "hashed", cfg.LogPIILevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SWEEPER_MAX_ATTEMPTS", "0")
	t.Setenv("REPLY_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 3, cfg.SweeperMaxAttempts)
	assert.Equal(t, "gpt-4o-mini", cfg.ReplyModel)
}

func TestLoad_RejectsEmptyEvolutionURL(t *testing.T) {
	t.Setenv("EVOLUTION_API_URL", " ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVOLUTION_API_URL")
}

func TestLoad_StorageDriver(t *testing.T) {
	t.Setenv("RELAY_STORAGE", "memory")
	t.Setenv("RELAY_DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)

	t.Setenv("RELAY_STORAGE", "sqlite")
	_, err = Load()
	require.Error(t, err)
}
