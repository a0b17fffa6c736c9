package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", true)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Str("poller", "orderbook").Msg("fetch failed")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "orderbook", entry["poller"])
	assert.Equal(t, "fetch failed", entry["message"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "loud", true).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "", true).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewWithWriter(&bytes.Buffer{}, "DEBUG", false).GetLevel())
}
