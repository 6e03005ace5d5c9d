package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", "json", &buf)

	log.Info().Str("project", "p1").Msg("billing updated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "billing updated", entry["message"])
	assert.Equal(t, "p1", entry["project"])
	assert.Equal(t, "billcron", entry["service"])
	assert.Contains(t, entry, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", "json", &buf)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "console", &buf)

	log.Debug().Str("job", "billing-enable-p1-1").Msg("registered")

	out := buf.String()
	assert.Contains(t, out, "registered")
	assert.Contains(t, out, "job=")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty", zerolog.InfoLevel))
}
