package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Info("hidden")
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Warn("visible", "owner_id", "u1")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "u1", entry["owner_id"])
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf).With("component", "icps")

	log.Info("created")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "icps", entry["component"])
}

func TestLoggerOptions(t *testing.T) {
	t.Run("Success - base attributes on every entry", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithOptions(Options{Level: "INFO", Writer: &buf, Service: "noturno-worker", Environment: "staging"})

		log.Info("started")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "noturno-worker", entry["service"])
		assert.Equal(t, "staging", entry["environment"])
	})

	t.Run("Success - text format", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithOptions(Options{Format: "text", Writer: &buf})

		log.Info("started", "job_id", "j1")
		assert.Contains(t, buf.String(), "msg=started")
		assert.Contains(t, buf.String(), "job_id=j1")
	})

	t.Run("Success - credentials are redacted", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("info", &buf).With("sentry_dsn", "https://key@sentry.io/1")

		log.Warn("rejected caller token", "token", "eyJhbGci", "OpenAI_API_Key", "sk-123", "owner_id", "u1", "tokens", 512)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, Redacted, entry["token"])
		assert.Equal(t, Redacted, entry["OpenAI_API_Key"])
		assert.Equal(t, Redacted, entry["sentry_dsn"])
		assert.Equal(t, "u1", entry["owner_id"])
		assert.Equal(t, 512.0, entry["tokens"])
		assert.NotContains(t, buf.String(), "sk-123")
	})
}
