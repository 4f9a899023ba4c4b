package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("JSONWithComponent", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithSink(Config{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
		require.NoError(t, err)

		log.WithComponent("decode").Info("Loaded CSV", zap.String("encoding", "cp949"))
		require.NoError(t, log.Sync())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "Loaded CSV", entry["msg"])
		assert.Equal(t, "decode", entry["component"])
		assert.Equal(t, "cp949", entry["encoding"])
		assert.Contains(t, entry, "timestamp")
	})

	t.Run("SetLevelAffectsDerivedLoggers", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := NewWithSink(Config{Level: "info", Format: "console"}, zapcore.AddSync(&buf))
		require.NoError(t, err)
		child := log.WithComponent("etl")

		child.Debug("hidden")
		require.NoError(t, log.SetLevel("debug"))
		assert.Equal(t, zapcore.DebugLevel, log.Level())
		child.Debug("shown")

		out := buf.String()
		assert.False(t, strings.Contains(out, "hidden"))
		assert.True(t, strings.Contains(out, "shown"))

		assert.Error(t, log.SetLevel("verbose"))
	})
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Basic Zm9vOmJhcg==")
	h.Set("Content-Type", "application/json")
	h.Set("X-Amz-Security-Token", "abc")

	safe := RedactHeaders(h)
	assert.Equal(t, "[REDACTED]", safe["Authorization"])
	assert.Equal(t, "[REDACTED]", safe["X-Amz-Security-Token"])
	assert.Equal(t, "application/json", safe["Content-Type"])
}
