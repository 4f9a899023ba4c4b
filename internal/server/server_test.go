package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/config"
	"github.com/raaihank/yt-etl/internal/etl"
	"github.com/raaihank/yt-etl/internal/logger"
	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/websocket"
)

const notification = `{"Records":[{"s3":{"bucket":{"name":"yt"},"object":{"key":"raw/USvideos.csv"}}}]}`

type fakeRunner struct {
	mu   sync.Mutex
	refs [][]etl.FileRef
}

func (f *fakeRunner) Run(_ context.Context, refs []etl.FileRef) *etl.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, refs)

	result := &etl.RunResult{RunID: "run-1", Status: etl.StatusSuccess}
	for _, ref := range refs {
		result.Files = append(result.Files, &etl.FileResult{
			RunID:  "run-1",
			Bucket: ref.Bucket,
			Key:    ref.Key,
			Status: etl.StatusFailed,
		})
	}
	return result
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeRunner, *metrics.Metrics) {
	t.Helper()
	cfg := config.GetDefaults()
	if mutate != nil {
		mutate(cfg)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	runner := &fakeRunner{}
	hub := websocket.NewHub(&cfg.WebSocket, zap.NewNop())
	s := New(cfg, runner, hub, reg, m, &logger.Logger{Logger: zap.NewNop()})
	return s, runner, m
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndInfo(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = do(s, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "yt-etl", got["name"])
	assert.Equal(t, "youtube-trending", got["bucket"])
}

func TestEvents(t *testing.T) {
	t.Run("RunsPipeline", func(t *testing.T) {
		s, runner, m := newTestServer(t, nil)

		rec := do(s, http.MethodPost, "/events", notification)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		var result etl.RunResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "success", result.Status)
		require.Len(t, result.Files, 1)
		assert.Equal(t, etl.StatusFailed, result.Files[0].Status)

		require.Len(t, runner.refs, 1)
		assert.Equal(t, []etl.FileRef{{Bucket: "yt", Key: "raw/USvideos.csv"}}, runner.refs[0])
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("http", "accepted")))
	})

	t.Run("Malformed", func(t *testing.T) {
		s, runner, _ := newTestServer(t, nil)
		rec := do(s, http.MethodPost, "/events", `{"Records": [`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, runner.refs)
	})

	t.Run("TooLarge", func(t *testing.T) {
		s, _, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })
		rec := do(s, http.MethodPost, "/events", notification)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		s, _, _ := newTestServer(t, nil)
		rec := do(s, http.MethodGet, "/events", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("RateLimited", func(t *testing.T) {
		s, runner, m := newTestServer(t, func(c *config.Config) {
			c.Server.RateLimit = 0.001
			c.Server.RateBurst = 2
		})

		codes := make([]int, 3)
		for i := range codes {
			codes[i] = do(s, http.MethodPost, "/events", notification).Code
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Len(t, runner.refs, 2)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsReceived.WithLabelValues("http", "rate_limited")))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, m := newTestServer(t, nil)
	m.Runs.Inc()

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ytetl_runs_total 1")

	disabled, _, _ := newTestServer(t, func(c *config.Config) { c.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, do(disabled, http.MethodGet, "/metrics", "").Code)
}
