package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/raaihank/yt-etl/internal/trigger"
)

// handleEvents runs the pipeline for one bucket notification and returns
// the run result. Per-file failures are reported inside the result; the
// response status is 200 whenever the notification itself was valid.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(requestID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.EventsReceived.WithLabelValues("http", "too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "notification too large")
			return
		}
		log.Warn("Failed to read notification", zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	refs, err := trigger.ParseNotification(body)
	if err != nil {
		s.metrics.EventsReceived.WithLabelValues("http", "malformed").Inc()
		log.Warn("Rejecting malformed notification", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.EventsReceived.WithLabelValues("http", "accepted").Inc()

	// A client that hangs up does not abort the invocation.
	result := s.runner.Run(context.WithoutCancel(r.Context()), refs)

	log.Info("Notification processed",
		zap.String("run_id", result.RunID),
		zap.Int("files", len(result.Files)))
	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
