package server

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// handleSSE subscribes the client to the broadcast hub and streams every
// backend line as a server-sent event until the client disconnects. The
// subscription is released on every exit path.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	subscriber := s.backend.Subscribe()
	defer s.backend.Unsubscribe(subscriber)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := fmt.Fprintf(w, "event: open\ndata: {\"session\":%q}\n\n", subscriber.ID()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	logger := s.logger.With().Str("subscriber", subscriber.ID()).Logger()
	logger.Info().Msg("event stream opened")

	for {
		select {
		case <-r.Context().Done():
			logger.Info().Msg("event stream closed")
			return
		case line := <-subscriber.Queue():
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				logger.Error().Err(err).Msg("failed to write event")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			// Comment line acting as a heartbeat so idle streams survive proxies.
			if _, err := io.WriteString(w, ":ping\n\n"); err != nil {
				logger.Error().Err(err).Msg("failed to write heartbeat")
				return
			}
			flusher.Flush()
		}
	}
}
