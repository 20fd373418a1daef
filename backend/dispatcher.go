package backend

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// maxLineSize bounds a single backend output line; anything larger aborts
// the scan and is treated as stream failure.
const maxLineSize = 10 * 1024 * 1024

// envelope probes only the id of an inbound message; the payload itself is
// forwarded verbatim and never interpreted.
type envelope struct {
	Id json.RawMessage `json:"id"`
}

// dispatch drains the backend's output stream on a dedicated goroutine for
// the lifetime of the process: each valid JSON line is fanned out to every
// subscriber and, when it carries a pending id, resolves that waiter.
func (s *Service) dispatch() {
	scanner := bufio.NewScanner(s.proc.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		line := make(json.RawMessage, len(raw))
		copy(line, raw)

		if !json.Valid(line) {
			s.logger.Warn().Str("line", truncate(string(line), 256)).Msg("discarding malformed backend output")
			continue
		}
		s.hub.publish(line)

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil || len(env.Id) == 0 || bytes.Equal(env.Id, nullLiteral) {
			s.logger.Debug().Str("line", truncate(string(line), 256)).Msg("backend notification")
			continue
		}
		key := idKey(env.Id)
		if !s.pending.fulfill(key, line) {
			s.logger.Debug().Str("id", key).Msg("backend reply without a waiter")
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error().Err(err).Msg("backend output stream failed")
	}

	s.proc.markExited()
	crash := &CrashedError{Stderr: s.proc.StderrTail()}
	s.pending.cancelAll(crash)
	s.logger.Info().Msg("dispatcher stopped")
	close(s.done)
}

var nullLiteral = []byte("null")

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
