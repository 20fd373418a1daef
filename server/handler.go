package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/viant/jsonrpc"

	"github.com/viant/mcp-bridge/backend"
)

// maxBodySize bounds an inbound JSON-RPC request body.
const maxBodySize = 10 * 1024 * 1024

// probe extracts only the envelope fields the bridge needs; the body is
// forwarded to the backend verbatim.
type probe struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
}

func (p *probe) isNotification() bool {
	return len(p.Id) == 0 || string(p.Id) == "null"
}

// handleMCP forwards a JSON-RPC request to the backend. A request carrying
// an id suspends until the correlated reply arrives; a notification is
// acknowledged immediately.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, nil, jsonrpc.NewInvalidRequest("failed to read request body", nil))
		return
	}
	var request probe
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeError(w, http.StatusBadRequest, nil, jsonrpc.NewInvalidRequest("invalid JSON-RPC payload: "+err.Error(), nil))
		return
	}
	if request.isNotification() {
		if err := s.backend.Notify(r.Context(), body); err != nil {
			s.writeError(w, statusFor(err), nil, errorFor(err))
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "notification_sent"})
		return
	}
	reply, err := s.backend.Call(r.Context(), request.Id, body)
	if err != nil {
		s.writeError(w, statusFor(err), request.Id, errorFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(reply); err != nil {
		s.logger.Error().Err(err).Str("method", request.Method).Msg("failed to write reply")
	}
}

// handleMessages is the fire-and-forget ingress: the body is written to
// the backend and acknowledged without waiting, regardless of whether it
// carries an id. Correlated replies, if any, surface only through /sse.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || !json.Valid(body) {
		s.writeError(w, http.StatusBadRequest, nil, jsonrpc.NewInvalidRequest("invalid JSON-RPC payload", nil))
		return
	}
	if err := s.backend.Notify(r.Context(), body); err != nil {
		s.writeError(w, statusFor(err), nil, errorFor(err))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleHealth reports backend liveness; it is never gated by the authorizer.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.backend.IsAlive() {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy", "pid": s.backend.Pid()})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unhealthy", "detail": "backend process not running"})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var unavailable *backend.UnavailableError
	var crashed *backend.CrashedError
	switch {
	case errors.Is(err, backend.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, backend.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &unavailable), errors.As(err, &crashed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorFor shapes an engine error into a JSON-RPC error object.
func errorFor(err error) *jsonrpc.Error {
	if errors.Is(err, backend.ErrDuplicateID) {
		return jsonrpc.NewInvalidRequest(err.Error(), nil)
	}
	return jsonrpc.NewInternalError(err.Error(), nil)
}

func (s *Server) writeError(w http.ResponseWriter, status int, id json.RawMessage, rpcErr *jsonrpc.Error) {
	var requestId interface{}
	if len(id) > 0 {
		_ = json.Unmarshal(id, &requestId)
	}
	response := &jsonrpc.Response{Jsonrpc: jsonrpc.Version, Id: requestId, Error: rpcErr}
	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, rpcErr.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
