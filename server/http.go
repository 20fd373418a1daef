package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/viant/mcp-bridge/backend"
)

const (
	mcpURI      = "/mcp"
	messagesURI = "/messages"
	sseURI      = "/sse"
	healthURI   = "/health"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithAuthToken gates every endpoint except /health behind the shared
// bearer token; empty disables authorization.
func WithAuthToken(token string) Option {
	return func(s *Server) error {
		s.authToken = token
		return nil
	}
}

// WithJWTAuth switches the bearer check from byte equality to HS256 JWT
// validation with the shared token as signing key.
func WithJWTAuth(enabled bool) Option {
	return func(s *Server) error {
		s.jwtAuth = enabled
		return nil
	}
}

// WithCORS overrides the default CORS policy.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.cors = cors
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithPingInterval overrides the SSE heartbeat interval.
func WithPingInterval(interval time.Duration) Option {
	return func(s *Server) error {
		if interval > 0 {
			s.pingInterval = interval
		}
		return nil
	}
}

// Server is the thin HTTP adapter exposing the bridge engine.
type Server struct {
	backend      *backend.Service
	authToken    string
	jwtAuth      bool
	cors         *Cors
	pingInterval time.Duration
	logger       zerolog.Logger
}

// New creates a new Server instance on top of an engine.
func New(service *backend.Service, options ...Option) (*Server, error) {
	s := &Server{
		backend:      service,
		cors:         defaultCors(),
		pingInterval: 15 * time.Second,
		logger:       log.Logger,
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// HTTP creates and returns an HTTP server with the bridge endpoints
// mounted behind the authorizer, origin validation and CORS middleware;
// /health stays outside the authorized chain.
func (s *Server) HTTP(_ context.Context, addr string) *http.Server {
	if addr == "" {
		// Default bind only to localhost to reduce DNS rebinding risk
		addr = "127.0.0.1:8000"
	}
	var middlewareHandlers []Middleware
	if s.authToken != "" {
		middlewareHandlers = append(middlewareHandlers, s.bearerAuthorizer)
	}
	if s.cors != nil {
		middlewareHandlers = append(middlewareHandlers, originValidationMiddleware(s.cors.AllowOrigins))
		corsMiddleware := &corsHandler{Cors: s.cors}
		middlewareHandlers = append(middlewareHandlers, corsMiddleware.Middleware)
	}
	mux := http.NewServeMux()
	mux.Handle("POST "+mcpURI, ChainMiddlewareHandlers(http.HandlerFunc(s.handleMCP), middlewareHandlers...))
	mux.Handle("POST "+messagesURI, ChainMiddlewareHandlers(http.HandlerFunc(s.handleMessages), middlewareHandlers...))
	mux.Handle("GET "+sseURI, ChainMiddlewareHandlers(http.HandlerFunc(s.handleSSE), middlewareHandlers...))
	mux.HandleFunc("GET "+healthURI, s.handleHealth)
	if s.cors != nil {
		// preflight carries no credential; it bypasses the authorizer and
		// short-circuits inside the CORS middleware
		preflight := &corsHandler{Cors: s.cors}
		mux.Handle("OPTIONS /", preflight.Middleware(http.NotFoundHandler()))
	}
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
