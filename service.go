package bridge

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/viant/mcp-bridge/backend"
	"github.com/viant/mcp-bridge/server"
)

// Service wires the resolved configuration, the bridge engine and the
// HTTP surface together.
type Service struct {
	options *Options
	engine  *backend.Service
	server  *server.Server
	logger  zerolog.Logger
}

// New resolves the backend command, launches the child process and builds
// the HTTP surface on top of the engine.
func New(ctx context.Context, options *Options) (*Service, error) {
	cfg, err := options.backendConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("component", "bridge").Logger()
	engine, err := backend.New(*cfg,
		backend.WithLogger(log.Logger),
		backend.WithTimeout(time.Duration(options.Timeout)*time.Second),
		backend.WithQueueDepth(options.QueueDepth))
	if err != nil {
		return nil, err
	}
	serverOptions := []server.Option{
		server.WithLogger(log.Logger),
		server.WithAuthToken(options.AuthToken),
		server.WithJWTAuth(options.JWTAuth),
	}
	if len(options.Origins) > 0 {
		cors := &server.Cors{AllowOrigins: options.Origins, AllowHeaders: []string{"*"}, AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions}}
		serverOptions = append(serverOptions, server.WithCORS(cors))
	}
	srv, err := server.New(engine, serverOptions...)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return &Service{
		options: options,
		engine:  engine,
		server:  srv,
		logger:  logger,
	}, nil
}

// Engine exposes the underlying bridge engine, mainly for embedding.
func (s *Service) Engine() *backend.Service {
	return s.engine
}

// ListenAndServe runs the HTTP surface until ctx is cancelled or a
// termination signal arrives, then shuts down gracefully and stops the
// backend process.
func (s *Service) ListenAndServe(ctx context.Context) error {
	httpServer := s.server.HTTP(ctx, s.options.Addr())

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", httpServer.Addr).Int("pid", s.engine.Pid()).Msg("bridge listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errChan:
		s.engine.Close()
		return err
	case <-stop:
		s.logger.Info().Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		_ = httpServer.Close()
	}
	s.engine.Close()
	return nil
}
