package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds the wait for a correlated reply.
	DefaultTimeout = 30 * time.Second
	// DefaultQueueDepth is the per-subscriber delivery queue capacity.
	DefaultQueueDepth = 256
)

// Option configures a backend Service.
type Option func(s *Service)

// WithLogger sets the structured logger used by the engine.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout overrides the default correlated reply timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithQueueDepth overrides the per-subscriber delivery queue capacity.
func WithQueueDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.queueDepth = depth
		}
	}
}

// Service is the bridge engine: it supervises the backend process, pumps
// messages between its stdio and the network adapters, correlates replies
// to requests by JSON-RPC id and fans inbound traffic out to subscribers.
type Service struct {
	proc       *Process
	writer     *writer
	pending    *correlation
	hub        *hub
	timeout    time.Duration
	queueDepth int
	logger     zerolog.Logger
	done       chan struct{}
}

// New launches the backend process described by cfg and starts the
// dispatcher. A launch failure is returned as *StartError and is fatal.
func New(cfg Config, options ...Option) (*Service, error) {
	s := &Service{
		timeout:    DefaultTimeout,
		queueDepth: DefaultQueueDepth,
		logger:     log.Logger,
		done:       make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	s.proc = newProcess(cfg, s.logger)
	if err := s.proc.Start(); err != nil {
		return nil, err
	}
	s.writer = newWriter(s.proc)
	s.pending = newCorrelation()
	s.hub = newHub(s.queueDepth, s.logger)
	go s.dispatch()
	return s, nil
}

// Call sends a correlated request carrying id and suspends until the
// matching reply arrives, the timeout elapses or ctx is cancelled. The
// correlation entry is registered before the write so a reply can never
// outrun its waiter; when the write fails the entry is removed again.
func (s *Service) Call(ctx context.Context, id json.RawMessage, message []byte) (json.RawMessage, error) {
	line, err := compact(message)
	if err != nil {
		return nil, err
	}
	key := idKey(id)
	entry, err := s.pending.register(key)
	if err != nil {
		return nil, err
	}
	if err := s.writer.writeLine(line); err != nil {
		s.pending.remove(key)
		return nil, err
	}
	return s.pending.await(ctx, entry, s.timeout)
}

// Notify sends message without registering a waiter; any reply the
// backend produces surfaces only through subscribers.
func (s *Service) Notify(_ context.Context, message []byte) error {
	line, err := compact(message)
	if err != nil {
		return err
	}
	return s.writer.writeLine(line)
}

// Subscribe attaches a new broadcast subscriber.
func (s *Service) Subscribe() *Subscriber {
	return s.hub.subscribe()
}

// Unsubscribe detaches a subscriber; safe on every exit path.
func (s *Service) Unsubscribe(subscriber *Subscriber) {
	s.hub.unsubscribe(subscriber)
}

// IsAlive reports backend process liveness.
func (s *Service) IsAlive() bool {
	return s.proc.IsAlive()
}

// Pid returns the backend process identifier.
func (s *Service) Pid() int {
	return s.proc.Pid()
}

// Pending returns the number of outstanding correlated requests.
func (s *Service) Pending() int {
	return s.pending.size()
}

// Subscribers returns the number of attached broadcast subscribers.
func (s *Service) Subscribers() int {
	return s.hub.count()
}

// Done is closed once the dispatcher has observed backend termination and
// cancelled all outstanding requests.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Close terminates the backend process; idempotent.
func (s *Service) Close() {
	s.proc.Stop()
}

// compact reduces message to a single JSON line so concurrent writes can
// never interleave partial frames.
func compact(message []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
