package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pipprompter/server/internal/domain"
)

const (
	readHeaderTimeout = 10 * time.Second
	maxBindAttempts   = 3
)

var ErrBindingChanged = errors.New("binding kept changing during start")

// BindError reports that the control server could not take its socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

type iStateRepo interface {
	Get() domain.PresentationState
	MarkRunning(address string, port int) (domain.PresentationState, bool)
	SetRunning(bool) domain.PresentationState
}

// Server owns the control server socket. At most one listener is bound at a
// time; starting again replaces the previous one.
type Server struct {
	stateRepo  iStateRepo
	handler    http.Handler
	onShutdown []func()
	logger     *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func New(stateRepo iStateRepo, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		stateRepo: stateRepo,
		handler:   handler,
		logger:    logger,
	}
}

// OnShutdown registers f to run whenever a running instance is stopped.
func (s *Server) OnShutdown(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onShutdown = append(s.onShutdown, f)
}

// Start binds the address and port held in state and serves in the
// background. A running instance is stopped first. The bind fields lock only
// after the socket is bound, so a failed start never reports running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(ctx); err != nil {
		return fmt.Errorf("failed to stop previous instance: %w", err)
	}

	listener, err := s.bind(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	for _, f := range s.onShutdown {
		srv.RegisterOnShutdown(f)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server stopped unexpectedly", "error", err)
			s.stateRepo.SetRunning(false)
		}
	}()

	s.srv = srv
	s.listener = listener
	s.done = done

	s.logger.InfoContext(ctx, "control server started", "address", listener.Addr().String())
	return nil
}

// bind listens on the binding held in state and marks the server running only
// once the socket is owned. A binding changed between the read and the mark is
// retried with the new values.
func (s *Server) bind(ctx context.Context) (net.Listener, error) {
	for attempt := 1; ; attempt++ {
		state := s.stateRepo.Get()
		addr := net.JoinHostPort(state.ServerAddress, strconv.Itoa(state.ServerPort))

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			s.logger.WarnContext(ctx, "control server failed to start", "address", addr, "error", err)
			return nil, &BindError{Addr: addr, Err: err}
		}

		if _, ok := s.stateRepo.MarkRunning(state.ServerAddress, state.ServerPort); ok {
			return listener, nil
		}

		listener.Close()
		if attempt == maxBindAttempts {
			return nil, &BindError{Addr: addr, Err: ErrBindingChanged}
		}
		s.logger.DebugContext(ctx, "binding changed during start, retrying", "address", addr)
	}
}

// Restart stops the running instance, if any, and binds again using the
// current state.
func (s *Server) Restart(ctx context.Context) error {
	return s.Start(ctx)
}

// Stop shuts the server down and releases its socket. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	addr := s.listener.Addr().String()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "graceful shutdown failed, closing", "error", err)
		s.srv.Close()
	}
	<-s.done

	s.srv = nil
	s.listener = nil
	s.done = nil
	s.stateRepo.SetRunning(false)

	s.logger.InfoContext(ctx, "control server stopped", "address", addr)
	if err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}

	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.srv != nil
}

// Addr returns the bound address, or an empty string when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}
