// Package server provides graceful shutdown functionality for lifeboard services
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Shutdownable represents a component that can be gracefully shut down
type Shutdownable interface {
	Shutdown(ctx context.Context) error
	Name() string
}

// ShutdownFunc wraps a function to implement Shutdownable
type ShutdownFunc struct {
	name string
	fn   func(context.Context) error
}

// NewShutdownFunc creates a Shutdownable from a function
func NewShutdownFunc(name string, fn func(context.Context) error) *ShutdownFunc {
	return &ShutdownFunc{name: name, fn: fn}
}

// Name returns the component name
func (s *ShutdownFunc) Name() string {
	return s.name
}

// Shutdown calls the wrapped function
func (s *ShutdownFunc) Shutdown(ctx context.Context) error {
	return s.fn(ctx)
}

// GracefulShutdown manages graceful shutdown of an HTTP server and its dependencies
type GracefulShutdown struct {
	server          *http.Server
	logger          *zap.Logger
	shutdownables   []Shutdownable
	shutdownTimeout time.Duration
	signalChan      chan os.Signal
	mu              sync.Mutex
}

// Config holds configuration for graceful shutdown
type Config struct {
	Server          *http.Server
	Logger          *zap.Logger
	Shutdownables   []Shutdownable
	ShutdownTimeout time.Duration
}

// New creates a new GracefulShutdown manager
func New(cfg Config) *GracefulShutdown {
	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &GracefulShutdown{
		server:          cfg.Server,
		logger:          cfg.Logger,
		shutdownables:   cfg.Shutdownables,
		shutdownTimeout: timeout,
		signalChan:      make(chan os.Signal, 1),
	}
}

// Start blocks until a termination signal arrives, then shuts down the
// HTTP server followed by every registered dependency.
func (g *GracefulShutdown) Start() {
	signal.Notify(g.signalChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-g.signalChan

	g.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), g.shutdownTimeout)
	defer cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	for _, s := range g.shutdownables {
		if err := s.Shutdown(ctx); err != nil {
			g.logger.Error("Component shutdown error",
				zap.String("component", s.Name()),
				zap.Error(err))
		} else {
			g.logger.Info("Component shut down", zap.String("component", s.Name()))
		}
	}
}
