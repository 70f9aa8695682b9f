// Package http serves the quote API over Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

const defaultShutdownTimeout = 15 * time.Second

// Task runs for as long as the server does, e.g. the periodic sync loop.
// Its context is cancelled when the server begins shutting down.
type Task func(ctx context.Context) error

// Server owns the Gin engine and the listener.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	bound  atomic.Pointer[string]

	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(maxBodySize(cfg.MaxRequestSize))

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Engine is where routes get registered.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address while Run is listening, else the configured one.
func (s *Server) Addr() string {
	if addr := s.bound.Load(); addr != nil {
		return *addr
	}

	return s.http.Addr
}

// Run serves until ctx is cancelled, a task fails, or the listener dies, and
// then drains in-flight requests. A task that returns nil does not stop the
// server. The first failure is returned.
func (s *Server) Run(ctx context.Context, tasks ...Task) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.http.Addr, err)
	}

	addr := ln.Addr().String()
	s.bound.Store(&addr)
	defer s.bound.Store(nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening",
			slog.String("addr", addr),
			slog.Duration("read_timeout", s.http.ReadTimeout),
			slog.Duration("write_timeout", s.http.WriteTimeout),
		)

		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()

		return s.shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

func (s *Server) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server", slog.Duration("timeout", s.shutdownTimeout))

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")

	return nil
}

// maxBodySize caps request bodies, which bounds imports.
func maxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
