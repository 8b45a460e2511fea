// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server accepts connections on an already acquired listener and
// serves HTTP on them until its context is cancelled.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/hearth/internal/fixedpool"
	"github.com/z5labs/hearth/pkg/health"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
	"github.com/z5labs/hearth/security"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a [Server].
type Option func(*Server)

// ReadTimeout sets the maximum duration for reading the entire request,
// including the body. The default is 5 seconds.
func ReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.srv.ReadTimeout = d
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request headers.
// The default is 2 seconds.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.srv.ReadHeaderTimeout = d
	}
}

// WriteTimeout sets the maximum duration before timing out writes of the
// response. The default is 10 seconds.
func WriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.srv.WriteTimeout = d
	}
}

// IdleTimeout sets the maximum duration to wait for the next request when
// keep-alives are enabled. The default is 120 seconds.
func IdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.srv.IdleTimeout = d
	}
}

// MaxHeaderBytes sets the maximum number of bytes read while parsing the
// request line and headers. The default is 1 MiB.
func MaxHeaderBytes(n int) Option {
	return func(s *Server) {
		s.srv.MaxHeaderBytes = n
	}
}

// ShutdownTimeout bounds how long in-flight requests are waited for once
// the run context is cancelled. The default is 30 seconds.
func ShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// Readiness is set healthy while the server accepts connections and
// unhealthy once shutdown begins.
func Readiness(m *health.Binary) Option {
	return func(s *Server) {
		s.readiness = m
	}
}

// LogHandler sets the handler used for logging.
func LogHandler(h slog.Handler) Option {
	return func(s *Server) {
		s.log = slog.New(h)
	}
}

// Server serves HTTP on a single listener.
type Server struct {
	log             *slog.Logger
	ls              net.Listener
	sc              *security.Context
	srv             *http.Server
	shutdownTimeout time.Duration
	readiness       *health.Binary
}

// New returns a [Server] dispatching to h over ls. sc is the security
// context shared with the application; it is nil for plain transports.
// ls is expected to already be wrapped for the transport in use.
func New(ls net.Listener, h http.Handler, sc *security.Context, opts ...Option) *Server {
	s := &Server{
		log: logging.Discard(),
		ls:  ls,
		sc:  sc,
		srv: &http.Server{
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv.Handler = otelhttp.NewHandler(
		withRequestID(h),
		"hearth",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	s.srv.ErrorLog = slog.NewLogLogger(s.log.Handler(), slog.LevelWarn)
	return s
}

// Addr returns the address the server accepts on.
func (s *Server) Addr() net.Addr {
	return s.ls.Addr()
}

// Run serves until ctx is cancelled, then shuts down gracefully. A
// cancelled context is not an error.
func (s *Server) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "serving", slogfield.Addr(s.ls.Addr()))
	if s.readiness != nil {
		s.readiness.Set(true)
	}

	err := fixedpool.Wait(
		ctx,
		func(ctx context.Context) error {
			return s.srv.Serve(s.ls)
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return s.shutdown(ctx)
		},
	)

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.log.ErrorContext(ctx, "server stopped unexpectedly", slogfield.Error(err))
	return err
}

func (s *Server) shutdown(ctx context.Context) error {
	if s.readiness != nil {
		s.readiness.Set(false)
	}
	s.log.InfoContext(ctx, "shutting down", slogfield.Duration("timeout", s.shutdownTimeout))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// LoadCertificate reloads the certificate of the shared security context.
// Failures are logged and the previous certificate keeps being served;
// the listener and established connections are never affected.
func (s *Server) LoadCertificate(ctx context.Context) {
	if s.sc == nil {
		s.log.DebugContext(ctx, "no security context, skipping certificate reload")
		return
	}

	err := s.sc.Load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to reload certificate", slogfield.Error(err))
		return
	}
	s.log.InfoContext(ctx, "reloaded certificate", slogfield.Uint64("generation", s.sc.Generation()))
}
