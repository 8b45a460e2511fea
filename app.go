// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package hearth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/z5labs/hearth/pkg/health"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
	"github.com/z5labs/hearth/router"
	"github.com/z5labs/hearth/security"
	"github.com/z5labs/hearth/server"
	"github.com/z5labs/hearth/socket"
	"github.com/z5labs/hearth/transport"

	"github.com/gorilla/websocket"
)

// SocketProvider acquires the socket an [App] listens on.
type SocketProvider interface {
	Acquire(context.Context) (*socket.Handle, error)
}

// Option configures an [App].
type Option func(*App)

// WithRouter replaces the route table of the [App].
func WithRouter(r *router.Router) Option {
	return func(a *App) {
		a.router = r
	}
}

// WithSocketProvider replaces the default systemd activation provider.
func WithSocketProvider(p SocketProvider) Option {
	return func(a *App) {
		a.provider = p
	}
}

// WithTransport overrides the transport chosen at build time.
func WithTransport(t transport.Transport) Option {
	return func(a *App) {
		a.transport = t
	}
}

// WithSecurityContext installs sc, see [App.SetSecurityContext].
func WithSecurityContext(sc *security.Context) Option {
	return func(a *App) {
		a.sc = sc
	}
}

// LogHandler sets the handler used for logging. It is shared with the
// default socket provider, router and server.
func LogHandler(h slog.Handler) Option {
	return func(a *App) {
		a.log = slog.New(h)
	}
}

// ServerOptions are passed to the server created by [App.Run].
func ServerOptions(opts ...server.Option) Option {
	return func(a *App) {
		a.serverOpts = append(a.serverOpts, opts...)
	}
}

// HealthEndpoints registers prefix+"/liveness" and prefix+"/readiness".
// Readiness only reports healthy while the server is accepting connections.
func HealthEndpoints(prefix string) Option {
	return func(a *App) {
		a.healthPrefix = strings.TrimSuffix(prefix, "/")
		a.registerHealth = true
	}
}

// App is the application instance. It owns the route table, an optional
// shared security context and, while running, the listening server.
type App struct {
	log            *slog.Logger
	router         *router.Router
	provider       SocketProvider
	transport      transport.Transport
	serverOpts     []server.Option
	healthPrefix   string
	registerHealth bool
	ready          *health.Binary

	ran   atomic.Bool
	state atomic.Int32

	mu  sync.Mutex
	sc  *security.Context
	srv *server.Server
}

// New returns an [App] in the [Constructed] state.
func New(opts ...Option) *App {
	a := &App{
		log:       logging.Discard(),
		transport: DefaultTransport(),
		ready:     &health.Binary{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.router == nil {
		a.router = router.New(router.LogHandler(a.log.Handler()))
	}
	if a.provider == nil {
		a.provider = socket.NewProvider(socket.LogHandler(a.log.Handler()))
	}
	if a.registerHealth {
		a.router.NewRuleDynamic(a.healthPrefix + "/liveness").
			Handler(health.NewHandler(health.MetricFunc(func(context.Context) bool { return true })))
		a.router.NewRuleDynamic(a.healthPrefix + "/readiness").
			Handler(health.NewHandler(a.ready))
	}
	if a.sc != nil || a.registerHealth {
		a.advance(Configured)
	}
	return a
}

// State returns the current lifecycle state.
func (a *App) State() State {
	return State(a.state.Load())
}

// advance moves to s unless the App is already past it.
func (a *App) advance(s State) {
	for {
		cur := a.state.Load()
		if cur >= int32(s) {
			return
		}
		if a.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// SetSecurityContext installs the security context shared with the
// server. It must be called before [App.Run] to take effect.
func (a *App) SetSecurityContext(sc *security.Context) *App {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sc = sc
	a.advance(Configured)
	if sc != nil {
		a.log.Info("installed security context", slogfield.String("profile", sc.Profile().String()))
	}
	return a
}

func (a *App) securityContext() *security.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sc
}

// LoadCertificate asks the running server to reload its certificate. It
// does nothing when no server is running. Failures are logged by the
// server, which keeps serving the previous certificate.
func (a *App) LoadCertificate(ctx context.Context) {
	a.mu.Lock()
	srv := a.srv
	a.mu.Unlock()

	if srv == nil {
		a.log.DebugContext(ctx, "no running server, ignoring certificate reload")
		return
	}
	srv.LoadCertificate(ctx)
}

// RouteDynamic registers a rule whose pattern is only known at run time.
func (a *App) RouteDynamic(pattern string) *router.Rule {
	a.advance(Configured)
	return a.router.NewRuleDynamic(pattern)
}

// Route registers a rule for a literal pattern identified by tag, which
// should be declared once per pattern:
//
//	var healthTag = router.TagOf("/health")
func (a *App) Route(tag router.Tag, pattern string) *router.Rule {
	a.advance(Configured)
	return a.router.NewRuleTagged(tag, pattern)
}

// Validate checks the route table. It must succeed before the App serves
// and may only succeed once; [App.Run] calls it when it has not been called.
func (a *App) Validate() error {
	err := a.router.Validate()
	if err != nil {
		return err
	}
	a.advance(Validated)
	return nil
}

// Handle dispatches an ordinary request.
func (a *App) Handle(w http.ResponseWriter, r *http.Request) {
	a.router.Handle(w, r)
}

// HandleUpgrade hands a protocol upgrade request to its rule.
func (a *App) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	a.router.HandleUpgrade(w, r)
}

// ServeHTTP implements the [http.Handler] interface. Websocket upgrade
// requests go to [App.HandleUpgrade], everything else to [App.Handle].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		a.HandleUpgrade(w, r)
		return
	}
	a.Handle(w, r)
}

// Routes returns the registered patterns starting with parent.
func (a *App) Routes(parent string) []string {
	return a.router.Routes(parent)
}

// DebugPrint logs the route table at debug level.
func (a *App) DebugPrint(ctx context.Context) {
	a.router.DebugPrint(ctx)
}

// Run validates the route table, acquires a listening socket and serves
// on it until ctx is cancelled. Nothing is bound when validation fails.
// A failure to acquire a socket is logged at [logging.LevelCritical] and
// returned; whether to exit is left to the caller. Run may only be
// called once.
func (a *App) Run(ctx context.Context) error {
	if !a.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer a.terminate()

	if !a.router.Validated() {
		err := a.Validate()
		if err != nil {
			a.log.ErrorContext(ctx, "route table failed validation", slogfield.Error(err))
			return ValidationError{Cause: err}
		}
	}

	sc := a.securityContext()
	if a.transport.Secure() && sc == nil {
		err := TransportError{Transport: a.transport.Name(), Cause: transport.ErrNoSecurityContext}
		logging.Critical(ctx, a.log, "couldn't start server", slogfield.Error(err))
		return err
	}

	h, err := a.provider.Acquire(ctx)
	if err != nil {
		logging.Critical(ctx, a.log, "couldn't start server", slogfield.Error(err))
		return SocketError{Cause: err}
	}
	a.advance(SocketAcquired)

	ls, err := a.transport.Listener(h.Listener, sc)
	if err != nil {
		h.Listener.Close()
		return TransportError{Transport: a.transport.Name(), Cause: err}
	}

	opts := append(
		[]server.Option{
			server.LogHandler(a.log.Handler()),
			server.Readiness(a.ready),
		},
		a.serverOpts...,
	)
	srv := server.New(ls, a, sc, opts...)

	a.mu.Lock()
	a.srv = srv
	a.mu.Unlock()
	a.advance(Serving)

	a.log.InfoContext(
		ctx,
		"starting server",
		slogfield.Transport(a.transport.Name()),
		slogfield.String("origin", h.Origin.String()),
		slogfield.Addr(ls.Addr()),
	)
	err = srv.Run(ctx)
	if err != nil {
		return ServeError{Cause: err}
	}
	return nil
}

func (a *App) terminate() {
	a.mu.Lock()
	a.srv = nil
	a.mu.Unlock()
	a.advance(Terminated)
}
