// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package router holds the route table of the server.
//
// Rules are registered while the application is being configured, checked
// once by [Router.Validate] and from then on dispatched without locking.
// Dispatch is delegated to an [http.ServeMux], so patterns follow its
// syntax (e.g. "/redfish/v1/Systems/{id}"), except that a trailing slash
// never matches a whole subtree: "/redfish/v1/" only matches itself.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/z5labs/hearth/internal/try"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a [Router].
type Option func(*Router)

// NotFoundHandler will register the given [http.Handler] to handle
// any request that does not match a registered method-pattern combination.
func NotFoundHandler(h http.Handler) Option {
	return func(r *Router) {
		r.notFound = h
	}
}

// MethodNotAllowedHandler will register the given [http.Handler] to handle
// any request whose method does not match the methods registered for its pattern.
func MethodNotAllowedHandler(h http.Handler) Option {
	return func(r *Router) {
		r.methodNotAllowed = h
	}
}

// Upgrader replaces the websocket upgrader used by [Router.HandleUpgrade].
func Upgrader(u *websocket.Upgrader) Option {
	return func(r *Router) {
		r.upgrader = u
	}
}

// LogHandler sets the handler used for logging.
func LogHandler(h slog.Handler) Option {
	return func(r *Router) {
		r.log = slog.New(h)
	}
}

// Router is the route table. The zero value is not usable, see [New].
type Router struct {
	log              *slog.Logger
	upgrader         *websocket.Upgrader
	notFound         http.Handler
	methodNotAllowed http.Handler

	mu      sync.Mutex
	rules   []*Rule
	tags    map[Tag]string
	tagErrs []error

	validated atomic.Bool
	mux       *http.ServeMux
	byPattern map[string]*compiledRule
}

type compiledRule struct {
	pattern string
	handler http.Handler
	upgrade UpgradeHandler
}

// New returns an empty [Router].
func New(opts ...Option) *Router {
	r := &Router{
		log: logging.Discard(),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		tags: make(map[Tag]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRuleDynamic registers a rule whose pattern is only known at run time.
func (r *Router) NewRuleDynamic(pattern string) *Rule {
	return r.add(&Rule{pattern: pattern})
}

// NewRuleTagged registers a rule for a pattern known when the program was
// written, identified by tag. Using the same tag for a different pattern,
// or a tag that is not [TagOf] the pattern, is reported by [Router.Validate].
func (r *Router) NewRuleTagged(tag Tag, pattern string) *Rule {
	return r.add(&Rule{pattern: pattern, tag: tag, tagged: true})
}

func (r *Router) add(rule *Rule) *Rule {
	if r.validated.Load() {
		panic(ErrRegistrationClosed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.tagged {
		r.checkTag(rule.tag, rule.pattern)
	}
	r.rules = append(r.rules, rule)
	return rule
}

func (r *Router) checkTag(tag Tag, pattern string) {
	existing, ok := r.tags[tag]
	switch {
	case !ok:
		r.tags[tag] = pattern
	case existing != pattern:
		r.tagErrs = append(r.tagErrs, TagConflictError{Tag: tag, Pattern: pattern, Existing: existing})
	}

	if tag != TagOf(pattern) {
		r.tagErrs = append(r.tagErrs, TagMismatchError{Tag: tag, Pattern: pattern})
	}
}

// Validate checks every registered rule and freezes the route table.
// All problems found are joined into the returned error, in which case
// the router stays unvalidated and answers every request with 503.
func (r *Router) Validate() error {
	if r.validated.Load() {
		return ErrAlreadyValidated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	errs := slices.Clone(r.tagErrs)

	mux := http.NewServeMux()
	byPattern := make(map[string]*compiledRule)
	pathMethods := make(map[string][]string)
	for _, rule := range r.rules {
		err := checkPattern(rule.pattern)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rule.handler == nil && rule.upgrade == nil {
			errs = append(errs, MissingHandlerError{Pattern: rule.pattern})
			continue
		}

		cr := &compiledRule{
			pattern: rule.pattern,
			handler: rule.handler,
			upgrade: rule.upgrade,
		}
		h := otelhttp.WithRouteTag(rule.pattern, r.dispatch(cr))
		path := muxPath(rule.pattern)
		for _, method := range rule.effectiveMethods() {
			muxPattern := fmt.Sprintf("%s %s", method, path)
			err := try.Call(func() {
				mux.Handle(muxPattern, h)
			})
			if err != nil {
				errs = append(errs, RuleConflictError{Method: method, Pattern: rule.pattern, Cause: err})
				continue
			}
			byPattern[muxPattern] = cr
			pathMethods[path] = append(pathMethods[path], method)
		}
	}

	err := try.Call(func() {
		registerFallbackHandlers(mux, r.notFound, r.methodNotAllowed, pathMethods)
	})
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.mux = mux
	r.byPattern = byPattern
	r.validated.Store(true)
	return nil
}

// Validated reports whether [Router.Validate] has succeeded.
func (r *Router) Validated() bool {
	return r.validated.Load()
}

func checkPattern(pattern string) error {
	switch {
	case pattern == "":
		return InvalidPatternError{Pattern: pattern, Reason: "empty"}
	case !strings.HasPrefix(pattern, "/"):
		return InvalidPatternError{Pattern: pattern, Reason: "must start with /"}
	case strings.ContainsAny(pattern, " \t\r\n"):
		return InvalidPatternError{Pattern: pattern, Reason: "must not contain whitespace"}
	}
	return nil
}

// muxPath turns a trailing slash pattern into an exact match, since a
// plain trailing slash means "whole subtree" to http.ServeMux.
func muxPath(pattern string) string {
	if strings.HasSuffix(pattern, "/") {
		return pattern + "{$}"
	}
	return pattern
}

// upgradeKey marks a request as entering through [Router.HandleUpgrade].
type upgradeKey struct{}

func (r *Router) dispatch(cr *compiledRule) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Context().Value(upgradeKey{}) != nil {
			r.upgrade(w, req, cr)
			return
		}
		if cr.handler == nil {
			w.Header().Set("Upgrade", "websocket")
			http.Error(w, http.StatusText(http.StatusUpgradeRequired), http.StatusUpgradeRequired)
			return
		}
		cr.handler.ServeHTTP(w, req)
	})
}

func registerFallbackHandlers(mux *http.ServeMux, notFound, methodNotAllowed http.Handler, pathMethods map[string][]string) {
	if notFound != nil {
		mux.Handle("/{path...}", notFound)
	}
	if methodNotAllowed == nil {
		return
	}

	supportedMethods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
		http.MethodTrace,
	}
	for path, methods := range pathMethods {
		for _, method := range diffSets(supportedMethods, methods) {
			// GET patterns already answer HEAD.
			if method == http.MethodHead && slices.Contains(methods, http.MethodGet) {
				continue
			}
			mux.Handle(fmt.Sprintf("%s %s", method, path), methodNotAllowed)
		}
	}
}

func diffSets[T comparable](xs, ys []T) []T {
	zs := make([]T, 0, len(xs))
	for _, x := range xs {
		if slices.Contains(ys, x) {
			continue
		}
		zs = append(zs, x)
	}
	return zs
}

// Handle dispatches an ordinary request. Before validation every request
// is answered with 503 Service Unavailable.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	if !r.validated.Load() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// ServeHTTP implements the [http.Handler] interface by calling [Router.Handle].
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handle(w, req)
}

// HandleUpgrade resolves the rule for an upgrade request, completes the
// websocket handshake and hands the connection to the rule's
// [UpgradeHandler] until it returns. Requests for unknown patterns, or
// for rules without an upgrade handler, are answered with 404.
func (r *Router) HandleUpgrade(w http.ResponseWriter, req *http.Request) {
	if !r.validated.Load() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	_, muxPattern := r.mux.Handler(req)
	cr, ok := r.byPattern[muxPattern]
	if !ok || cr.upgrade == nil {
		http.NotFound(w, req)
		return
	}

	// path values are only filled in when the mux serves the request
	ctx := context.WithValue(req.Context(), upgradeKey{}, cr)
	r.mux.ServeHTTP(w, req.WithContext(ctx))
}

func (r *Router) upgrade(w http.ResponseWriter, req *http.Request, cr *compiledRule) {
	if cr.upgrade == nil {
		http.NotFound(w, req)
		return
	}

	ctx := req.Context()
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has already written an error response
		r.log.WarnContext(ctx, "failed to upgrade connection", slogfield.Pattern(cr.pattern), slogfield.Error(err))
		return
	}
	defer conn.Close()

	cr.upgrade.ServeUpgrade(ctx, conn, req)
}

// Routes returns the distinct registered patterns starting with parent,
// in registration order. An empty parent returns every pattern.
func (r *Router) Routes(parent string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	routes := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		if !strings.HasPrefix(rule.pattern, parent) || slices.Contains(routes, rule.pattern) {
			continue
		}
		routes = append(routes, rule.pattern)
	}
	return routes
}

// DebugPrint logs every registered rule at debug level.
func (r *Router) DebugPrint(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rule := range r.rules {
		attrs := []any{
			slogfield.Pattern(rule.pattern),
			slogfield.Strings("methods", rule.effectiveMethods()),
			slogfield.Bool("upgrade", rule.upgrade != nil),
		}
		if rule.tagged {
			attrs = append(attrs, slogfield.Tag(uint64(rule.tag)))
		}
		r.log.DebugContext(ctx, "route", attrs...)
	}
}
