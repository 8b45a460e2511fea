// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
)

// UpgradeHandler takes over a connection after a successful protocol
// upgrade. The connection is closed once ServeUpgrade returns.
type UpgradeHandler interface {
	ServeUpgrade(ctx context.Context, conn *websocket.Conn, r *http.Request)
}

// UpgradeHandlerFunc is a func variant of [UpgradeHandler].
type UpgradeHandlerFunc func(ctx context.Context, conn *websocket.Conn, r *http.Request)

// ServeUpgrade implements the [UpgradeHandler] interface.
func (f UpgradeHandlerFunc) ServeUpgrade(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	f(ctx, conn, r)
}

// Rule is a route under construction. Changes made after the owning
// [Router] has been validated have no effect.
type Rule struct {
	pattern string
	tag     Tag
	tagged  bool

	methods []string
	handler http.Handler
	upgrade UpgradeHandler
}

// Methods restricts the rule to the given HTTP methods. A rule with no
// methods answers GET (and therefore HEAD).
func (r *Rule) Methods(methods ...string) *Rule {
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || slices.Contains(r.methods, m) {
			continue
		}
		r.methods = append(r.methods, m)
	}
	return r
}

// Handler sets the handler for ordinary requests.
func (r *Rule) Handler(h http.Handler) *Rule {
	r.handler = h
	return r
}

// HandlerFunc sets the handler for ordinary requests.
func (r *Rule) HandlerFunc(f func(http.ResponseWriter, *http.Request)) *Rule {
	return r.Handler(http.HandlerFunc(f))
}

// Upgrade sets the handler for protocol upgrade requests.
func (r *Rule) Upgrade(h UpgradeHandler) *Rule {
	r.upgrade = h
	return r
}

// Pattern returns the pattern the rule was registered with.
func (r *Rule) Pattern() string {
	return r.pattern
}

// Tag returns the rule's [Tag] and whether it was registered as tagged.
func (r *Rule) Tag() (Tag, bool) {
	return r.tag, r.tagged
}

func (r *Rule) effectiveMethods() []string {
	if len(r.methods) == 0 {
		return []string{http.MethodGet}
	}
	return r.methods
}
