// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package transport decides what every accepted connection is wrapped in
// before HTTP is spoken over it.
package transport

import (
	"crypto/tls"
	"errors"
	"net"

	"github.com/z5labs/hearth/security"
)

// ErrNoSecurityContext is returned by a secure [Transport] which was not
// given a [security.Context].
var ErrNoSecurityContext = errors.New("secure transport requires a security context")

// Transport wraps a listening socket.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string

	// Secure reports whether a [security.Context] is required.
	Secure() bool

	// Listener wraps ls.
	Listener(ls net.Listener, sc *security.Context) (net.Listener, error)
}

// Plain serves cleartext HTTP directly on the socket.
type Plain struct{}

// Name implements the [Transport] interface.
func (Plain) Name() string { return "plain" }

// Secure implements the [Transport] interface.
func (Plain) Secure() bool { return false }

// Listener implements the [Transport] interface. ls is returned as is.
func (Plain) Listener(ls net.Listener, _ *security.Context) (net.Listener, error) {
	return ls, nil
}

// TLS performs a TLS handshake on every accepted connection using the
// certificate current in the shared [security.Context].
type TLS struct{}

// Name implements the [Transport] interface.
func (TLS) Name() string { return "tls" }

// Secure implements the [Transport] interface.
func (TLS) Secure() bool { return true }

// Listener implements the [Transport] interface.
func (TLS) Listener(ls net.Listener, sc *security.Context) (net.Listener, error) {
	if sc == nil {
		return nil, ErrNoSecurityContext
	}
	return tls.NewListener(ls, sc.TLSConfig()), nil
}
