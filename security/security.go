// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package security holds the TLS state shared by the application and
// its server.
//
// A [Context] is created once, installed on the application and handed to
// the server by pointer. Reloading swaps the served certificate atomically;
// handshakes that already started, and connections already established,
// keep the material they negotiated with.
package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
)

// LoadError wraps a failure to obtain a certificate from a [Source].
type LoadError struct {
	Cause error
}

// Error implements the [error] interface.
func (e LoadError) Error() string {
	return fmt.Sprintf("failed to load certificate: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e LoadError) Unwrap() error {
	return e.Cause
}

// Option configures a [Context].
type Option func(*Context)

// WithProfile selects the protocol and cipher settings.
func WithProfile(p Profile) Option {
	return func(c *Context) {
		c.profile = p
	}
}

// ClientAuth sets the client certificate policy.
func ClientAuth(t tls.ClientAuthType) Option {
	return func(c *Context) {
		c.clientAuth = t
	}
}

// ClientCAs sets the pool used to verify client certificates.
func ClientCAs(pool *x509.CertPool) Option {
	return func(c *Context) {
		c.clientCAs = pool
	}
}

// LogHandler sets the handler used for logging certificate loads.
func LogHandler(h slog.Handler) Option {
	return func(c *Context) {
		c.log = slog.New(h)
	}
}

// Context is the shared TLS context. It is safe for concurrent use.
type Context struct {
	log        *slog.Logger
	src        Source
	profile    Profile
	clientAuth tls.ClientAuthType
	clientCAs  *x509.CertPool

	base *tls.Config

	loadMu     sync.Mutex
	cert       atomic.Pointer[tls.Certificate]
	generation atomic.Uint64
}

// NewContext returns a [Context] serving certificates from src.
// No certificate is read until [Context.Load] is called.
func NewContext(src Source, opts ...Option) *Context {
	c := &Context{
		log: logging.Discard(),
		src: src,
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.profile.Config()
	base.ClientAuth = c.clientAuth
	base.ClientCAs = c.clientCAs
	c.base = base
	return c
}

// Load reads the source and makes the result the certificate offered by
// every handshake that starts afterwards. On failure the previously
// loaded certificate, if any, stays in place.
func (c *Context) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	cert, err := c.src.Load(ctx)
	if err != nil {
		return LoadError{Cause: err}
	}
	if cert == nil || len(cert.Certificate) == 0 {
		return LoadError{Cause: ErrNoCertificate}
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return LoadError{Cause: err}
		}
		cert.Leaf = leaf
	}

	c.cert.Store(cert)
	gen := c.generation.Add(1)

	c.log.InfoContext(
		ctx,
		"loaded certificate",
		slogfield.Uint64("generation", gen),
		slogfield.String("subject", cert.Leaf.Subject.String()),
		slogfield.String("not_after", cert.Leaf.NotAfter.UTC().Format("2006-01-02T15:04:05Z")),
	)
	return nil
}

// Certificate returns the certificate currently offered, or nil.
func (c *Context) Certificate() *tls.Certificate {
	return c.cert.Load()
}

// Generation counts successful loads.
func (c *Context) Generation() uint64 {
	return c.generation.Load()
}

// Profile returns the configured [Profile].
func (c *Context) Profile() Profile {
	return c.profile
}

// TLSConfig returns a server configuration which resolves the certificate
// at handshake time. Callers may modify the returned value.
func (c *Context) TLSConfig() *tls.Config {
	cfg := c.base.Clone()
	cfg.GetCertificate = c.getCertificate
	return cfg
}

func (c *Context) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := c.cert.Load()
	if cert == nil {
		return nil, ErrNoCertificate
	}
	return cert, nil
}
