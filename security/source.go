// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package security

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
)

// Source produces the certificate served during TLS handshakes.
type Source interface {
	Load(context.Context) (*tls.Certificate, error)
}

// SourceFunc is a func variant of [Source].
type SourceFunc func(context.Context) (*tls.Certificate, error)

// Load implements the [Source] interface.
func (f SourceFunc) Load(ctx context.Context) (*tls.Certificate, error) {
	return f(ctx)
}

// ErrNoCertificate is returned by a [Source] with nothing to serve.
var ErrNoCertificate = errors.New("no certificate available")

// FileSource reads a PEM encoded certificate chain and private key from disk
// every time it is loaded. When KeyFile is empty, CertFile must hold both.
type FileSource struct {
	CertFile string
	KeyFile  string
}

// Load implements the [Source] interface.
func (s FileSource) Load(ctx context.Context) (*tls.Certificate, error) {
	if s.CertFile == "" {
		return nil, ErrNoCertificate
	}

	certPEM, err := os.ReadFile(s.CertFile)
	if err != nil {
		return nil, err
	}

	keyPEM := certPEM
	if s.KeyFile != "" {
		keyPEM, err = os.ReadFile(s.KeyFile)
		if err != nil {
			return nil, err
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// StaticSource always returns the same certificate.
type StaticSource struct {
	Certificate tls.Certificate
}

// Load implements the [Source] interface.
func (s StaticSource) Load(ctx context.Context) (*tls.Certificate, error) {
	if len(s.Certificate.Certificate) == 0 {
		return nil, ErrNoCertificate
	}
	cert := s.Certificate
	return &cert, nil
}
