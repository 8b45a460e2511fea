// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// InvalidClientAuthError is returned by [ParseClientAuth].
type InvalidClientAuthError struct {
	Mode string
}

// Error implements the [error] interface.
func (e InvalidClientAuthError) Error() string {
	return fmt.Sprintf("invalid client auth mode: %q", e.Mode)
}

// ParseClientAuth maps none, request, require, verify-if-given and
// require-and-verify to a [tls.ClientAuthType].
func ParseClientAuth(mode string) (tls.ClientAuthType, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAnyClientCert, nil
	case "verify-if-given":
		return tls.VerifyClientCertIfGiven, nil
	case "require-and-verify":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, InvalidClientAuthError{Mode: mode}
	}
}

// NoCertificatesError is returned when a CA file holds no PEM certificates.
type NoCertificatesError struct {
	File string
}

// Error implements the [error] interface.
func (e NoCertificatesError) Error() string {
	return fmt.Sprintf("no certificates found in %s", e.File)
}

// LoadCertPool reads PEM encoded CA certificates from files.
func LoadCertPool(files ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if !pool.AppendCertsFromPEM(b) {
			return nil, NoCertificatesError{File: file}
		}
	}
	return pool, nil
}
