// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package security

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Profile selects the protocol versions and cipher suites offered.
type Profile int

const (
	// ProfileDefault allows TLS 1.2+ with forward secret AEAD suites.
	ProfileDefault Profile = iota

	// ProfileModern allows TLS 1.3 only.
	ProfileModern

	// ProfileIntermediate allows TLS 1.2+ and accepts more curves.
	ProfileIntermediate

	// ProfileStrict allows TLS 1.3 only, without session tickets
	// or renegotiation.
	ProfileStrict
)

// String implements the [fmt.Stringer] interface.
func (p Profile) String() string {
	switch p {
	case ProfileDefault:
		return "default"
	case ProfileModern:
		return "modern"
	case ProfileIntermediate:
		return "intermediate"
	case ProfileStrict:
		return "strict"
	default:
		return fmt.Sprintf("Profile(%d)", int(p))
	}
}

// UnknownProfileError is returned by [ParseProfile].
type UnknownProfileError struct {
	Name string
}

// Error implements the [error] interface.
func (e UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown tls profile: %q", e.Name)
}

// ParseProfile maps a profile name to a [Profile]. The empty string
// selects [ProfileDefault].
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return ProfileDefault, nil
	case "modern":
		return ProfileModern, nil
	case "intermediate":
		return ProfileIntermediate, nil
	case "strict":
		return ProfileStrict, nil
	default:
		return 0, UnknownProfileError{Name: name}
	}
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (p *Profile) UnmarshalText(b []byte) error {
	v, err := ParseProfile(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

var tls12Suites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// Config returns a fresh base [tls.Config] for the profile.
// It carries no certificate material.
func (p Profile) Config() *tls.Config {
	cfg := &tls.Config{
		NextProtos: []string{"h2", "http/1.1"},
	}
	switch p {
	case ProfileModern:
		cfg.MinVersion = tls.VersionTLS13
		cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	case ProfileIntermediate:
		cfg.MinVersion = tls.VersionTLS12
		cfg.CipherSuites = append([]uint16(nil), tls12Suites...)
		cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256, tls.CurveP384}
	case ProfileStrict:
		cfg.MinVersion = tls.VersionTLS13
		cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
		cfg.SessionTicketsDisabled = true
		cfg.Renegotiation = tls.RenegotiateNever
	default:
		cfg.MinVersion = tls.VersionTLS12
		cfg.CipherSuites = append([]uint16(nil), tls12Suites...)
		cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	}
	return cfg
}
