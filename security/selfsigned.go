// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package security

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/z5labs/hearth/pkg/persist"
)

// CombinedFileName is the file written by [SelfSignedSource].
const CombinedFileName = "server.pem"

// CertificateRequest describes a certificate to generate.
type CertificateRequest struct {
	Organization string
	CommonName   string
	Hosts        []string
	ValidFor     time.Duration
}

func (r CertificateRequest) withDefaults() CertificateRequest {
	if r.Organization == "" {
		r.Organization = "hearth"
	}
	if r.CommonName == "" {
		r.CommonName = "localhost"
	}
	if len(r.Hosts) == 0 {
		r.Hosts = []string{"localhost", "127.0.0.1", "::1"}
	}
	if r.ValidFor <= 0 {
		r.ValidFor = 365 * 24 * time.Hour
	}
	return r
}

// GenerateSelfSigned creates an ECDSA P-256 key and a self-signed server
// certificate for it. The result is PEM encoded, key first, ready to be
// stored as a combined file.
func GenerateSelfSigned(req CertificateRequest) ([]byte, error) {
	req = req.withDefaults()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{req.Organization},
			CommonName:   req.CommonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(req.ValidFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range req.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			continue
		}
		tmpl.DNSNames = append(tmpl.DNSNames, h)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err != nil {
		return nil, err
	}
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SelfSignedSource serves a certificate kept in Dir. When Dir holds no
// usable certificate, or the stored one has expired, a new self-signed
// certificate is generated and stored there first.
type SelfSignedSource struct {
	Dir     string
	Request CertificateRequest
}

// Path returns the location of the combined PEM file.
func (s SelfSignedSource) Path() string {
	return filepath.Join(s.Dir, CombinedFileName)
}

// Load implements the [Source] interface.
func (s SelfSignedSource) Load(ctx context.Context) (*tls.Certificate, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		cert, ok := usable(b, time.Now())
		if ok {
			return cert, nil
		}
	}

	b, err = GenerateSelfSigned(s.Request)
	if err != nil {
		return nil, err
	}
	err = persist.WriteFile(s.Dir, CombinedFileName, b)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(b, b)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func usable(b []byte, now time.Time) (*tls.Certificate, bool) {
	cert, err := tls.X509KeyPair(b, b)
	if err != nil {
		return nil, false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, false
	}
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return nil, false
	}
	cert.Leaf = leaf
	return &cert, true
}
