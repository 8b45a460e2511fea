// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !hearth_insecure_disable_tls

package hearth

import "github.com/z5labs/hearth/transport"

// DefaultTransport returns the transport selected when the binary was built.
func DefaultTransport() transport.Transport {
	return transport.TLS{}
}
