// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package hearth bootstraps an embedded HTTP server.
//
// An [App] owns a route table, an optional shared [security.Context] and,
// once running, exactly one listening server. [App.Run] validates the route
// table before any socket is touched, then acquires a listening socket,
// either inherited through systemd socket activation or freshly bound to
// 0.0.0.0:18080, and serves on it until its context is cancelled:
//
//	app := hearth.New(hearth.LogHandler(handler))
//	app.Route(rootTag, "/").HandlerFunc(index)
//	app.Route(healthTag, "/health").Handler(health.NewHandler(ready))
//	app.SetSecurityContext(security.NewContext(src))
//
//	err := app.Run(ctx)
//
// Whether connections are wrapped in TLS is decided when the binary is
// built: TLS is the default and the hearth_insecure_disable_tls build tag
// selects plain HTTP instead.
package hearth
