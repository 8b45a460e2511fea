// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package hearth

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned by [App.Run] when called more than once.
var ErrAlreadyRun = errors.New("hearth: app has already been run")

// ValidationError occurs when the route table fails validation. No socket
// has been opened when it is returned.
type ValidationError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("failed to validate routes: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ValidationError) Unwrap() error {
	return e.Cause
}

// TransportError occurs when the configured transport can not wrap the
// listening socket.
type TransportError struct {
	Transport string
	Cause     error
}

// Error implements the [builtin.error] interface.
func (e TransportError) Error() string {
	return fmt.Sprintf("failed to set up %s transport: %s", e.Transport, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TransportError) Unwrap() error {
	return e.Cause
}

// SocketError occurs when no listening socket could be acquired.
type SocketError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e SocketError) Error() string {
	return fmt.Sprintf("failed to acquire listening socket: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e SocketError) Unwrap() error {
	return e.Cause
}

// ServeError occurs when the server stops for any reason other than
// cancellation of the run context.
type ServeError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ServeError) Error() string {
	return fmt.Sprintf("failed to serve: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ServeError) Unwrap() error {
	return e.Cause
}
