// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyValidated is returned by a second call to [Router.Validate].
	ErrAlreadyValidated = errors.New("router already validated")

	// ErrRegistrationClosed is the panic value raised when a rule is
	// registered after [Router.Validate] succeeded.
	ErrRegistrationClosed = errors.New("router: rule registered after validation")
)

// InvalidPatternError reports a pattern the router cannot dispatch on.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

// Error implements the [error] interface.
func (e InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// MissingHandlerError reports a rule with neither a handler nor an
// upgrade handler.
type MissingHandlerError struct {
	Pattern string
}

// Error implements the [error] interface.
func (e MissingHandlerError) Error() string {
	return fmt.Sprintf("route %q has no handler", e.Pattern)
}

// RuleConflictError reports a rule which overlaps another rule in a way
// that makes dispatch ambiguous.
type RuleConflictError struct {
	Method  string
	Pattern string
	Cause   error
}

// Error implements the [error] interface.
func (e RuleConflictError) Error() string {
	return fmt.Sprintf("route %s %q conflicts with another route: %s", e.Method, e.Pattern, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RuleConflictError) Unwrap() error {
	return e.Cause
}

// TagConflictError reports a [Tag] registered with two different patterns.
type TagConflictError struct {
	Tag      Tag
	Pattern  string
	Existing string
}

// Error implements the [error] interface.
func (e TagConflictError) Error() string {
	return fmt.Sprintf("route tag %s registered for %q is already used by %q", e.Tag, e.Pattern, e.Existing)
}

// TagMismatchError reports a [Tag] which is not the hash of its pattern.
type TagMismatchError struct {
	Tag     Tag
	Pattern string
}

// Error implements the [error] interface.
func (e TagMismatchError) Error() string {
	return fmt.Sprintf("route tag %s does not match pattern %q (expected %s)", e.Tag, e.Pattern, TagOf(e.Pattern))
}
