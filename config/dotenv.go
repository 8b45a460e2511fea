// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io"

	"github.com/z5labs/hearth/internal/try"

	"github.com/joho/godotenv"
)

// DotEnv represents a Source where its underlying format is a .env file.
// Variable names are mapped to keys the same way [Env] does.
type DotEnv struct {
	prefix string
	r      io.Reader
}

// FromDotEnv returns a source which will apply its config from the
// variables in r whose name starts with prefix.
func FromDotEnv(r io.Reader, prefix string) DotEnv {
	return DotEnv{prefix: prefix, r: r}
}

// InvalidDotEnvError occurs if the underlying io.Reader contains an invalid .env file.
type InvalidDotEnvError struct {
	cause error
}

// Error implements the error interface.
func (e InvalidDotEnvError) Error() string {
	return fmt.Sprintf("invalid dotenv: %s", e.cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidDotEnvError) Unwrap() error {
	return e.cause
}

// Apply implements the Source interface.
func (src DotEnv) Apply(store Store) (err error) {
	c, _ := src.r.(io.Closer)
	defer try.Close(&err, c)

	vars, err := godotenv.Parse(src.r)
	if err != nil {
		return InvalidDotEnvError{cause: err}
	}
	return applyPrefixed(store, src.prefix, vars)
}
