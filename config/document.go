// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/z5labs/hearth/internal/try"

	"gopkg.in/yaml.v3"
)

type decoder interface {
	Decode(v any) error
}

// Document is a [Source] holding a single structured config document,
// either YAML or JSON. An empty document sets no keys.
type Document struct {
	r          io.Reader
	format     string
	newDecoder func(io.Reader) decoder
}

// FromYaml reads a YAML document from r.
func FromYaml(r io.Reader) Document {
	return Document{
		r:      r,
		format: "yaml",
		newDecoder: func(r io.Reader) decoder {
			return yaml.NewDecoder(r)
		},
	}
}

// FromJson reads a JSON document from r.
func FromJson(r io.Reader) Document {
	return Document{
		r:      r,
		format: "json",
		newDecoder: func(r io.Reader) decoder {
			return json.NewDecoder(r)
		},
	}
}

// DecodeError is returned when a document is not valid in its format.
type DecodeError struct {
	Format string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("invalid %s config document: %s", e.Format, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface. The reader is closed when it
// is an [io.Closer].
func (doc Document) Apply(store Store) (err error) {
	c, _ := doc.r.(io.Closer)
	defer try.Close(&err, c)

	// read up front so errors from r keep their chain
	b, err := io.ReadAll(doc.r)
	if err != nil {
		return err
	}

	var tree map[string]any
	err = doc.newDecoder(bytes.NewReader(b)).Decode(&tree)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return DecodeError{Format: doc.format, Cause: err}
	}
	return Map(tree).Apply(store)
}
