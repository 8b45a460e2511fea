// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/hearth/config/key"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source which will apply its config from the
// environment variables of the current process whose name starts with
// prefix. The remainder of the name is split on "_" into nested keys,
// e.g. with prefix "HEARTH_", HEARTH_HTTP_READTIMEOUT sets http.readTimeout.
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the Source interface.
func (src Env) Apply(store Store) error {
	return applyPrefixed(store, src.prefix, pairs(src.environ()))
}

func pairs(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, pair := range env {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

func applyPrefixed(store Store, prefix string, vars map[string]string) error {
	for name, v := range vars {
		chain, ok := envChain(prefix, name)
		if !ok {
			continue
		}
		err := store.Set(chain, v)
		if err != nil {
			return err
		}
	}
	return nil
}

func envChain(prefix, name string) (key.Chain, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return nil, false
	}

	segs := strings.Split(rest, "_")
	chain := make(key.Chain, 0, len(segs))
	for _, seg := range segs {
		if seg == "" {
			return nil, false
		}
		chain = append(chain, key.Name(strings.ToLower(seg)))
	}
	return chain, true
}
