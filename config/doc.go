// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config merges configuration from several sources into a
// single tree of keys and decodes it into a struct.
//
// Sources are applied in order, each overriding keys set by the ones
// before it:
//
//	m, err := config.Read(
//	    config.FromYaml(config.RenderTextTemplate(defaults, config.EnvFuncs())),
//	    config.FromYaml(config.OpenFile(os.DirFS("/"), "etc/hearth/config.yaml")),
//	    config.FromEnv("HEARTH_"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg Config
//	err = m.Unmarshal(&cfg)
//
// Keys are case-insensitive, so http.readTimeout in YAML and
// HEARTH_HTTP_READTIMEOUT in the environment name the same value.
package config
