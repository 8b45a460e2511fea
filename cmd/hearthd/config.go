// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/z5labs/hearth/config"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/telemetry"
	"github.com/z5labs/hearth/security"
)

//go:embed default_config.yaml
var defaultConfig []byte

// EnvPrefix marks the environment variables read as config.
const EnvPrefix = "HEARTH_"

// Config is the configuration of hearthd.
type Config struct {
	HTTP struct {
		Address           string        `config:"address"`
		Port              uint16        `config:"port"`
		ReadTimeout       time.Duration `config:"readTimeout"`
		ReadHeaderTimeout time.Duration `config:"readHeaderTimeout"`
		WriteTimeout      time.Duration `config:"writeTimeout"`
		IdleTimeout       time.Duration `config:"idleTimeout"`
		ShutdownTimeout   time.Duration `config:"shutdownTimeout"`
	} `config:"http"`

	TLS struct {
		Profile       security.Profile `config:"profile"`
		CertFile      string           `config:"certFile"`
		KeyFile       string           `config:"keyFile"`
		PersistDir    string           `config:"persistDir"`
		ClientAuth    string           `config:"clientAuth"`
		ClientCAFiles []string         `config:"clientCAFiles"`
	} `config:"tls"`

	Logging logging.Config   `config:"logging"`
	OTel    telemetry.Config `config:"otel"`

	Health struct {
		Prefix string `config:"prefix"`
	} `config:"health"`
}

// ConfigReadError occurs when a config source can not be read.
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError occurs when the merged config does not fit [Config].
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal config: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// fileSource reads the config file at path as JSON when it has a .json
// extension and as YAML otherwise. Either may use the template funcs.
func fileSource(path string) config.Source {
	doc := config.RenderTextTemplate(
		config.OpenFile(os.DirFS(filepath.Dir(path)), filepath.Base(path)),
		config.EnvFuncs(),
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.FromJson(doc)
	}
	return config.FromYaml(doc)
}

// readConfig layers the embedded defaults, the optional config file, the
// optional .env file and finally the environment.
func readConfig(path, dotenv string) (Config, error) {
	srcs := []config.Source{
		config.FromYaml(config.RenderTextTemplate(bytes.NewReader(defaultConfig), config.EnvFuncs())),
	}
	if path != "" {
		srcs = append(srcs, fileSource(path))
	}
	if dotenv != "" {
		f, err := os.Open(dotenv)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, ConfigReadError{Cause: err}
		default:
			srcs = append(srcs, config.FromDotEnv(f, EnvPrefix))
		}
	}
	srcs = append(srcs, config.FromEnv(EnvPrefix))

	m, err := config.Read(srcs...)
	if err != nil {
		return Config{}, ConfigReadError{Cause: err}
	}

	var cfg Config
	err = m.Unmarshal(&cfg)
	if err != nil {
		return Config{}, ConfigUnmarshalError{Cause: err}
	}
	return cfg, nil
}
