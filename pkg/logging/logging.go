// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package logging builds the [slog.Logger]s used throughout hearth.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LevelCritical is reserved for conditions that stop the server from
// running at all, e.g. failing to obtain a listening socket.
const LevelCritical = slog.LevelError + 4

// Config controls how log records are rendered.
type Config struct {
	Level     string `config:"level"`
	Format    string `config:"format"`
	AddSource bool   `config:"addSource"`

	// Mask lists attribute keys whose values are never written.
	Mask []string `config:"mask"`
}

// UnknownLevelError is returned for a level name that is not recognized.
type UnknownLevelError struct {
	Level string
}

// Error implements the [error] interface.
func (e UnknownLevelError) Error() string {
	return fmt.Sprintf("unknown log level: %q", e.Level)
}

// UnknownFormatError is returned for an output format that is not recognized.
type UnknownFormatError struct {
	Format string
}

// Error implements the [error] interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %q", e.Format)
}

// ParseLevel maps debug, info, warn, error and critical to a [slog.Level].
// The empty string is treated as info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return LevelCritical, nil
	default:
		return 0, UnknownLevelError{Level: s}
	}
}

// NewHandler returns a trace correlating [slog.Handler] writing to w.
// Attributes named in cfg.Mask are replaced with [Masked].
func NewHandler(w io.Writer, cfg Config) (slog.Handler, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource:   cfg.AddSource,
		Level:       lvl,
		ReplaceAttr: replaceLevel,
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, UnknownFormatError{Format: cfg.Format}
	}
	if len(cfg.Mask) > 0 {
		h = NewMaskHandler(h, cfg.Mask...)
	}
	return NewTraceHandler(h), nil
}

// New is a convenience wrapper around [NewHandler].
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	h, err := NewHandler(w, cfg)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok || lvl < LevelCritical {
		return a
	}
	return slog.String(slog.LevelKey, "CRITICAL")
}

// Critical logs msg at [LevelCritical].
func Critical(ctx context.Context, log *slog.Logger, msg string, attrs ...slog.Attr) {
	log.LogAttrs(ctx, LevelCritical, msg, attrs...)
}

// DiscardHandler drops every record.
type DiscardHandler struct{}

func (DiscardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (DiscardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h DiscardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h DiscardHandler) WithGroup(string) slog.Handler           { return h }

// Discard returns a logger which drops every record.
func Discard() *slog.Logger {
	return slog.New(DiscardHandler{})
}
