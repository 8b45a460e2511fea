// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"context"
	"log/slog"
)

// Masked replaces every masked attribute value.
const Masked = "****"

// MaskHandler is a [slog.Handler] which replaces the value of attributes
// with one of the masked keys, e.g. client certificate subjects.
type MaskHandler struct {
	slog slog.Handler
	keys map[string]struct{}
}

// NewMaskHandler wraps h so the values of attributes named by keys are
// replaced with [Masked]. Attributes nested in groups are masked as well.
func NewMaskHandler(h slog.Handler, keys ...string) *MaskHandler {
	m := &MaskHandler{
		slog: h,
		keys: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

// Enabled implements the [slog.Handler] interface.
func (h *MaskHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *MaskHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.mask(a))
		return true
	})

	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	nr.AddAttrs(attrs...)
	return h.slog.Handle(ctx, nr)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *MaskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &MaskHandler{
		slog: h.slog.WithAttrs(masked),
		keys: h.keys,
	}
}

// WithGroup implements the [slog.Handler] interface.
func (h *MaskHandler) WithGroup(name string) slog.Handler {
	return &MaskHandler{
		slog: h.slog.WithGroup(name),
		keys: h.keys,
	}
}

func (h *MaskHandler) mask(a slog.Attr) slog.Attr {
	if _, ok := h.keys[a.Key]; ok {
		return slog.String(a.Key, Masked)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	masked := make([]any, len(group))
	for i, ga := range group {
		masked[i] = h.mask(ga)
	}
	return slog.Group(a.Key, masked...)
}
