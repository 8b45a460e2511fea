// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether the server is able to take traffic.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc is a func variant of [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary represents a [Metric] that is either healthy or not.
// The zero value is unhealthy, which is what a server that has
// not started serving yet should report.
type Binary struct {
	healthy atomic.Bool
}

// Set records the current state.
func (m *Binary) Set(healthy bool) {
	m.healthy.Store(healthy)
}

// Toggle flips the current state.
func (m *Binary) Toggle() {
	for {
		old := m.healthy.Load()
		if m.healthy.CompareAndSwap(old, !old) {
			return
		}
	}
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	return m.healthy.Load()
}

// AndMetric is healthy only when every underlying [Metric] is.
type AndMetric []Metric

// And returns a [Metric] joining metrics with the logical and (&&) operator.
func And(metrics ...Metric) AndMetric {
	return AndMetric(metrics)
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}

// Not negates the given [Metric].
func Not(metric Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		return !metric.Healthy(ctx)
	})
}

type status struct {
	Status string `json:"status"`
}

// NewHandler wraps m into an [http.Handler] answering 200 when m is
// healthy and 503 otherwise. The body is a small JSON status document.
func NewHandler(m Metric) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusOK
		body := status{Status: "ok"}
		if !m.Healthy(r.Context()) {
			code = http.StatusServiceUnavailable
			body.Status = "unavailable"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	})
}
