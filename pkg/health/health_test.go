// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinary_Toggle(t *testing.T) {
	t.Run("will make it healthy", func(t *testing.T) {
		t.Run("if the current state is the zero value", func(t *testing.T) {
			var m Binary
			m.Toggle()
			assert.True(t, m.Healthy(context.Background()))
		})
	})

	t.Run("will make it unhealthy", func(t *testing.T) {
		t.Run("if the current state is healthy", func(t *testing.T) {
			var m Binary
			m.Set(true)
			m.Toggle()
			assert.False(t, m.Healthy(context.Background()))
		})
	})
}

type healthyMetric bool

func (m healthyMetric) Healthy(_ context.Context) bool {
	return bool(m)
}

func TestAndMetric_Healthy(t *testing.T) {
	testCases := []struct {
		Name    string
		Metrics []Metric
		Healthy bool
	}{
		{
			Name:    "if there are no metrics",
			Healthy: true,
		},
		{
			Name:    "if every metric is healthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(true)},
			Healthy: true,
		},
		{
			Name:    "if one metric is unhealthy",
			Metrics: []Metric{healthyMetric(true), healthyMetric(false)},
			Healthy: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			m := And(testCase.Metrics...)
			assert.Equal(t, testCase.Healthy, m.Healthy(context.Background()))
		})
	}
}

func TestNot(t *testing.T) {
	t.Run("will negate the metric", func(t *testing.T) {
		assert.False(t, Not(healthyMetric(true)).Healthy(context.Background()))
		assert.True(t, Not(healthyMetric(false)).Healthy(context.Background()))
	})
}

func TestNewHandler(t *testing.T) {
	testCases := []struct {
		Name       string
		Healthy    bool
		StatusCode int
		Status     string
	}{
		{
			Name:       "will return 200 if the metric is healthy",
			Healthy:    true,
			StatusCode: http.StatusOK,
			Status:     "ok",
		},
		{
			Name:       "will return 503 if the metric is unhealthy",
			Healthy:    false,
			StatusCode: http.StatusServiceUnavailable,
			Status:     "unavailable",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			h := NewHandler(healthyMetric(testCase.Healthy))

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			h.ServeHTTP(w, r)

			resp := w.Result()
			if !assert.Equal(t, testCase.StatusCode, resp.StatusCode) {
				return
			}

			var body status
			err := json.NewDecoder(resp.Body).Decode(&body)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, testCase.Status, body.Status) {
				return
			}
		})
	}
}
