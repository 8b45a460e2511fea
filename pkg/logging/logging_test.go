// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type logRecord struct {
	Level   string `json:"level"`
	Message string `json:"msg"`
	OTel    struct {
		TraceID string `json:"trace_id"`
		SpanID  string `json:"span_id"`
	} `json:"otel"`
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		Name  string
		In    string
		Level slog.Level
	}{
		{Name: "empty", In: "", Level: slog.LevelInfo},
		{Name: "debug", In: "debug", Level: slog.LevelDebug},
		{Name: "upper case warn", In: "WARN", Level: slog.LevelWarn},
		{Name: "error", In: "error", Level: slog.LevelError},
		{Name: "critical", In: "critical", Level: LevelCritical},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			lvl, err := ParseLevel(testCase.In)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, testCase.Level, lvl) {
				return
			}
		})
	}

	t.Run("will return an UnknownLevelError", func(t *testing.T) {
		t.Run("if the level is not recognized", func(t *testing.T) {
			_, err := ParseLevel("loud")

			var lerr UnknownLevelError
			if !assert.ErrorAs(t, err, &lerr) {
				return
			}
			if !assert.Equal(t, "loud", lerr.Level) {
				return
			}
		})
	})
}

func TestNew(t *testing.T) {
	t.Run("will render the critical level by name", func(t *testing.T) {
		t.Run("if a record is logged at LevelCritical", func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(&buf, Config{Level: "info"})
			if !assert.Nil(t, err) {
				return
			}

			Critical(context.Background(), log, "couldn't start server")

			var record logRecord
			err = json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "CRITICAL", record.Level) {
				return
			}
		})
	})

	t.Run("will drop records", func(t *testing.T) {
		t.Run("if they are below the configured level", func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(&buf, Config{Level: "error"})
			if !assert.Nil(t, err) {
				return
			}

			log.Info("starting webserver on port")
			if !assert.Zero(t, buf.Len()) {
				return
			}
		})
	})

	t.Run("will return an UnknownFormatError", func(t *testing.T) {
		t.Run("if the format is not json or text", func(t *testing.T) {
			_, err := New(&bytes.Buffer{}, Config{Format: "xml"})

			var ferr UnknownFormatError
			if !assert.ErrorAs(t, err, &ferr) {
				return
			}
		})
	})
}

func TestTraceHandler_Handle(t *testing.T) {
	t.Run("will not add trace id and span id", func(t *testing.T) {
		t.Run("if the span context is invalid", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

			log.InfoContext(context.Background(), "test")

			var record logRecord
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Empty(t, record.OTel.TraceID) {
				return
			}
		})
	})

	t.Run("will add trace id and span id", func(t *testing.T) {
		t.Run("if the span context is valid", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

			tp := sdktrace.NewTracerProvider()
			defer tp.Shutdown(context.Background())

			ctx, span := tp.Tracer("logging").Start(context.Background(), "test")
			defer span.End()

			log.InfoContext(ctx, "test")

			var record logRecord
			err := json.Unmarshal(buf.Bytes(), &record)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, span.SpanContext().TraceID().String(), record.OTel.TraceID) {
				return
			}
			if !assert.Equal(t, span.SpanContext().SpanID().String(), record.OTel.SpanID) {
				return
			}
		})
	})
}

func TestDiscard(t *testing.T) {
	t.Run("will report every level as disabled", func(t *testing.T) {
		log := Discard()
		if !assert.False(t, log.Enabled(context.Background(), LevelCritical)) {
			return
		}
	})
}
