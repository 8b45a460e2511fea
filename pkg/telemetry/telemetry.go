// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry installs the OpenTelemetry tracer provider used by
// the otelhttp instrumentation of the server.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names where spans are sent.
type Exporter string

const (
	// ExporterNone keeps the global no-op tracer provider.
	ExporterNone Exporter = "none"

	// ExporterStdout writes spans as JSON to [Config.Out].
	ExporterStdout Exporter = "stdout"

	// ExporterOTLP sends spans to an OTLP gRPC collector.
	ExporterOTLP Exporter = "otlp"
)

// UnknownExporterError occurs when [Exporter.UnmarshalText] is given an
// unsupported name.
type UnknownExporterError struct {
	Name string
}

// Error implements the error interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown telemetry exporter: %q", e.Name)
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (e *Exporter) UnmarshalText(b []byte) error {
	switch x := Exporter(strings.ToLower(strings.TrimSpace(string(b)))); x {
	case "", ExporterNone:
		*e = ExporterNone
	case ExporterStdout, ExporterOTLP:
		*e = x
	default:
		return UnknownExporterError{Name: string(b)}
	}
	return nil
}

// OTLPConfig configures the OTLP exporter.
type OTLPConfig struct {
	// gRPC target string which is passed to grpc.DialContext()
	Target string `config:"target"`

	DialTimeout time.Duration `config:"dialTimeout"`
}

// Config selects and configures a span exporter.
type Config struct {
	ServiceName string     `config:"serviceName"`
	Exporter    Exporter   `config:"exporter"`
	OTLP        OTLPConfig `config:"otlp"`

	// Out is where the stdout exporter writes; it defaults to os.Stdout.
	Out io.Writer `config:"-"`
}

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// MissingTargetError occurs when the OTLP exporter is selected without
// a collector target.
type MissingTargetError struct{}

// Error implements the error interface.
func (MissingTargetError) Error() string {
	return "otlp exporter requires otel.otlp.target to be set"
}

// Init builds the tracer provider described by cfg and installs it, along
// with W3C trace context propagation, as the global provider. The
// returned [ShutdownFunc] must be called before the process exits.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exp, err = stdoutExporter(cfg)
	case ExporterOTLP:
		exp, err = otlpExporter(ctx, cfg.OTLP)
	default:
		return nil, UnknownExporterError{Name: string(cfg.Exporter)}
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func stdoutExporter(cfg Config) (sdktrace.SpanExporter, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return stdouttrace.New(stdouttrace.WithWriter(out))
}

func otlpExporter(ctx context.Context, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	if cfg.Target == "" {
		return nil, MissingTargetError{}
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(
		ctx,
		cfg.Target,
		// Collectors run as local sidecars, so plaintext is expected here.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, err
	}
	return otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
}
