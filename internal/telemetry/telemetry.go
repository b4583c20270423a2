// Package telemetry builds the OpenTelemetry tracer provider used by the
// conversation runs. The provider is constructed explicitly by the caller and
// must be shut down at process end so buffered spans are exported.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
	ProtocolStdout       = "stdout"
	ProtocolNone         = "none"

	// InstrumentationName identifies the tracer that creates conversation and tool spans.
	InstrumentationName = "github.com/PauloHFS/otel-chat-tools"
)

var ErrUnknownProtocol = errors.New("unknown exporter protocol")

type Config struct {
	ServiceName    string
	ServiceVersion string
	Protocol       string
	Endpoint       string
	Insecure       bool
	// Writer receives spans for the stdout protocol; nil means os.Stdout.
	Writer io.Writer
}

// Provider owns the tracer provider for the lifetime of the process.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Tracer returns the application tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(InstrumentationName)
}

// Shutdown flushes and stops the exporter. Safe to call on a noop provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Setup creates the provider for cfg.Protocol. It also installs the provider
// and the W3C propagators as the otel globals so instrumented libraries
// (otelhttp) join the same traces.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == ProtocolNone || protocol == "" {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	exporter, err := newExporter(ctx, protocol, cfg)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}

func newExporter(ctx context.Context, protocol string, cfg Config) (sdktrace.SpanExporter, error) {
	switch protocol {
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp grpc exporter: %w", err)
		}
		return exp, nil
	case ProtocolHTTPProtobuf:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
		}
		return exp, nil
	case ProtocolStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, protocol)
	}
}

// End closes span with an error or ok status. Errors are recorded as span
// events before the status is set.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
