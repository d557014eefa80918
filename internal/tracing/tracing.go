package tracing

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options controls how spans leave the process
type Options struct {
	Enabled     bool
	ServiceName string
	Version     string
	// Endpoint is the collector's OTLP/HTTP address, with or without scheme
	Endpoint string
	// SampleRatio applies to root spans; children follow their parent
	SampleRatio float64
}

// ShutdownFunc flushes pending spans
type ShutdownFunc func(context.Context) error

// InitTracer installs the global tracer provider. When tracing is disabled
// the global no-op provider stays in place and shutdown does nothing.
func InitTracer(opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		log.Printf("OpenTelemetry tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	endpoint := collectorHost(opts.Endpoint)
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := newResource(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(opts.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	log.Printf("OpenTelemetry tracer initialized (endpoint %s, sample ratio %.2f)", endpoint, opts.SampleRatio)
	return tp.Shutdown, nil
}

// Sampler keeps every trace at ratio >= 1 and none at ratio <= 0
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func newResource(opts Options) (*resource.Resource, error) {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
}

// otlptracehttp expects host:port, not a URL
func collectorHost(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
