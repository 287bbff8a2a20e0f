package otel

import (
	"context"
	"fmt"
	"strings"

	"github.com/camsbiometrics/cams-mcp/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls trace export.
type Config struct {
	Endpoint    string  `env:"CAMS_OTEL_ENDPOINT"`
	Enabled     string  `env:"CAMS_OTEL_ENABLED"`
	SampleRatio float64 `env:"CAMS_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// active reports whether an exporter should be installed.
func (c Config) active() bool {
	if strings.EqualFold(strings.TrimSpace(c.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if c.SampleRatio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// Setup initialises OpenTelemetry tracing for the given service from the
// CAMS_OTEL_* environment.
//
// Tracing is opt-in: when CAMS_OTEL_ENDPOINT is empty or CAMS_OTEL_ENABLED is
// "false", Setup returns a no-op shutdown function and no global provider is
// registered. Spans created through Tracer are then dropped.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return noop, fmt.Errorf("otel config: %w", err)
	}
	return SetupWithConfig(ctx, serviceName, cfg)
}

// SetupWithConfig is Setup with an explicit configuration.
func SetupWithConfig(ctx context.Context, serviceName string, cfg Config) (func(context.Context) error, error) {
	if !cfg.active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.Endpoint)),
	)
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func noop(context.Context) error { return nil }
