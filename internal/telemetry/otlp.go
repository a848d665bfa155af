// Package telemetry configures OTLP trace export for the panel.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/codewave/panel/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

const defaultTracesPath = "/v1/traces"

func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting to cfg.Endpoint.
// With no endpoint configured tracing stays disabled and the returned
// Shutdown does nothing.
func Setup(ctx context.Context, cfg config.TracingConfig, version string) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noopShutdown, nil
	}

	opts, err := exporterOptions(cfg)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.ServiceName, version)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// exporterOptions accepts either host:port or a full URL. A URL carries its
// own scheme; with no path it posts to the standard traces path.
func exporterOptions(cfg config.TracingConfig) ([]otlptracehttp.Option, error) {
	if !strings.Contains(cfg.Endpoint, "://") {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return opts, nil
	}
	u, err := tracesURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(u)}, nil
}

func tracesURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing tracing endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("tracing endpoint %q has no host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultTracesPath
	}
	return u.String(), nil
}

func newResource(serviceName, version string) *resource.Resource {
	if serviceName == "" {
		serviceName = "codewave-panel"
	}
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version),
	)
}
