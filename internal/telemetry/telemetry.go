// Package telemetry configures OpenTelemetry. Spans, and optionally metrics,
// are exported over OTLP/gRPC when an endpoint is configured; otherwise the
// global no-op providers stay in place and instrumentation costs nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"

	"github.com/donaldgifford/restock-tracker/internal/config"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs the global tracer provider described by cfg, and the meter
// provider when cfg.ExportMetrics is set.
func Setup(ctx context.Context, cfg config.TracingConfig, version string, log *slog.Logger) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		log.Debug("telemetry export disabled")
		return noopShutdown, nil
	}

	userAgent := grpc.WithUserAgent("restock-tracker/" + version)

	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(userAgent),
	}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(traceOpts...))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	tp := NewProvider(cfg, version, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdowns := []ShutdownFunc{tp.Shutdown}

	if cfg.ExportMetrics {
		metricOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithDialOption(userAgent),
		}
		if cfg.Insecure {
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		mexp, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
		}
		mp := NewMeterProvider(cfg, version,
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mexp, sdkmetric.WithInterval(cfg.MetricInterval))),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	log.Info("telemetry export enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"sample_ratio", cfg.Ratio(),
		"metrics", cfg.ExportMetrics,
	)
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func newResource(cfg config.TracingConfig, version string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)
}

// NewProvider builds a tracer provider with the service resource and
// sampler from cfg. Extra options add span processors or exporters.
func NewProvider(cfg config.TracingConfig, version string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(newResource(cfg, version)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Ratio()))),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

// NewMeterProvider builds a meter provider with the service resource.
// Options add readers.
func NewMeterProvider(cfg config.TracingConfig, version string, opts ...sdkmetric.Option) *sdkmetric.MeterProvider {
	base := []sdkmetric.Option{sdkmetric.WithResource(newResource(cfg, version))}
	return sdkmetric.NewMeterProvider(append(base, opts...)...)
}
