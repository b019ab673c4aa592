package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/donaldgifford/restock-tracker/internal/config"
	"github.com/donaldgifford/restock-tracker/pkg/logger"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), config.TracingConfig{}, "test", logger.Discard())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := NewProvider(
		config.TracingConfig{ServiceName: "restock-tracker"},
		"v1.2.3",
		sdktrace.WithSpanProcessor(rec),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "engine.RunCheck")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.RunCheck", spans[0].Name())

	var service string
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "restock-tracker", service)
}

func TestNewProvider_ZeroRatioDropsRootSpans(t *testing.T) {
	t.Parallel()

	zero := 0.0
	rec := tracetest.NewSpanRecorder()
	tp := NewProvider(config.TracingConfig{ServiceName: "x", SampleRatio: &zero}, "dev", sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	assert.Empty(t, rec.Ended())
}

func TestSetup_MetricsRequireEndpoint(t *testing.T) {
	t.Parallel()

	cfg := config.TracingConfig{ExportMetrics: true, MetricInterval: time.Second}
	shutdown, err := Setup(context.Background(), cfg, "test", logger.Discard())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewMeterProvider_CollectsCounters(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider(config.TracingConfig{ServiceName: "restock-tracker"}, "v1.2.3", sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("restock.check.runs")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	service, ok := rm.Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "restock-tracker", service.AsString())

	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}
