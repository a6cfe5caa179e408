package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func spanAttrs(span tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestTraceOp_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOp(context.Background(), Op{
		System:    SystemPostgres,
		Name:      "LoadCart",
		Statement: "SELECT payload FROM cart_slots WHERE key = $1",
		Key:       "suivie_cart_v1",
	})
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.LoadCart", span.Name)

	attrs := spanAttrs(span)
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "LoadCart", attrs["db.operation"])
	assert.Equal(t, "SELECT payload FROM cart_slots WHERE key = $1", attrs["db.statement"])
	assert.Equal(t, "suivie_cart_v1", attrs["cart.key"])
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestTraceOp_RedisOmitsStatement(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceOp(context.Background(), Op{System: SystemRedis, Name: "GET", Key: "k"})
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "redis", attrs["db.system"])
	assert.NotContains(t, attrs, "db.statement")
}

func TestTraceOp_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "SaveCart", "INSERT INTO cart_slots")
	end(errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events, "expected error event on span")
}

func TestTraceOp_ObservesDuration(t *testing.T) {
	setupTestTracer(t)
	before := testutil.CollectAndCount(operationDuration)

	_, end := TraceOp(context.Background(), Op{System: SystemRedis, Name: "SET_observed"})
	end(nil)

	assert.Equal(t, before+1, testutil.CollectAndCount(operationDuration))
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	SetSlowQueryLogging(time.Nanosecond, logger)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceOp(context.Background(), Op{System: SystemPostgres, Name: "SaveCart", Key: "k1"})
	end(errors.New("unique constraint violation"))

	out := buf.String()
	assert.Contains(t, out, "slow storage operation")
	assert.Contains(t, out, "SaveCart")
	assert.Contains(t, out, `"key":"k1"`)
	assert.Contains(t, out, "unique constraint violation")
}

func TestSlowQueryLogging_FastQueryNotLogged(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Hour, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "LoadCart", "SELECT 1")
	end(nil)

	assert.Empty(t, buf.String())
}

func TestSlowQueryLogging_Disabled(t *testing.T) {
	setupTestTracer(t)
	SetSlowQueryLogging(time.Nanosecond, nil)

	_, end := TraceQuery(context.Background(), "LoadCart", "SELECT 1")
	assert.NotPanics(t, func() { end(nil) })
}
