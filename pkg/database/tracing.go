package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/suivie/storefront/pkg/database"

// Storage systems reported on spans and metrics.
const (
	SystemPostgres = "postgresql"
	SystemRedis    = "redis"
)

var operationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "storage_operation_duration_seconds",
		Help:    "Duration of cart slot storage operations",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	},
	[]string{"system", "operation", "outcome"},
)

type slowConfig struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowOps atomic.Pointer[slowConfig]

// SetSlowQueryLogging logs operations that take at least threshold as
// warnings. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowOps.Store(nil)
		return
	}
	slowOps.Store(&slowConfig{threshold: threshold, logger: logger})
}

// Op describes one storage round trip.
type Op struct {
	System    string
	Name      string
	Statement string
	Key       string
}

// TraceOp starts a client span for op and returns the function that ends it,
// typically deferred:
//
//	ctx, end := database.TraceOp(ctx, database.Op{System: database.SystemPostgres, Name: "LoadCart", Statement: loadQuery, Key: key})
//	defer func() { end(err) }()
func TraceOp(ctx context.Context, op Op) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("db.system", op.System),
		attribute.String("db.operation", op.Name),
	}
	if op.Statement != "" {
		attrs = append(attrs, attribute.String("db.statement", op.Statement))
	}
	if op.Key != "" {
		attrs = append(attrs, attribute.String("cart.key", op.Key))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+op.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		operationDuration.WithLabelValues(op.System, op.Name, outcome).Observe(elapsed.Seconds())

		cfg := slowOps.Load()
		if cfg == nil || elapsed < cfg.threshold {
			return
		}
		logAttrs := []any{
			slog.String("system", op.System),
			slog.String("operation", op.Name),
			slog.String("key", op.Key),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			logAttrs = append(logAttrs, slog.String("error", err.Error()))
		}
		cfg.logger.WarnContext(ctx, "slow storage operation", logAttrs...)
	}
}

// TraceQuery is TraceOp for a PostgreSQL statement.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return TraceOp(ctx, Op{System: SystemPostgres, Name: operation, Statement: statement})
}
