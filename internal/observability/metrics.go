package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the schema-service metric instruments.
type Metrics struct {
	requestDuration      metric.Float64Histogram
	requestCount         metric.Int64Counter
	resultCount          metric.Int64Histogram
	dbQueryDuration      metric.Float64Histogram
	dynamicRegistrations metric.Int64Counter
	errorCount           metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Instrument creation only fails on invalid parameters; fall back to
	// the bare instrument so partial metrics keep working.
	var err error

	m.requestDuration, err = meter.Float64Histogram(
		"cellschema.request.duration",
		metric.WithDescription("Duration of schema service requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.requestDuration, _ = meter.Float64Histogram("cellschema.request.duration")
	}

	m.requestCount, err = meter.Int64Counter(
		"cellschema.request.count",
		metric.WithDescription("Total number of schema service requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.requestCount, _ = meter.Int64Counter("cellschema.request.count")
	}

	m.resultCount, err = meter.Int64Histogram(
		"cellschema.result.count",
		metric.WithDescription("Number of entities returned in listing requests"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		m.resultCount, _ = meter.Int64Histogram("cellschema.result.count")
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"cellschema.db.query.duration",
		metric.WithDescription("Duration of database queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.dbQueryDuration, _ = meter.Float64Histogram("cellschema.db.query.duration")
	}

	m.dynamicRegistrations, err = meter.Int64Counter(
		"cellschema.dynamic_property.count",
		metric.WithDescription("Number of dynamic properties registered through user data writes"),
		metric.WithUnit("{property}"),
	)
	if err != nil {
		m.dynamicRegistrations, _ = meter.Int64Counter("cellschema.dynamic_property.count")
	}

	m.errorCount, err = meter.Int64Counter(
		"cellschema.error.count",
		metric.WithDescription("Total number of schema service errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.errorCount, _ = meter.Int64Counter("cellschema.error.count")
	}

	return m
}

// RecordRequest records a completed request with its duration.
func (m *Metrics) RecordRequest(ctx context.Context, entitySet, operation string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		EntitySetAttr(entitySet),
		OperationAttr(operation),
		attribute.Int("http.status_code", statusCode),
	)
	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordResultCount records the number of entities returned by a listing.
func (m *Metrics) RecordResultCount(ctx context.Context, entitySet string, count int64) {
	m.resultCount.Record(ctx, count, metric.WithAttributes(EntitySetAttr(entitySet)))
}

// RecordDBQuery records the duration of a database query.
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	m.dbQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordDynamicRegistration counts dynamic properties created on a user
// data write.
func (m *Metrics) RecordDynamicRegistration(ctx context.Context, entityType string, count int64) {
	m.dynamicRegistrations.Add(ctx, count,
		metric.WithAttributes(attribute.String(AttrEntityType, entityType)))
}

// RecordError records an error by entity set, operation and error code.
func (m *Metrics) RecordError(ctx context.Context, entitySet, operation, errorCode string) {
	m.errorCount.Add(ctx, 1, metric.WithAttributes(
		EntitySetAttr(entitySet),
		OperationAttr(operation),
		ErrorCodeAttr(errorCode),
	))
}
