package observability

import (
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		serviceName: "",
	}
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	meter := noop.NewMeterProvider().Meter("")
	m := &Metrics{}

	m.requestDuration, _ = meter.Float64Histogram("cellschema.request.duration")           //nolint:errcheck
	m.requestCount, _ = meter.Int64Counter("cellschema.request.count")                     //nolint:errcheck
	m.resultCount, _ = meter.Int64Histogram("cellschema.result.count")                     //nolint:errcheck
	m.dbQueryDuration, _ = meter.Float64Histogram("cellschema.db.query.duration")          //nolint:errcheck
	m.dynamicRegistrations, _ = meter.Int64Counter("cellschema.dynamic_property.count")    //nolint:errcheck
	m.errorCount, _ = meter.Int64Counter("cellschema.error.count")                         //nolint:errcheck

	return m
}
