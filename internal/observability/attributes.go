// Package observability provides OpenTelemetry-based instrumentation for
// the schema service.
//
// All features are opt-in. When not configured, no-op implementations are
// used with zero performance overhead.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/celldav/cellschema"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/celldav/cellschema"
)

// Semantic attribute keys for schema service spans.
const (
	// Scope attributes
	AttrCell       = "schema.cell"
	AttrBox        = "schema.box"
	AttrCollection = "schema.collection"

	// Resource attributes
	AttrEntitySet  = "schema.entity_set"
	AttrEntityKey  = "schema.entity_key"
	AttrEntityType = "schema.entity_type"
	AttrOperation  = "schema.operation"

	// Result attributes
	AttrResultCount = "schema.result.count"

	// Error attributes
	AttrErrorCode    = "schema.error.code"
	AttrErrorMessage = "schema.error.message"
)

// Operation types for the schema.operation attribute.
const (
	OpReadCollection = "read_collection"
	OpReadEntity     = "read_entity"
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpLinks          = "links"
	OpRecordCreate   = "record_create"
	OpRecordDelete   = "record_delete"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldEntitySet = "schema.entity_set"
	LogFieldOperation = "schema.operation"
	LogFieldTraceID   = "trace_id"
	LogFieldSpanID    = "span_id"
	LogFieldDuration  = "duration_ms"
	LogFieldError     = "error"
)

// EntitySetAttr creates an attribute for the entity set name.
func EntitySetAttr(name string) attribute.KeyValue {
	return attribute.String(AttrEntitySet, name)
}

// EntityKeyAttr creates an attribute for the entity key.
func EntityKeyAttr(key string) attribute.KeyValue {
	return attribute.String(AttrEntityKey, key)
}

// OperationAttr creates an attribute for the operation type.
func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// ResultCountAttr creates an attribute for the result count.
func ResultCountAttr(count int64) attribute.KeyValue {
	return attribute.Int64(AttrResultCount, count)
}

// ErrorCodeAttr creates an attribute for the error code.
func ErrorCodeAttr(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// CellAttr creates an attribute for the cell name.
func CellAttr(cell string) attribute.KeyValue {
	return attribute.String(AttrCell, cell)
}

// CollectionAttr creates an attribute for the collection name.
func CollectionAttr(collection string) attribute.KeyValue {
	return attribute.String(AttrCollection, collection)
}
