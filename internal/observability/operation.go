package observability

import "context"

type operationKey struct{}

type operationInfo struct {
	entitySet string
	operation string
}

// WithOperation stamps the entity set and operation of the current request
// on the context so downstream error metrics carry the same labels as the
// operation's span.
func WithOperation(ctx context.Context, entitySet, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operationInfo{entitySet: entitySet, operation: operation})
}

// OperationFromContext returns the stamped entity set and operation, or
// empty strings when none were stamped.
func OperationFromContext(ctx context.Context) (entitySet, operation string) {
	info, _ := ctx.Value(operationKey{}).(operationInfo)
	return info.entitySet, info.operation
}
