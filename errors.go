package cellschema

import (
	"errors"

	"github.com/celldav/cellschema/internal/response"
)

// Error codes surfaced in response bodies. Exported so callers embedding
// the service can match on failures programmatically.
const (
	CodeInputRequiredFieldMissing = response.CodeInputRequiredFieldMissing
	CodeRequestFieldFormat        = response.CodeRequestFieldFormat
	CodeBodyNTKPNotFound          = response.CodeBodyNTKPNotFound
	CodeEntityAlreadyExists       = response.CodeEntityAlreadyExists
	CodeOperationNotSupported     = response.CodeOperationNotSupported
	CodeNotFound                  = response.CodeNotFound
	CodeConflict                  = response.CodeConflict
	CodeNoSuchAssociation         = response.CodeNoSuchAssociation
	CodeMethodNotImplemented      = response.CodeMethodNotImplemented
	CodePropertyCountExceeded     = response.CodePropertyCountExceeded
	CodePreconditionFailed        = response.CodePreconditionFailed
)

// StatusError is the error type carried by schema operation failures. It
// exposes the HTTP status and wire error code of the failure.
type StatusError = response.StatusError

// AsStatusError extracts a StatusError from an error chain.
func AsStatusError(err error) (*StatusError, bool) {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}
