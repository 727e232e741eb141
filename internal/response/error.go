package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes surfaced in response bodies. The taxonomy follows the
// service's schema-management contract.
const (
	CodeInputRequiredFieldMissing = "INPUT_REQUIRED_FIELD_MISSING"
	CodeRequestFieldFormat        = "REQUEST_FIELD_FORMAT_ERROR"
	CodeBodyNTKPNotFound          = "BODY_NTKP_NOT_FOUND_ERROR"
	CodeEntityAlreadyExists       = "ENTITY_ALREADY_EXISTS"
	CodeOperationNotSupported     = "OPERATION_NOT_SUPPORTED"
	CodeNotFound                  = "NOT_FOUND"
	CodeConflict                  = "CONFLICT"
	CodeNoSuchAssociation         = "NO_SUCH_ASSOCIATION"
	CodeMethodNotImplemented      = "METHOD_NOT_IMPLEMENTED"
	CodeMethodNotAllowed          = "METHOD_NOT_ALLOWED"
	CodePropertyCountExceeded     = "PROPERTY_COUNT_EXCEEDED"
	CodePreconditionFailed        = "PRECONDITION_FAILED"
	CodeUnsupportedVersion        = "UNSUPPORTED_DATA_SERVICE_VERSION"
	CodeBadRequest                = "BAD_REQUEST"
	CodeInternalError             = "INTERNAL_SERVER_ERROR"
)

// ErrorMessage is the localized message block of an error body.
type ErrorMessage struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// ErrorBody is the wire shape shared by all failure responses:
// {"code": "...", "message": {"lang": "en", "value": "..."}}.
type ErrorBody struct {
	Code    string       `json:"code"`
	Message ErrorMessage `json:"message"`
}

// StatusError is a terminal request failure carrying the HTTP status and
// the error code to render. Engine and store layers return it; handlers
// pass it to WriteStatusError unchanged.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// RequiredFieldMissing builds the 400 returned when a required field is
// absent from the request body.
func RequiredFieldMissing(field string) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeInputRequiredFieldMissing,
		Message: fmt.Sprintf("Required field [%s] is missing", field),
	}
}

// FieldFormat builds the 400 returned when a field value is malformed or
// outside its type domain.
func FieldFormat(field string) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeRequestFieldFormat,
		Message: fmt.Sprintf("Field [%s] format is invalid", field),
	}
}

// NTKPNotFound builds the 400 returned when a navigation-target key in the
// request body references a schema entity that does not exist in scope.
func NTKPNotFound(name string) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeBodyNTKPNotFound,
		Message: fmt.Sprintf("Navigation target [%s] does not exist", name),
	}
}

// AlreadyExists builds the 409 returned on a duplicate create.
func AlreadyExists() *StatusError {
	return &StatusError{
		Status:  http.StatusConflict,
		Code:    CodeEntityAlreadyExists,
		Message: "The entity already exists",
	}
}

// OperationNotSupported builds the 400 returned when an update attempts to
// change an immutable field, naming the field and the from/to values.
func OperationNotSupported(field, from, to string) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeOperationNotSupported,
		Message: fmt.Sprintf("Change of [%s] from [%s] to [%s] is not supported", field, from, to),
	}
}

// NotFound builds the plain 404 for unknown resources.
func NotFound() *StatusError {
	return &StatusError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: "The requested resource does not exist",
	}
}

// Conflict builds the generic 409 for state conflicts such as deleting a
// property that live data still references.
func Conflict() *StatusError {
	return &StatusError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: "The operation conflicts with the current resource state",
	}
}

// NoSuchAssociation builds the 400 for link mutations on the implicit
// Property/EntityType association.
func NoSuchAssociation() *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeNoSuchAssociation,
		Message: "No such association",
	}
}

// MethodNotImplemented builds the 501 for unimplemented verbs.
func MethodNotImplemented() *StatusError {
	return &StatusError{
		Status:  http.StatusNotImplemented,
		Code:    CodeMethodNotImplemented,
		Message: "The method is not implemented",
	}
}

// PropertyCountExceeded builds the 400 returned when the per-EntityType
// property budget would be exceeded.
func PropertyCountExceeded(limit int) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodePropertyCountExceeded,
		Message: fmt.Sprintf("The number of properties exceeds the limit [%d]", limit),
	}
}

// PreconditionFailed builds the 412 for If-Match mismatches.
func PreconditionFailed() *StatusError {
	return &StatusError{
		Status:  http.StatusPreconditionFailed,
		Code:    CodePreconditionFailed,
		Message: "The If-Match precondition was not satisfied",
	}
}

// UnsupportedVersion builds the 400 returned when a request declares a
// data service version the service cannot honor.
func UnsupportedVersion(header, value string) *StatusError {
	return &StatusError{
		Status:  http.StatusBadRequest,
		Code:    CodeUnsupportedVersion,
		Message: fmt.Sprintf("The %s header value [%s] is not supported", header, value),
	}
}

// WriteStatusError renders a StatusError as the standard error body.
func WriteStatusError(w http.ResponseWriter, err *StatusError) error {
	return WriteError(w, err.Status, err.Code, err.Message)
}

// WriteError writes the standard error body with the given status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	SetDataServiceVersionHeader(w)
	w.WriteHeader(status)

	body := ErrorBody{
		Code:    code,
		Message: ErrorMessage{Lang: "en", Value: message},
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(body)
}
