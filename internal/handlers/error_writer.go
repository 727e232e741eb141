package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
)

// WriteError writes a standard error body and logs if the write fails.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	if err := response.WriteError(w, status, code, message); err != nil {
		slog.Error("Error writing error response", "error", err)
	}
}

// writeFailure renders an error returned by the engine or store layer and
// counts it under the current operation's labels. A StatusError carries
// its own status and code; anything else is a 500.
func (h *SchemaHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	entitySet, operation := observability.OperationFromContext(r.Context())

	var serr *response.StatusError
	if errors.As(err, &serr) {
		h.obs.Metrics().RecordError(r.Context(), entitySet, operation, serr.Code)
		if werr := response.WriteStatusError(w, serr); werr != nil {
			h.logger.Error("Error writing error response", "error", werr)
		}
		return
	}
	h.obs.Metrics().RecordError(r.Context(), entitySet, operation, response.CodeInternalError)
	h.logger.Error("Request failed", "error", err)
	WriteError(w, http.StatusInternalServerError, response.CodeInternalError, ErrMsgInternalError)
}
