package handlers

import (
	"errors"
	"net/http"

	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
)

// HandleComplexTypeCollection serves the ComplexType entity set.
func (h *SchemaHandler) HandleComplexTypeCollection(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot string) {
	switch r.Method {
	case http.MethodPost:
		r, end := h.startOperation(r, entitySetComplexType, observability.OpCreate, "")
		defer end()
		name, serr := parseNamePayload(r)
		if serr != nil {
			h.writeFailure(w, r, serr)
			return
		}
		created, err := h.schemas.CreateComplexType(r.Context(), scope, name)
		if err != nil {
			if errors.Is(err, schema.ErrDuplicate) {
				h.writeFailure(w, r, response.AlreadyExists())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		w.Header().Set(HeaderLocation, complexTypeURI(serviceRoot, created.Name))
		w.Header().Set(HeaderETag, etag.Generate(created.Updated))
		if werr := response.WriteEntity(w, http.StatusCreated, complexTypeBody(serviceRoot, created)); werr != nil {
			h.logger.Error("Error writing entity response", "error", werr)
		}
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetComplexType, observability.OpReadCollection, "")
		defer end()
		complexTypes, err := h.schemas.ListComplexTypes(r.Context(), scope)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		results := make([]interface{}, 0, len(complexTypes))
		for i := range complexTypes {
			results = append(results, complexTypeBody(serviceRoot, &complexTypes[i]))
		}
		if werr := response.WriteList(w, http.StatusOK, results); werr != nil {
			h.logger.Error("Error writing list response", "error", werr)
		}
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandleComplexTypeEntity serves one ComplexType. Deleting is blocked while
// any declared property still uses the type.
func (h *SchemaHandler) HandleComplexTypeEntity(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	name, err := singleKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}

	switch r.Method {
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetComplexType, observability.OpReadEntity, name)
		defer end()
		found, err := h.schemas.GetComplexType(r.Context(), scope, name)
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				h.writeFailure(w, r, response.NotFound())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		w.Header().Set(HeaderETag, etag.Generate(found.Updated))
		if werr := response.WriteEntity(w, http.StatusOK, complexTypeBody(serviceRoot, found)); werr != nil {
			h.logger.Error("Error writing entity response", "error", werr)
		}
	case http.MethodDelete:
		r, end := h.startOperation(r, entitySetComplexType, observability.OpDelete, name)
		defer end()
		h.deleteComplexType(w, r, scope, name)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

func (h *SchemaHandler) deleteComplexType(w http.ResponseWriter, r *http.Request, scope schema.Scope, name string) {
	ctx := r.Context()
	if _, err := h.schemas.GetComplexType(ctx, scope, name); err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			h.writeFailure(w, r, response.NotFound())
			return
		}
		h.writeFailure(w, r, err)
		return
	}

	inUse, err := h.schemas.CountPropertiesOfType(ctx, scope, name)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if inUse > 0 {
		h.writeFailure(w, r, response.Conflict())
		return
	}

	if err := h.schemas.DeleteComplexType(ctx, scope, name); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	response.SetDataServiceVersionHeader(w)
	w.WriteHeader(http.StatusNoContent)
}
