package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
)

// namePayload is the body shape of EntityType and ComplexType creates.
type namePayload struct {
	Name *string `json:"Name"`
}

func parseNamePayload(r *http.Request) (string, *response.StatusError) {
	var payload namePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return "", &response.StatusError{
			Status:  http.StatusBadRequest,
			Code:    response.CodeBadRequest,
			Message: ErrMsgInvalidRequestBody,
		}
	}
	if payload.Name == nil {
		return "", response.RequiredFieldMissing("Name")
	}
	if !edm.ValidName(*payload.Name) {
		return "", response.FieldFormat("Name")
	}
	return *payload.Name, nil
}

// HandleEntityTypeCollection serves the EntityType entity set.
func (h *SchemaHandler) HandleEntityTypeCollection(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot string) {
	switch r.Method {
	case http.MethodPost:
		r, end := h.startOperation(r, entitySetEntityType, observability.OpCreate, "")
		defer end()
		name, serr := parseNamePayload(r)
		if serr != nil {
			h.writeFailure(w, r, serr)
			return
		}
		created, err := h.schemas.CreateEntityType(r.Context(), scope, name)
		if err != nil {
			if errors.Is(err, schema.ErrDuplicate) {
				h.writeFailure(w, r, response.AlreadyExists())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		w.Header().Set(HeaderLocation, entityTypeURI(serviceRoot, created.Name))
		w.Header().Set(HeaderETag, etag.Generate(created.Updated))
		if werr := response.WriteEntity(w, http.StatusCreated, entityTypeBody(serviceRoot, created)); werr != nil {
			h.logger.Error("Error writing entity response", "error", werr)
		}
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetEntityType, observability.OpReadCollection, "")
		defer end()
		entityTypes, err := h.schemas.ListEntityTypes(r.Context(), scope)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		results := make([]interface{}, 0, len(entityTypes))
		for i := range entityTypes {
			results = append(results, entityTypeBody(serviceRoot, &entityTypes[i]))
		}
		if werr := response.WriteList(w, http.StatusOK, results); werr != nil {
			h.logger.Error("Error writing list response", "error", werr)
		}
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandleEntityTypeEntity serves one EntityType. Deleting is blocked while
// properties or records still reference it.
func (h *SchemaHandler) HandleEntityTypeEntity(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	name, err := singleKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}

	switch r.Method {
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetEntityType, observability.OpReadEntity, name)
		defer end()
		found, err := h.schemas.GetEntityType(r.Context(), scope, name)
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				h.writeFailure(w, r, response.NotFound())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		w.Header().Set(HeaderETag, etag.Generate(found.Updated))
		if werr := response.WriteEntity(w, http.StatusOK, entityTypeBody(serviceRoot, found)); werr != nil {
			h.logger.Error("Error writing entity response", "error", werr)
		}
	case http.MethodDelete:
		r, end := h.startOperation(r, entitySetEntityType, observability.OpDelete, name)
		defer end()
		h.deleteEntityType(w, r, scope, name)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

func (h *SchemaHandler) deleteEntityType(w http.ResponseWriter, r *http.Request, scope schema.Scope, name string) {
	ctx := r.Context()
	if _, err := h.schemas.GetEntityType(ctx, scope, name); err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			h.writeFailure(w, r, response.NotFound())
			return
		}
		h.writeFailure(w, r, err)
		return
	}

	count, err := h.schemas.CountProperties(ctx, scope, name)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if count > 0 {
		h.writeFailure(w, r, response.Conflict())
		return
	}

	hasRecords, err := h.records.HasRecords(ctx, scope, name)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if hasRecords {
		h.writeFailure(w, r, response.Conflict())
		return
	}

	if err := h.schemas.DeleteEntityType(ctx, scope, name); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	response.SetDataServiceVersionHeader(w)
	w.WriteHeader(http.StatusNoContent)
}
