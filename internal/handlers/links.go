package handlers

import (
	"net/http"

	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
)

// HandlePropertyLinks serves Property(...)/$links/_EntityType. The
// association to the owning EntityType is part of the composite key, so it
// can be read but never rewired.
func (h *SchemaHandler) HandlePropertyLinks(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	name, entityTypeName, err := propertyKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}
	r, end := h.startOperation(r, entitySetProperty, observability.OpLinks, key)
	defer end()

	switch r.Method {
	case http.MethodGet:
		found, err := h.engine.Get(r.Context(), scope, name, entityTypeName)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		uris := []string{entityTypeURI(serviceRoot, found.EntityTypeName)}
		if werr := response.WriteLinks(w, uris); werr != nil {
			h.logger.Error("Error writing links response", "error", werr)
		}
	case http.MethodPost, http.MethodDelete:
		h.writeFailure(w, r, response.NoSuchAssociation())
	case http.MethodPut:
		h.writeFailure(w, r, response.MethodNotImplemented())
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandleEntityTypeLinks serves EntityType('x')/$links/_Property: a read-only
// listing of the owned property URIs.
func (h *SchemaHandler) HandleEntityTypeLinks(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	entityTypeName, err := singleKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}
	r, end := h.startOperation(r, entitySetEntityType, observability.OpLinks, key)
	defer end()

	switch r.Method {
	case http.MethodGet:
		properties, err := h.engine.ListByEntityType(r.Context(), scope, entityTypeName)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		uris := make([]string, 0, len(properties))
		for i := range properties {
			uris = append(uris, propertyURI(serviceRoot, &properties[i]))
		}
		if werr := response.WriteLinks(w, uris); werr != nil {
			h.logger.Error("Error writing links response", "error", werr)
		}
	case http.MethodPost, http.MethodDelete:
		h.writeFailure(w, r, response.NoSuchAssociation())
	case http.MethodPut:
		h.writeFailure(w, r, response.MethodNotImplemented())
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandleEntityTypeProperties serves EntityType('x')/_Property: GET lists the
// owned properties, POST declares a property with _EntityType.Name implied
// by the path.
func (h *SchemaHandler) HandleEntityTypeProperties(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	entityTypeName, err := singleKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listProperties(w, r, scope, serviceRoot, entityTypeName)
	case http.MethodPost:
		h.createProperty(w, r, scope, serviceRoot, entityTypeName)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}
