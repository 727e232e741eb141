// Package handlers maps HTTP verbs on the schema resources onto the
// property engine and the schema stores, and renders the wire envelopes.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/property"
	"github.com/celldav/cellschema/internal/query"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/userdata"
)

// SchemaHandler serves the Property, EntityType and ComplexType resources
// of one collection-scoped schema endpoint.
type SchemaHandler struct {
	engine  *property.Engine
	schemas *schema.Store
	records *userdata.Store
	obs     *observability.Config
	logger  *slog.Logger
}

// NewSchemaHandler creates a handler bundle over the shared stores. A nil
// observability config degrades to no-op instrumentation.
func NewSchemaHandler(engine *property.Engine, schemas *schema.Store, records *userdata.Store, obs *observability.Config, logger *slog.Logger) *SchemaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaHandler{engine: engine, schemas: schemas, records: records, obs: obs, logger: logger}
}

// startOperation opens the span and Server-Timing entry of one resource
// operation and stamps the labels the error metrics use. The returned
// request carries the operation context; call end when the operation is
// done.
func (h *SchemaHandler) startOperation(r *http.Request, entitySet, operation, key string) (*http.Request, func()) {
	ctx := observability.WithOperation(r.Context(), entitySet, operation)
	ctx, span := h.obs.Tracer().StartSchemaOperation(ctx, entitySet, operation, key)
	timing := observability.StartServerTimingWithDesc(ctx, operation, entitySet)
	return r.WithContext(ctx), func() {
		timing.Stop()
		span.End()
	}
}

// HandlePropertyCollection serves the Property entity set: POST declares a
// property, GET lists the properties in scope.
func (h *SchemaHandler) HandlePropertyCollection(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot string) {
	switch r.Method {
	case http.MethodPost:
		r, end := h.startOperation(r, entitySetProperty, observability.OpCreate, "")
		defer end()
		h.createProperty(w, r, scope, serviceRoot, "")
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetProperty, observability.OpReadCollection, "")
		defer end()
		h.listProperties(w, r, scope, serviceRoot, "")
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandlePropertyEntity serves one Property addressed by its composite key.
func (h *SchemaHandler) HandlePropertyEntity(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, key string) {
	name, entityTypeName, err := propertyKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}

	switch r.Method {
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetProperty, observability.OpReadEntity, key)
		defer end()
		h.getProperty(w, r, scope, serviceRoot, name, entityTypeName)
	case http.MethodPut:
		r, end := h.startOperation(r, entitySetProperty, observability.OpUpdate, key)
		defer end()
		h.updateProperty(w, r, scope, name, entityTypeName)
	case http.MethodDelete:
		r, end := h.startOperation(r, entitySetProperty, observability.OpDelete, key)
		defer end()
		h.deleteProperty(w, r, scope, name, entityTypeName)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// createProperty declares a Property. When impliedEntityType is non-empty
// the request arrived through an EntityType navigation and the body's
// _EntityType.Name is filled in from the path.
func (h *SchemaHandler) createProperty(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, impliedEntityType string) {
	payload, err := property.ParsePayload(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	if impliedEntityType != "" && !payload.Has(property.FieldEntityTypeName) {
		payload.Set(property.FieldEntityTypeName, impliedEntityType)
	}

	created, err := h.engine.Create(r.Context(), scope, payload)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	body, err := propertyBody(serviceRoot, created)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	w.Header().Set(HeaderLocation, propertyURI(serviceRoot, created))
	w.Header().Set(HeaderETag, etag.Generate(created.Updated))
	if werr := response.WriteEntity(w, http.StatusCreated, body); werr != nil {
		h.logger.Error("Error writing entity response", "error", werr)
	}
}

// listProperties lists the properties in scope, optionally restricted to
// one EntityType, with $filter, $orderby and $top applied in memory.
func (h *SchemaHandler) listProperties(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, entityTypeName string) {
	options, err := query.ParseOptions(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidQuery)
		return
	}

	var properties []schema.Property
	if entityTypeName == "" {
		properties, err = h.engine.List(r.Context(), scope)
	} else {
		properties, err = h.engine.ListByEntityType(r.Context(), scope, entityTypeName)
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(properties))
	for i := range properties {
		body, err := propertyBody(serviceRoot, &properties[i])
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		entries = append(entries, body)
	}

	results := make([]interface{}, 0, len(entries))
	for _, entry := range options.Apply(entries) {
		results = append(results, entry)
	}
	h.obs.Metrics().RecordResultCount(r.Context(), entitySetProperty, int64(len(results)))
	if werr := response.WriteList(w, http.StatusOK, results); werr != nil {
		h.logger.Error("Error writing list response", "error", werr)
	}
}

func (h *SchemaHandler) getProperty(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, name, entityTypeName string) {
	found, err := h.engine.Get(r.Context(), scope, name, entityTypeName)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	body, err := propertyBody(serviceRoot, found)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	w.Header().Set(HeaderETag, etag.Generate(found.Updated))
	if werr := response.WriteEntity(w, http.StatusOK, body); werr != nil {
		h.logger.Error("Error writing entity response", "error", werr)
	}
}

func (h *SchemaHandler) updateProperty(w http.ResponseWriter, r *http.Request, scope schema.Scope, name, entityTypeName string) {
	payload, err := property.ParsePayload(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	ifMatch := r.Header.Get(HeaderIfMatch)
	if err := h.engine.Update(r.Context(), scope, name, entityTypeName, payload, ifMatch); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	// The row may now live under a new name; re-read for the fresh ETag.
	newName := name
	if value, ok := payload.Get(property.FieldName).(string); ok {
		newName = value
	}
	if updated, err := h.engine.Get(r.Context(), scope, newName, entityTypeName); err == nil {
		w.Header().Set(HeaderETag, etag.Generate(updated.Updated))
	}
	response.SetDataServiceVersionHeader(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchemaHandler) deleteProperty(w http.ResponseWriter, r *http.Request, scope schema.Scope, name, entityTypeName string) {
	ifMatch := r.Header.Get(HeaderIfMatch)
	if err := h.engine.Delete(r.Context(), scope, name, entityTypeName, ifMatch); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	response.SetDataServiceVersionHeader(w)
	w.WriteHeader(http.StatusNoContent)
}
