package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/property"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/userdata"
)

// recordTypeNamespace prefixes user data __metadata type names.
const recordTypeNamespace = "UserData"

// HandleRecordCollection serves the user data entity set of one EntityType:
// POST stores a record after filling defaults and registering dynamic
// properties, GET lists the stored records.
func (h *SchemaHandler) HandleRecordCollection(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, entityTypeName string) {
	if _, err := h.schemas.GetEntityType(r.Context(), scope, entityTypeName); err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			h.writeFailure(w, r, response.NotFound())
			return
		}
		h.writeFailure(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		r, end := h.startOperation(r, entitySetRecord, observability.OpRecordCreate, "")
		defer end()
		h.createRecord(w, r, scope, serviceRoot, entityTypeName)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

// HandleRecordEntity serves one stored record by its __id.
func (h *SchemaHandler) HandleRecordEntity(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, entityTypeName, key string) {
	id, err := singleKey(key)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidKey)
		return
	}

	switch r.Method {
	case http.MethodGet:
		r, end := h.startOperation(r, entitySetRecord, observability.OpReadEntity, id)
		defer end()
		record, err := h.records.Get(r.Context(), scope, entityTypeName, id)
		if err != nil {
			if errors.Is(err, userdata.ErrNotFound) {
				h.writeFailure(w, r, response.NotFound())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		body, err := recordBody(serviceRoot, entityTypeName, record)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		w.Header().Set(HeaderETag, etag.Generate(record.Updated))
		if werr := response.WriteEntity(w, http.StatusOK, body); werr != nil {
			h.logger.Error("Error writing entity response", "error", werr)
		}
	case http.MethodDelete:
		r, end := h.startOperation(r, entitySetRecord, observability.OpRecordDelete, id)
		defer end()
		if err := h.records.Delete(r.Context(), scope, entityTypeName, id); err != nil {
			if errors.Is(err, userdata.ErrNotFound) {
				h.writeFailure(w, r, response.NotFound())
				return
			}
			h.writeFailure(w, r, err)
			return
		}
		response.SetDataServiceVersionHeader(w)
		w.WriteHeader(http.StatusNoContent)
	default:
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
	}
}

func (h *SchemaHandler) createRecord(w http.ResponseWriter, r *http.Request, scope schema.Scope, serviceRoot, entityTypeName string) {
	payload, err := property.ParsePayload(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, response.CodeBadRequest, ErrMsgInvalidRequestBody)
		return
	}
	document := payload.Fields()

	id := ""
	if raw, ok := document["__id"]; ok {
		value, ok := raw.(string)
		if !ok || value == "" {
			h.writeFailure(w, r, response.FieldFormat("__id"))
			return
		}
		id = value
		delete(document, "__id")
	}

	ctx := r.Context()
	declared, err := h.schemas.ListPropertiesByEntityType(ctx, scope, entityTypeName)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if serr := h.conformDocument(document, declared); serr != nil {
		h.writeFailure(w, r, serr)
		return
	}

	record, err := h.engine.StoreRecord(ctx, scope, entityTypeName, id, document)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	body, err := recordBody(serviceRoot, entityTypeName, record)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.Header().Set(HeaderLocation, recordURI(serviceRoot, entityTypeName, record.ID))
	w.Header().Set(HeaderETag, etag.Generate(record.Updated))
	if werr := response.WriteEntity(w, http.StatusCreated, body); werr != nil {
		h.logger.Error("Error writing entity response", "error", werr)
	}
}

// conformDocument checks supplied values against the declared property
// schema and fills absent declared fields from their defaults. A missing
// non-nullable field without a default is a 400.
func (h *SchemaHandler) conformDocument(document map[string]interface{}, declared []schema.Property) *response.StatusError {
	for i := range declared {
		prop := &declared[i]
		value, present := document[prop.Name]

		if present && value != nil {
			kind, ok := edm.PrimitiveKind(prop.Type)
			if !ok {
				// Complex-typed fields keep their object form untouched.
				continue
			}
			if err := edm.ValidateDefaultValue(kind, value, h.engine.DateTimeBounds()); err != nil {
				return response.FieldFormat(prop.Name)
			}
			continue
		}
		if present && !prop.Nullable {
			return response.FieldFormat(prop.Name)
		}
		if present {
			continue
		}

		defaultValue, err := property.DecodeDefault(prop)
		if err != nil {
			return &response.StatusError{
				Status:  http.StatusInternalServerError,
				Code:    response.CodeInternalError,
				Message: ErrMsgInternalError,
			}
		}
		if defaultValue != nil {
			if text, ok := defaultValue.(string); ok && text == edm.SysUTCDateTime {
				defaultValue = edm.FormatDateLiteral(time.Now().UnixMilli())
			}
			document[prop.Name] = defaultValue
			continue
		}
		if !prop.Nullable {
			return response.RequiredFieldMissing(prop.Name)
		}
	}
	return nil
}

// recordURI renders the canonical URI of a stored record.
func recordURI(serviceRoot, entityTypeName, id string) string {
	return fmt.Sprintf("%s/%s(%s)", serviceRoot, entityTypeName, quoteKeyValue(id))
}

// recordBody assembles the wire representation of a stored record: the
// document fields plus the __id and system timestamps.
func recordBody(serviceRoot, entityTypeName string, record *userdata.Record) (map[string]interface{}, error) {
	document, err := record.DecodeDocument()
	if err != nil {
		return nil, err
	}

	body := make(map[string]interface{}, len(document)+4)
	for field, value := range document {
		body[field] = value
	}
	body["__metadata"] = response.Metadata{
		URI:  recordURI(serviceRoot, entityTypeName, record.ID),
		ETag: etag.Generate(record.Updated),
		Type: recordTypeNamespace + "." + entityTypeName,
	}
	body["__id"] = record.ID
	body["__published"] = edm.FormatDateLiteral(record.Published)
	body["__updated"] = edm.FormatDateLiteral(record.Updated)
	return body, nil
}
