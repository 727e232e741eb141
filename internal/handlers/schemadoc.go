package handlers

import (
	"net/http"

	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
)

// HandleSchemaDocument renders the collection's schema summary: every
// EntityType with its declared properties, and the registered
// ComplexTypes.
func (h *SchemaHandler) HandleSchemaDocument(w http.ResponseWriter, r *http.Request, scope schema.Scope) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, ErrMsgMethodNotAllowed)
		return
	}
	ctx := r.Context()
	timing := observability.StartServerTiming(ctx, "schema_document")
	defer timing.Stop()

	entityTypes, err := h.schemas.ListEntityTypes(ctx, scope)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	typeEntries := make([]map[string]interface{}, 0, len(entityTypes))
	for _, entityType := range entityTypes {
		properties, err := h.schemas.ListPropertiesByEntityType(ctx, scope, entityType.Name)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		declared := make([]map[string]interface{}, 0, len(properties))
		for _, property := range properties {
			if !property.IsDeclared {
				continue
			}
			declared = append(declared, map[string]interface{}{
				"Name":     property.Name,
				"Type":     property.Type,
				"Nullable": property.Nullable,
			})
		}
		typeEntries = append(typeEntries, map[string]interface{}{
			"Name":       entityType.Name,
			"Properties": declared,
		})
	}

	complexTypes, err := h.schemas.ListComplexTypes(ctx, scope)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	complexNames := make([]string, 0, len(complexTypes))
	for _, complexType := range complexTypes {
		complexNames = append(complexNames, complexType.Name)
	}

	document := map[string]interface{}{
		"EntityTypes":  typeEntries,
		"ComplexTypes": complexNames,
	}
	if err := response.WriteEntity(w, http.StatusOK, document); err != nil {
		h.logger.Error("Error writing schema document", "error", err)
	}
}
