package cellschema

import (
	"net/http"
	"strings"

	"github.com/celldav/cellschema/internal/handlers"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/version"
)

// ServeHTTP implements http.Handler. The URL layout is
//
//	/{cell}/{box}/{collection}                         service document
//	/{cell}/{box}/{collection}/$metadata/Property...   schema resources
//	/{cell}/{box}/{collection}/{EntityType}...         user data records
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	declared := r.Header.Get(response.HeaderDataServiceVersion)
	maxAccepted := r.Header.Get(response.HeaderMaxDataServiceVersion)
	negotiated, err := version.Negotiate(declared, maxAccepted)
	if err != nil {
		header, value := response.HeaderDataServiceVersion, declared
		if _, declErr := version.Negotiate(declared, ""); declErr == nil {
			header, value = response.HeaderMaxDataServiceVersion, maxAccepted
		}
		if werr := response.WriteStatusError(w, response.UnsupportedVersion(header, value)); werr != nil {
			s.logger.Error("Failed to write version error", "error", werr)
		}
		return
	}
	w.Header()[response.HeaderDataServiceVersion] = []string{negotiated.String()}

	segments := splitPath(r.URL.Path)
	if len(segments) < 3 {
		handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
		return
	}

	scope := schema.Scope{Cell: segments[0], Box: segments[1], Collection: segments[2]}
	dataRoot := "/" + segments[0] + "/" + segments[1] + "/" + segments[2]
	schemaRoot := dataRoot + "/$metadata"
	rest := segments[3:]

	switch {
	case len(rest) == 0:
		s.handleServiceDocument(w, r)
	case rest[0] == "$metadata":
		s.routeSchema(w, r, scope, schemaRoot, rest[1:])
	default:
		s.routeRecords(w, r, scope, dataRoot, rest)
	}
}

// routeSchema dispatches the segments below $metadata.
func (s *Service) routeSchema(w http.ResponseWriter, r *http.Request, scope schema.Scope, schemaRoot string, rest []string) {
	if len(rest) == 0 {
		s.handler.HandleSchemaDocument(w, r, scope)
		return
	}

	name, key, hasKey := splitSegment(rest[0])
	switch name {
	case "Property":
		switch {
		case !hasKey && len(rest) == 1:
			s.handler.HandlePropertyCollection(w, r, scope, schemaRoot)
		case hasKey && len(rest) == 1:
			s.handler.HandlePropertyEntity(w, r, scope, schemaRoot, key)
		case hasKey && len(rest) == 3 && rest[1] == "$links" && rest[2] == "_EntityType":
			s.handler.HandlePropertyLinks(w, r, scope, schemaRoot, key)
		default:
			handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
		}
	case "EntityType":
		switch {
		case !hasKey && len(rest) == 1:
			s.handler.HandleEntityTypeCollection(w, r, scope, schemaRoot)
		case hasKey && len(rest) == 1:
			s.handler.HandleEntityTypeEntity(w, r, scope, schemaRoot, key)
		case hasKey && len(rest) == 2 && rest[1] == "_Property":
			s.handler.HandleEntityTypeProperties(w, r, scope, schemaRoot, key)
		case hasKey && len(rest) == 3 && rest[1] == "$links" && rest[2] == "_Property":
			s.handler.HandleEntityTypeLinks(w, r, scope, schemaRoot, key)
		default:
			handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
		}
	case "ComplexType":
		switch {
		case !hasKey && len(rest) == 1:
			s.handler.HandleComplexTypeCollection(w, r, scope, schemaRoot)
		case hasKey && len(rest) == 1:
			s.handler.HandleComplexTypeEntity(w, r, scope, schemaRoot, key)
		default:
			handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
		}
	default:
		handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
	}
}

// routeRecords dispatches user data paths: /{EntityType} and
// /{EntityType}('id').
func (s *Service) routeRecords(w http.ResponseWriter, r *http.Request, scope schema.Scope, dataRoot string, rest []string) {
	name, key, hasKey := splitSegment(rest[0])
	if len(rest) != 1 {
		handlers.WriteError(w, http.StatusNotFound, response.CodeNotFound, "The requested resource does not exist")
		return
	}
	if hasKey {
		s.handler.HandleRecordEntity(w, r, scope, dataRoot, name, key)
		return
	}
	s.handler.HandleRecordCollection(w, r, scope, dataRoot, name)
}

// handleServiceDocument lists the schema entity sets.
func (s *Service) handleServiceDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		handlers.WriteError(w, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "Method not allowed")
		return
	}
	document := map[string]interface{}{
		"EntitySets": []string{"Property", "EntityType", "ComplexType"},
	}
	if err := response.WriteEntity(w, http.StatusOK, document); err != nil {
		s.logger.Error("Error writing service document", "error", err)
	}
}

// splitPath splits a URL path into its non-empty segments.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// splitSegment separates an entity set segment from its parenthesized key
// predicate: "Property(Name='a',_EntityType.Name='b')" yields the set name
// and the inner predicate.
func splitSegment(segment string) (name, key string, hasKey bool) {
	open := strings.IndexByte(segment, '(')
	if open < 0 || !strings.HasSuffix(segment, ")") {
		return segment, "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

// ListenAndServe starts the schema service on the specified address.
func (s *Service) ListenAndServe(addr string) error {
	s.logger.Info("Starting schema service", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}
