package property

import (
	"encoding/json"
	"fmt"
	"io"
)

// Request body field names. "_EntityType.Name" is the navigation target
// key binding a Property to its owning EntityType.
const (
	FieldName           = "Name"
	FieldEntityTypeName = "_EntityType.Name"
	FieldType           = "Type"
	FieldNullable       = "Nullable"
	FieldDefaultValue   = "DefaultValue"
	FieldCollectionKind = "CollectionKind"
	FieldIsKey          = "IsKey"
	FieldUniqueKey      = "UniqueKey"
	FieldIsDeclared     = "IsDeclared"
)

// Payload is the decoded JSON body of a Property create or update request.
// Field presence is significant (omitted and null are different things on
// the update path), so the raw map is kept. Numbers are preserved as
// json.Number so digit budgets can be checked against the request literal.
type Payload struct {
	fields map[string]interface{}
}

// ParsePayload decodes a request body into a Payload.
func ParsePayload(r io.Reader) (*Payload, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var fields map[string]interface{}
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Payload{fields: fields}, nil
}

// NewPayload wraps an already-decoded field map.
func NewPayload(fields map[string]interface{}) *Payload {
	return &Payload{fields: fields}
}

// Has reports whether the field was present in the request body.
func (p *Payload) Has(field string) bool {
	_, ok := p.fields[field]
	return ok
}

// Get returns the field's decoded value, nil when absent or null.
func (p *Payload) Get(field string) interface{} {
	return p.fields[field]
}

// Set overrides a field value; the navigation-property create path uses it
// to inject the implied _EntityType.Name.
func (p *Payload) Set(field string, value interface{}) {
	p.fields[field] = value
}

// Fields exposes the underlying map. The user data write path consumes the
// decoded document directly.
func (p *Payload) Fields() map[string]interface{} {
	return p.fields
}
