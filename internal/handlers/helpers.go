package handlers

import (
	"fmt"
	"strings"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/property"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
)

// parseKeyPairs splits a parenthesized key predicate into its named parts.
// Both the positional form 'value' and the named form Name='a',_EntityType.Name='b'
// are accepted; the positional form is returned under the empty name.
func parseKeyPairs(key string) (map[string]string, error) {
	pairs := make(map[string]string)

	for _, part := range splitKeyParts(key) {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty key segment")
		}

		eq := strings.Index(part, "=")
		if eq < 0 {
			value, err := unquoteKeyValue(part)
			if err != nil {
				return nil, err
			}
			pairs[""] = value
			continue
		}

		name := strings.TrimSpace(part[:eq])
		value, err := unquoteKeyValue(strings.TrimSpace(part[eq+1:]))
		if err != nil {
			return nil, err
		}
		pairs[name] = value
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("empty key predicate")
	}
	return pairs, nil
}

// splitKeyParts splits on commas that sit outside single-quoted literals.
func splitKeyParts(key string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false

	for _, r := range key {
		switch {
		case r == '\'':
			inQuote = !inQuote
			current.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// unquoteKeyValue strips the surrounding single quotes of a key literal and
// folds the '' escape.
func unquoteKeyValue(literal string) (string, error) {
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		return "", fmt.Errorf("key literal %q is not quoted", literal)
	}
	return strings.ReplaceAll(literal[1:len(literal)-1], "''", "'"), nil
}

// propertyKey extracts the (Name, _EntityType.Name) pair from a key
// predicate. A positional single value is not enough for the composite key.
func propertyKey(key string) (name, entityTypeName string, err error) {
	pairs, err := parseKeyPairs(key)
	if err != nil {
		return "", "", err
	}
	name, nameOK := pairs["Name"]
	entityTypeName, etOK := pairs["_EntityType.Name"]
	if !nameOK || !etOK || len(pairs) != 2 {
		return "", "", fmt.Errorf("composite key requires Name and _EntityType.Name")
	}
	return name, entityTypeName, nil
}

// singleKey extracts the one value of a single-field key predicate,
// accepting both Name='x' and the positional 'x' form.
func singleKey(key string) (string, error) {
	pairs, err := parseKeyPairs(key)
	if err != nil {
		return "", err
	}
	if len(pairs) != 1 {
		return "", fmt.Errorf("expected a single key value")
	}
	for _, value := range pairs {
		return value, nil
	}
	return "", fmt.Errorf("empty key predicate")
}

// quoteKeyValue renders a key literal with the '' escape applied.
func quoteKeyValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// propertyURI renders the canonical URI of a Property entity.
func propertyURI(serviceRoot string, p *schema.Property) string {
	return fmt.Sprintf("%s/Property(Name=%s,_EntityType.Name=%s)",
		serviceRoot, quoteKeyValue(p.Name), quoteKeyValue(p.EntityTypeName))
}

// entityTypeURI renders the canonical URI of an EntityType entity.
func entityTypeURI(serviceRoot, name string) string {
	return fmt.Sprintf("%s/EntityType(%s)", serviceRoot, quoteKeyValue(name))
}

// complexTypeURI renders the canonical URI of a ComplexType entity.
func complexTypeURI(serviceRoot, name string) string {
	return fmt.Sprintf("%s/ComplexType(%s)", serviceRoot, quoteKeyValue(name))
}

// propertyBody assembles the wire representation of a Property. DefaultValue
// is echoed back in its original JSON form.
func propertyBody(serviceRoot string, p *schema.Property) (map[string]interface{}, error) {
	defaultValue, err := property.DecodeDefault(p)
	if err != nil {
		return nil, err
	}

	var uniqueKey interface{}
	if p.UniqueKey != nil {
		uniqueKey = *p.UniqueKey
	}

	return map[string]interface{}{
		"__metadata": response.Metadata{
			URI:  propertyURI(serviceRoot, p),
			ETag: etag.Generate(p.Updated),
			Type: TypeNameProperty,
		},
		"Name":             p.Name,
		"_EntityType.Name": p.EntityTypeName,
		"Type":             p.Type,
		"Nullable":         p.Nullable,
		"DefaultValue":     defaultValue,
		"CollectionKind":   p.CollectionKind,
		"IsKey":            p.IsKey,
		"UniqueKey":        uniqueKey,
		"IsDeclared":       p.IsDeclared,
		"__published":      edm.FormatDateLiteral(p.Published),
		"__updated":        edm.FormatDateLiteral(p.Updated),
	}, nil
}

// entityTypeBody assembles the wire representation of an EntityType.
func entityTypeBody(serviceRoot string, et *schema.EntityType) map[string]interface{} {
	return map[string]interface{}{
		"__metadata": response.Metadata{
			URI:  entityTypeURI(serviceRoot, et.Name),
			ETag: etag.Generate(et.Updated),
			Type: TypeNameEntityType,
		},
		"Name":        et.Name,
		"__published": edm.FormatDateLiteral(et.Published),
		"__updated":   edm.FormatDateLiteral(et.Updated),
	}
}

// complexTypeBody assembles the wire representation of a ComplexType.
func complexTypeBody(serviceRoot string, ct *schema.ComplexType) map[string]interface{} {
	return map[string]interface{}{
		"__metadata": response.Metadata{
			URI:  complexTypeURI(serviceRoot, ct.Name),
			ETag: etag.Generate(ct.Updated),
			Type: TypeNameComplexType,
		},
		"Name":        ct.Name,
		"__published": edm.FormatDateLiteral(ct.Published),
		"__updated":   edm.FormatDateLiteral(ct.Updated),
	}
}
