// Package property implements the mutation engine for declared schema
// properties: create, update and delete with type-domain validation,
// immutability rules and referential checks against live user data.
package property

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"github.com/celldav/cellschema/internal/edm"
	"github.com/celldav/cellschema/internal/etag"
	"github.com/celldav/cellschema/internal/observability"
	"github.com/celldav/cellschema/internal/response"
	"github.com/celldav/cellschema/internal/schema"
	"github.com/celldav/cellschema/internal/userdata"
)

// DefaultMaxPropertiesPerEntityType caps the declared property count of a
// single EntityType unless overridden through Config.
const DefaultMaxPropertiesPerEntityType = 400

// Config controls engine limits. The ceiling is injected here so tests can
// substitute a different configuration per engine instead of mutating
// process-wide state.
type Config struct {
	MaxPropertiesPerEntityType int
	DateTimeBounds             edm.DateTimeBounds
	Observability              *observability.Config
}

// Engine orchestrates Property state transitions against the schema store,
// consulting the user data store for referential checks.
type Engine struct {
	schemas       *schema.Store
	records       *userdata.Store
	maxProperties int
	bounds        edm.DateTimeBounds
	obs           *observability.Config
	logger        *slog.Logger
}

// NewEngine creates a property mutation engine.
func NewEngine(schemas *schema.Store, records *userdata.Store, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxPropertiesPerEntityType <= 0 {
		cfg.MaxPropertiesPerEntityType = DefaultMaxPropertiesPerEntityType
	}
	if cfg.DateTimeBounds == (edm.DateTimeBounds{}) {
		cfg.DateTimeBounds = edm.DefaultDateTimeBounds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		schemas:       schemas,
		records:       records,
		maxProperties: cfg.MaxPropertiesPerEntityType,
		bounds:        cfg.DateTimeBounds,
		obs:           cfg.Observability,
		logger:        logger,
	}
}

// DateTimeBounds returns the configured DateTime value domain.
func (e *Engine) DateTimeBounds() edm.DateTimeBounds {
	return e.bounds
}

// validated holds a payload after structural and type-domain validation,
// with omitted optional fields resolved to their documented defaults.
type validated struct {
	name           string
	entityTypeName string
	typeName       string
	kind           edm.Kind
	nullable       bool
	defaultValue   interface{}
	collectionKind string
	isKey          bool
	uniqueKey      *string
}

// validate performs the structural and type-domain checks of a Property
// payload. It is independent of existing property state; callers layer the
// referential and immutability checks on top.
func (e *Engine) validate(payload *Payload, complexTypes map[string]bool) (*validated, *response.StatusError) {
	result := &validated{
		nullable:       true,
		collectionKind: edm.CollectionKindNone,
	}

	if !payload.Has(FieldName) {
		return nil, response.RequiredFieldMissing(FieldName)
	}
	name, ok := payload.Get(FieldName).(string)
	if !ok || !edm.ValidName(name) {
		return nil, response.FieldFormat(FieldName)
	}
	result.name = name

	if !payload.Has(FieldEntityTypeName) {
		return nil, response.RequiredFieldMissing(FieldEntityTypeName)
	}
	entityTypeName, ok := payload.Get(FieldEntityTypeName).(string)
	if !ok || !edm.ValidName(entityTypeName) {
		return nil, response.FieldFormat(FieldEntityTypeName)
	}
	result.entityTypeName = entityTypeName

	if !payload.Has(FieldType) {
		return nil, response.RequiredFieldMissing(FieldType)
	}
	typeName, ok := payload.Get(FieldType).(string)
	if !ok {
		return nil, response.FieldFormat(FieldType)
	}
	kind, ok := edm.ResolveType(typeName, complexTypes)
	if !ok {
		return nil, response.FieldFormat(FieldType)
	}
	result.typeName = typeName
	result.kind = kind

	if payload.Has(FieldNullable) {
		nullable, ok := payload.Get(FieldNullable).(bool)
		if !ok {
			return nil, response.FieldFormat(FieldNullable)
		}
		result.nullable = nullable
	}

	if payload.Has(FieldDefaultValue) {
		value := payload.Get(FieldDefaultValue)
		if err := edm.ValidateDefaultValue(kind, value, e.bounds); err != nil {
			return nil, response.FieldFormat(FieldDefaultValue)
		}
		result.defaultValue = value
	}

	if payload.Has(FieldCollectionKind) {
		collectionKind, ok := payload.Get(FieldCollectionKind).(string)
		if !ok || !edm.ValidCollectionKind(collectionKind) {
			return nil, response.FieldFormat(FieldCollectionKind)
		}
		result.collectionKind = collectionKind
	}

	if payload.Has(FieldIsKey) {
		isKey, ok := payload.Get(FieldIsKey).(bool)
		if !ok {
			return nil, response.FieldFormat(FieldIsKey)
		}
		result.isKey = isKey
	}

	if payload.Has(FieldUniqueKey) {
		if value := payload.Get(FieldUniqueKey); value != nil {
			uniqueKey, ok := value.(string)
			if !ok || !edm.ValidName(uniqueKey) {
				return nil, response.FieldFormat(FieldUniqueKey)
			}
			result.uniqueKey = &uniqueKey
		}
	}

	return result, nil
}

// Create declares a new Property. The whole flow runs in one transaction
// so the uniqueness and budget checks stay consistent under concurrent
// creates; the composite unique index backs the race-loser 409.
func (e *Engine) Create(ctx context.Context, scope schema.Scope, payload *Payload) (*schema.Property, error) {
	var created *schema.Property

	err := e.schemas.Transaction(ctx, func(tx *schema.Store) error {
		complexTypes, err := tx.ComplexTypeNames(ctx, scope)
		if err != nil {
			return err
		}

		v, serr := e.validate(payload, complexTypes)
		if serr != nil {
			return serr
		}

		if _, err := tx.GetEntityType(ctx, scope, v.entityTypeName); err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				return response.NTKPNotFound(v.entityTypeName)
			}
			return err
		}

		count, err := tx.CountProperties(ctx, scope, v.entityTypeName)
		if err != nil {
			return err
		}
		if count >= int64(e.maxProperties) {
			return response.PropertyCountExceeded(e.maxProperties)
		}

		if _, err := tx.GetProperty(ctx, scope, v.name, v.entityTypeName); err == nil {
			return response.AlreadyExists()
		} else if !errors.Is(err, schema.ErrNotFound) {
			return err
		}

		if !v.nullable {
			// The record check joins the schema transaction so a
			// concurrent record write cannot slip between check and commit.
			has, err := e.records.Bind(tx.Handle()).HasRecords(ctx, scope, v.entityTypeName)
			if err != nil {
				return err
			}
			if has {
				// Existing rows would violate the new constraint.
				return response.FieldFormat(FieldNullable)
			}
		}

		encoded, err := EncodeDefault(v.defaultValue)
		if err != nil {
			return err
		}

		created = &schema.Property{
			Cell:           scope.Cell,
			Box:            scope.Box,
			Collection:     scope.Collection,
			Name:           v.name,
			EntityTypeName: v.entityTypeName,
			Type:           v.typeName,
			Nullable:       v.nullable,
			DefaultValue:   encoded,
			CollectionKind: v.collectionKind,
			IsKey:          v.isKey,
			UniqueKey:      v.uniqueKey,
			IsDeclared:     true,
		}
		if err := tx.CreateProperty(ctx, created); err != nil {
			if errors.Is(err, schema.ErrDuplicate) {
				return response.AlreadyExists()
			}
			return err
		}

		e.logger.Debug("Declared property",
			"cell", scope.Cell, "collection", scope.Collection,
			"entityType", v.entityTypeName, "property", v.name, "type", v.typeName)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get resolves one Property by its composite key.
func (e *Engine) Get(ctx context.Context, scope schema.Scope, name, entityTypeName string) (*schema.Property, error) {
	property, err := e.schemas.GetProperty(ctx, scope, name, entityTypeName)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return nil, response.NotFound()
		}
		return nil, err
	}
	return property, nil
}

// List returns every Property in scope, declared and dynamic alike.
func (e *Engine) List(ctx context.Context, scope schema.Scope) ([]schema.Property, error) {
	return e.schemas.ListProperties(ctx, scope)
}

// ListByEntityType returns the Properties of one EntityType; the owning
// type must exist.
func (e *Engine) ListByEntityType(ctx context.Context, scope schema.Scope, entityTypeName string) ([]schema.Property, error) {
	if _, err := e.schemas.GetEntityType(ctx, scope, entityTypeName); err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return nil, response.NotFound()
		}
		return nil, err
	}
	return e.schemas.ListPropertiesByEntityType(ctx, scope, entityTypeName)
}

// typeChangeAllowed reports whether a declared Type may transition from
// oldType to newType. The only sanctioned widening is Int32 to Double.
func typeChangeAllowed(oldType, newType string) bool {
	if oldType == newType {
		return true
	}
	return oldType == edm.TypeInt32 && newType == edm.TypeDouble
}

// Update replaces a declared Property. Only Name and the Int32-to-Double
// Type widening may actually change; every other field must be supplied
// equal to its stored value or omitted while the stored value equals the
// field's neutral default.
func (e *Engine) Update(ctx context.Context, scope schema.Scope, name, entityTypeName string, payload *Payload, ifMatch string) error {
	return e.schemas.Transaction(ctx, func(tx *schema.Store) error {
		current, err := tx.GetProperty(ctx, scope, name, entityTypeName)
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				return response.NotFound()
			}
			return err
		}

		if !etag.Match(ifMatch, etag.Generate(current.Updated)) {
			return response.PreconditionFailed()
		}

		complexTypes, err := tx.ComplexTypeNames(ctx, scope)
		if err != nil {
			return err
		}
		v, serr := e.validate(payload, complexTypes)
		if serr != nil {
			return serr
		}

		if !current.IsDeclared {
			// Dynamic properties cannot be promoted through this endpoint.
			return response.OperationNotSupported(FieldIsDeclared, "false", "true")
		}

		if v.entityTypeName != current.EntityTypeName {
			return response.OperationNotSupported(FieldEntityTypeName, current.EntityTypeName, v.entityTypeName)
		}

		if !typeChangeAllowed(current.Type, v.typeName) {
			return response.OperationNotSupported(FieldType, current.Type, v.typeName)
		}

		if serr := checkImmutableFields(payload, current); serr != nil {
			return serr
		}

		if v.name != current.Name {
			if _, err := tx.GetProperty(ctx, scope, v.name, current.EntityTypeName); err == nil {
				return response.AlreadyExists()
			} else if !errors.Is(err, schema.ErrNotFound) {
				return err
			}
		}

		// Renames move only the schema pointer; stored rows keep their
		// old-named values and are never rewritten.
		current.Name = v.name
		current.Type = v.typeName
		return tx.SaveProperty(ctx, current)
	})
}

// Delete removes a Property definition unless live data still holds a
// non-null value under its name.
func (e *Engine) Delete(ctx context.Context, scope schema.Scope, name, entityTypeName string, ifMatch string) error {
	return e.schemas.Transaction(ctx, func(tx *schema.Store) error {
		current, err := tx.GetProperty(ctx, scope, name, entityTypeName)
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				return response.NotFound()
			}
			return err
		}

		if !etag.Match(ifMatch, etag.Generate(current.Updated)) {
			return response.PreconditionFailed()
		}

		referenced, err := e.records.Bind(tx.Handle()).HasNonNullValue(ctx, scope, current.EntityTypeName, current.Name)
		if err != nil {
			return err
		}
		if referenced {
			return response.Conflict()
		}

		return tx.DeleteProperty(ctx, current.ID)
	})
}

// StoreRecord persists a user data record together with the dynamic
// Property rows its undeclared fields require. Both writes share one
// transaction: a rejected record leaves no half-registered schema rows.
func (e *Engine) StoreRecord(ctx context.Context, scope schema.Scope, entityTypeName, id string, document map[string]interface{}) (*userdata.Record, error) {
	var stored *userdata.Record
	var registered int64
	err := e.schemas.Transaction(ctx, func(tx *schema.Store) error {
		var terr error
		registered, terr = e.registerDynamic(ctx, tx, scope, entityTypeName, document)
		if terr != nil {
			return terr
		}
		record, terr := e.records.Bind(tx.Handle()).Create(ctx, scope, entityTypeName, id, document)
		if terr != nil {
			if errors.Is(terr, userdata.ErrDuplicate) {
				return response.AlreadyExists()
			}
			return terr
		}
		stored = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	if registered > 0 {
		e.obs.Metrics().RecordDynamicRegistration(ctx, entityTypeName, registered)
	}
	return stored, nil
}

// registerDynamic creates the missing dynamic rows inside tx and reports
// how many it added.
func (e *Engine) registerDynamic(ctx context.Context, tx *schema.Store, scope schema.Scope, entityTypeName string, document map[string]interface{}) (int64, error) {
	fields := make([]string, 0, len(document))
	for field := range document {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	existing, err := tx.ListPropertiesByEntityType(ctx, scope, entityTypeName)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, property := range existing {
		known[property.Name] = true
	}

	var registered int64
	count := int64(len(existing))
	for _, field := range fields {
		if known[field] {
			continue
		}
		if !edm.ValidName(field) {
			return 0, response.FieldFormat(field)
		}
		if count >= int64(e.maxProperties) {
			return 0, response.PropertyCountExceeded(e.maxProperties)
		}

		dynamic := &schema.Property{
			Cell:           scope.Cell,
			Box:            scope.Box,
			Collection:     scope.Collection,
			Name:           field,
			EntityTypeName: entityTypeName,
			Type:           inferTypeName(document[field]),
			Nullable:       true,
			CollectionKind: edm.CollectionKindNone,
			IsDeclared:     false,
		}
		if err := tx.CreateProperty(ctx, dynamic); err != nil {
			if errors.Is(err, schema.ErrDuplicate) {
				continue
			}
			return 0, err
		}
		registered++
		count++
	}
	return registered, nil
}

// inferTypeName maps an observed JSON value onto the EDM type recorded for
// a dynamic property.
func inferTypeName(value interface{}) string {
	switch value.(type) {
	case bool:
		return edm.TypeBoolean
	case json.Number:
		return edm.TypeDouble
	default:
		return edm.TypeString
	}
}

// EncodeDefault serializes a DefaultValue for storage; nil stays nil.
func EncodeDefault(value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	text := string(encoded)
	return &text, nil
}

// DecodeDefault deserializes a stored DefaultValue, preserving number
// literals as json.Number.
func DecodeDefault(property *schema.Property) (interface{}, error) {
	if property.DefaultValue == nil {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(*property.DefaultValue)))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// checkImmutableFields enforces the update rule for the five fields that
// can never change: supplied values must equal the stored ones, and
// omission is legal only while the stored value equals the field's
// neutral default.
func checkImmutableFields(payload *Payload, current *schema.Property) *response.StatusError {
	storedDefault, err := DecodeDefault(current)
	if err != nil {
		storedDefault = nil
	}

	var storedUniqueKey interface{}
	if current.UniqueKey != nil {
		storedUniqueKey = *current.UniqueKey
	}

	checks := []struct {
		field   string
		stored  interface{}
		neutral interface{}
	}{
		{FieldNullable, current.Nullable, true},
		{FieldDefaultValue, storedDefault, nil},
		{FieldCollectionKind, current.CollectionKind, edm.CollectionKindNone},
		{FieldIsKey, current.IsKey, false},
		{FieldUniqueKey, storedUniqueKey, nil},
	}

	for _, check := range checks {
		if payload.Has(check.field) {
			supplied := payload.Get(check.field)
			if !valuesEqual(check.stored, supplied) {
				return response.OperationNotSupported(check.field, formatValue(check.stored), formatValue(supplied))
			}
			continue
		}
		if !valuesEqual(check.stored, check.neutral) {
			// Omission is an implicit change attempt back to the default.
			return response.OperationNotSupported(check.field, formatValue(check.stored), formatValue(check.neutral))
		}
	}

	return nil
}

// valuesEqual compares payload-level values: nulls match only nulls and
// numbers compare numerically regardless of literal form.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, aok := numericValue(a); aok {
		nb, bok := numericValue(b)
		return bok && na == nb
	}
	return a == b
}

func numericValue(value interface{}) (float64, bool) {
	if number, ok := value.(json.Number); ok {
		parsed, err := number.Float64()
		return parsed, err == nil
	}
	return 0, false
}

// formatValue renders a value for OPERATION_NOT_SUPPORTED messages.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "?"
		}
		return string(encoded)
	}
}
