package schema

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors returned by the store. Callers map these onto the
// service's HTTP error taxonomy.
var (
	ErrNotFound  = errors.New("schema: not found")
	ErrDuplicate = errors.New("schema: duplicate key")
)

// Store persists EntityType, ComplexType and Property definitions per
// cell/box/collection scope.
type Store struct {
	db *gorm.DB
}

// NewStore creates a schema store over the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the backing tables.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(Models()...)
}

// Transaction runs fn against a transactional store. Mutation flows use it
// so that referential checks and writes observe one consistent snapshot.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Handle exposes the store's database handle. Sibling stores bind to it
// to join the store's transaction.
func (s *Store) Handle() *gorm.DB {
	return s.db
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func (s *Store) scoped(ctx context.Context, scope Scope) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("cell = ? AND box = ? AND collection = ?", scope.Cell, scope.Box, scope.Collection)
}

// CreateEntityType declares a new EntityType in scope.
func (s *Store) CreateEntityType(ctx context.Context, scope Scope, name string) (*EntityType, error) {
	now := nowMillis()
	entityType := &EntityType{
		ID:         uuid.NewString(),
		Cell:       scope.Cell,
		Box:        scope.Box,
		Collection: scope.Collection,
		Name:       name,
		Published:  now,
		Updated:    now,
	}
	if err := s.db.WithContext(ctx).Create(entityType).Error; err != nil {
		return nil, translateError(err)
	}
	return entityType, nil
}

// GetEntityType resolves an EntityType by name within scope.
func (s *Store) GetEntityType(ctx context.Context, scope Scope, name string) (*EntityType, error) {
	var entityType EntityType
	err := s.scoped(ctx, scope).Where("name = ?", name).First(&entityType).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &entityType, nil
}

// ListEntityTypes returns all EntityTypes in scope ordered by name.
func (s *Store) ListEntityTypes(ctx context.Context, scope Scope) ([]EntityType, error) {
	var entityTypes []EntityType
	err := s.scoped(ctx, scope).Model(&EntityType{}).Order("name").Find(&entityTypes).Error
	if err != nil {
		return nil, translateError(err)
	}
	return entityTypes, nil
}

// DeleteEntityType removes an EntityType row.
func (s *Store) DeleteEntityType(ctx context.Context, scope Scope, name string) error {
	result := s.scoped(ctx, scope).Where("name = ?", name).Delete(&EntityType{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateComplexType declares a new ComplexType in scope.
func (s *Store) CreateComplexType(ctx context.Context, scope Scope, name string) (*ComplexType, error) {
	now := nowMillis()
	complexType := &ComplexType{
		ID:         uuid.NewString(),
		Cell:       scope.Cell,
		Box:        scope.Box,
		Collection: scope.Collection,
		Name:       name,
		Published:  now,
		Updated:    now,
	}
	if err := s.db.WithContext(ctx).Create(complexType).Error; err != nil {
		return nil, translateError(err)
	}
	return complexType, nil
}

// GetComplexType resolves a ComplexType by name within scope.
func (s *Store) GetComplexType(ctx context.Context, scope Scope, name string) (*ComplexType, error) {
	var complexType ComplexType
	err := s.scoped(ctx, scope).Where("name = ?", name).First(&complexType).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &complexType, nil
}

// ListComplexTypes returns all ComplexTypes in scope ordered by name.
func (s *Store) ListComplexTypes(ctx context.Context, scope Scope) ([]ComplexType, error) {
	var complexTypes []ComplexType
	err := s.scoped(ctx, scope).Model(&ComplexType{}).Order("name").Find(&complexTypes).Error
	if err != nil {
		return nil, translateError(err)
	}
	return complexTypes, nil
}

// ComplexTypeNames returns the set of ComplexType names registered in
// scope, for Property.Type resolution.
func (s *Store) ComplexTypeNames(ctx context.Context, scope Scope) (map[string]bool, error) {
	var names []string
	err := s.scoped(ctx, scope).Model(&ComplexType{}).Pluck("name", &names).Error
	if err != nil {
		return nil, translateError(err)
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set, nil
}

// DeleteComplexType removes a ComplexType row.
func (s *Store) DeleteComplexType(ctx context.Context, scope Scope, name string) error {
	result := s.scoped(ctx, scope).Where("name = ?", name).Delete(&ComplexType{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProperty persists a declared Property. The composite unique index
// rejects a concurrent create racing for the same (Name, EntityTypeName).
func (s *Store) CreateProperty(ctx context.Context, property *Property) error {
	if property.ID == "" {
		property.ID = uuid.NewString()
	}
	now := nowMillis()
	if property.Published == 0 {
		property.Published = now
	}
	property.Updated = now
	return translateError(s.db.WithContext(ctx).Create(property).Error)
}

// GetProperty resolves a Property by its composite key within scope.
func (s *Store) GetProperty(ctx context.Context, scope Scope, name, entityTypeName string) (*Property, error) {
	var property Property
	err := s.scoped(ctx, scope).
		Where("name = ? AND entity_type_name = ?", name, entityTypeName).
		First(&property).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &property, nil
}

// ListProperties returns all declared Properties in scope ordered by
// (EntityTypeName, Name).
func (s *Store) ListProperties(ctx context.Context, scope Scope) ([]Property, error) {
	var properties []Property
	err := s.scoped(ctx, scope).Model(&Property{}).
		Order("entity_type_name, name").Find(&properties).Error
	if err != nil {
		return nil, translateError(err)
	}
	return properties, nil
}

// ListPropertiesByEntityType returns the declared Properties of one
// EntityType ordered by name.
func (s *Store) ListPropertiesByEntityType(ctx context.Context, scope Scope, entityTypeName string) ([]Property, error) {
	var properties []Property
	err := s.scoped(ctx, scope).Model(&Property{}).
		Where("entity_type_name = ?", entityTypeName).
		Order("name").Find(&properties).Error
	if err != nil {
		return nil, translateError(err)
	}
	return properties, nil
}

// CountProperties counts the declared Properties of an EntityType, for the
// per-type property budget.
func (s *Store) CountProperties(ctx context.Context, scope Scope, entityTypeName string) (int64, error) {
	var count int64
	err := s.scoped(ctx, scope).Model(&Property{}).
		Where("entity_type_name = ?", entityTypeName).Count(&count).Error
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// CountPropertiesOfType counts Properties whose declared Type references
// the given type name, guarding ComplexType deletion.
func (s *Store) CountPropertiesOfType(ctx context.Context, scope Scope, typeName string) (int64, error) {
	var count int64
	err := s.scoped(ctx, scope).Model(&Property{}).
		Where("type = ?", typeName).Count(&count).Error
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// SaveProperty persists mutations of an existing Property row and bumps
// its update timestamp.
func (s *Store) SaveProperty(ctx context.Context, property *Property) error {
	property.Updated = nowMillis()
	return translateError(s.db.WithContext(ctx).Save(property).Error)
}

// DeleteProperty removes a Property row by ID.
func (s *Store) DeleteProperty(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Property{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
