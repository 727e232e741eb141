// Package userdata stores the records conforming to an EntityType's
// schema. The schema engine consumes it read-only: existence and
// non-null-value checks gate property deletion and Nullable=false creation.
package userdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/celldav/cellschema/internal/schema"
)

// Sentinel errors returned by the store.
var (
	ErrNotFound  = errors.New("userdata: not found")
	ErrDuplicate = errors.New("userdata: duplicate key")
)

// Record is one stored row of an EntityType. The document holds the raw
// JSON object so that dynamic (undeclared) fields survive verbatim.
type Record struct {
	ID             string `gorm:"primaryKey;size:36"`
	Cell           string `gorm:"size:128;index:idx_record_scope"`
	Box            string `gorm:"size:128;index:idx_record_scope"`
	Collection     string `gorm:"size:128;index:idx_record_scope"`
	EntityTypeName string `gorm:"size:128;index:idx_record_scope"`
	Document       string
	Published      int64
	Updated        int64
}

// Store persists user data records per scope and EntityType.
type Store struct {
	db *gorm.DB
}

// NewStore creates a user data store over the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the backing table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Record{})
}

// Bind returns a store view over the given handle. Mutation flows bind to
// a schema store transaction so record writes and referential checks
// commit or roll back together.
func (s *Store) Bind(handle *gorm.DB) *Store {
	return &Store{db: handle}
}

func (s *Store) scoped(ctx context.Context, scope schema.Scope, entityTypeName string) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("cell = ? AND box = ? AND collection = ? AND entity_type_name = ?",
			scope.Cell, scope.Box, scope.Collection, entityTypeName)
}

// Create stores a document for the given EntityType. When id is empty a
// new one is generated.
func (s *Store) Create(ctx context.Context, scope schema.Scope, entityTypeName, id string, document map[string]interface{}) (*Record, error) {
	if id == "" {
		id = uuid.NewString()
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	record := &Record{
		ID:             id,
		Cell:           scope.Cell,
		Box:            scope.Box,
		Collection:     scope.Collection,
		EntityTypeName: entityTypeName,
		Document:       string(encoded),
		Published:      now,
		Updated:        now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return record, nil
}

// Get fetches one record by ID.
func (s *Store) Get(ctx context.Context, scope schema.Scope, entityTypeName, id string) (*Record, error) {
	var record Record
	err := s.scoped(ctx, scope, entityTypeName).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes one record by ID.
func (s *Store) Delete(ctx context.Context, scope schema.Scope, entityTypeName, id string) error {
	result := s.scoped(ctx, scope, entityTypeName).Where("id = ?", id).Delete(&Record{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasRecords reports whether the EntityType has at least one stored row.
func (s *Store) HasRecords(ctx context.Context, scope schema.Scope, entityTypeName string) (bool, error) {
	var count int64
	err := s.scoped(ctx, scope, entityTypeName).Model(&Record{}).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasNonNullValue reports whether any stored row carries a non-null value
// under the given field name.
func (s *Store) HasNonNullValue(ctx context.Context, scope schema.Scope, entityTypeName, field string) (bool, error) {
	documents, err := s.documents(ctx, scope, entityTypeName)
	if err != nil {
		return false, err
	}
	for _, document := range documents {
		if value, ok := document[field]; ok && value != nil {
			return true, nil
		}
	}
	return false, nil
}

// DecodeDocument decodes a record's document with number literals
// preserved as json.Number.
func (r *Record) DecodeDocument() (map[string]interface{}, error) {
	return decodeDocument(r.Document)
}

func (s *Store) documents(ctx context.Context, scope schema.Scope, entityTypeName string) ([]map[string]interface{}, error) {
	var records []Record
	if err := s.scoped(ctx, scope, entityTypeName).Find(&records).Error; err != nil {
		return nil, err
	}
	documents := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		document, err := decodeDocument(record.Document)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	return documents, nil
}

func decodeDocument(raw string) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	var document map[string]interface{}
	if err := decoder.Decode(&document); err != nil {
		return nil, err
	}
	return document, nil
}
