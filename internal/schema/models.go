package schema

// Scope identifies the cell/box/collection a schema operation is bound to.
// Schema names are unique only inside a single scope; identical names in
// sibling boxes or collections never satisfy a lookup.
type Scope struct {
	Cell       string
	Box        string
	Collection string
}

// EntityType is a user-defined record type declared in a collection's
// OData schema.
type EntityType struct {
	ID         string `gorm:"primaryKey;size:36"`
	Cell       string `gorm:"size:128;uniqueIndex:idx_entity_type_key"`
	Box        string `gorm:"size:128;uniqueIndex:idx_entity_type_key"`
	Collection string `gorm:"size:128;uniqueIndex:idx_entity_type_key"`
	Name       string `gorm:"size:128;uniqueIndex:idx_entity_type_key"`
	Published  int64
	Updated    int64
}

// ComplexType is a user-defined structured field type. Its name becomes a
// legal Property.Type inside the same collection.
type ComplexType struct {
	ID         string `gorm:"primaryKey;size:36"`
	Cell       string `gorm:"size:128;uniqueIndex:idx_complex_type_key"`
	Box        string `gorm:"size:128;uniqueIndex:idx_complex_type_key"`
	Collection string `gorm:"size:128;uniqueIndex:idx_complex_type_key"`
	Name       string `gorm:"size:128;uniqueIndex:idx_complex_type_key"`
	Published  int64
	Updated    int64
}

// Property is a declared field of an EntityType. The composite key is
// (Name, EntityTypeName) within a scope; the unique index backs the
// at-most-one-create guarantee under concurrent requests.
type Property struct {
	ID             string `gorm:"primaryKey;size:36"`
	Cell           string `gorm:"size:128;uniqueIndex:idx_property_key"`
	Box            string `gorm:"size:128;uniqueIndex:idx_property_key"`
	Collection     string `gorm:"size:128;uniqueIndex:idx_property_key"`
	Name           string `gorm:"size:128;uniqueIndex:idx_property_key"`
	EntityTypeName string `gorm:"size:128;uniqueIndex:idx_property_key"`
	Type           string `gorm:"size:128"`
	Nullable       bool
	// DefaultValue holds the JSON-encoded default literal, nil for null.
	DefaultValue   *string
	CollectionKind string `gorm:"size:8"`
	IsKey          bool
	UniqueKey      *string `gorm:"size:128"`
	// IsDeclared is false for properties registered lazily from observed
	// user data fields; those rows are immutable through the update path.
	IsDeclared bool
	Published  int64
	Updated    int64
}

// Models returns the gorm models joined into the schema store migration.
func Models() []interface{} {
	return []interface{}{&EntityType{}, &ComplexType{}, &Property{}}
}
