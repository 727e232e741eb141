package edm

import "regexp"

// Schema names are 1-128 characters from [A-Za-z0-9_-] and must not start
// with '-' or '_'.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidName reports whether value satisfies the schema name rule shared by
// Property.Name, EntityType.Name, ComplexType.Name and UniqueKey.
func ValidName(value string) bool {
	return namePattern.MatchString(value)
}

// CollectionKind values accepted for Property.CollectionKind.
const (
	CollectionKindNone = "None"
	CollectionKindList = "List"
)

// ValidCollectionKind reports whether value is a legal CollectionKind.
func ValidCollectionKind(value string) bool {
	return value == CollectionKindNone || value == CollectionKindList
}
