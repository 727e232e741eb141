package edm

// Kind identifies the resolved schema type of a declared property.
// The primitive set is closed; everything else is a reference to a
// ComplexType registered in the same collection.
type Kind int

const (
	KindString Kind = iota
	KindBoolean
	KindInt32
	KindDouble
	KindSingle
	KindDateTime
	KindComplex
)

// EDM primitive type names accepted for Property.Type. Matching is
// case-sensitive: "Edm.Datetime" is not a valid type.
const (
	TypeString   = "Edm.String"
	TypeBoolean  = "Edm.Boolean"
	TypeInt32    = "Edm.Int32"
	TypeDouble   = "Edm.Double"
	TypeSingle   = "Edm.Single"
	TypeDateTime = "Edm.DateTime"
)

var primitiveKinds = map[string]Kind{
	TypeString:   KindString,
	TypeBoolean:  KindBoolean,
	TypeInt32:    KindInt32,
	TypeDouble:   KindDouble,
	TypeSingle:   KindSingle,
	TypeDateTime: KindDateTime,
}

// PrimitiveKind resolves an EDM primitive type name to its Kind.
func PrimitiveKind(typeName string) (Kind, bool) {
	kind, ok := primitiveKinds[typeName]
	return kind, ok
}

// IsPrimitive reports whether typeName is one of the supported EDM
// primitive type names.
func IsPrimitive(typeName string) bool {
	_, ok := primitiveKinds[typeName]
	return ok
}

// ResolveType resolves a declared Type value against the primitive set and
// the ComplexType names known in the collection.
func ResolveType(typeName string, complexTypes map[string]bool) (Kind, bool) {
	if kind, ok := primitiveKinds[typeName]; ok {
		return kind, true
	}
	if complexTypes[typeName] {
		return KindComplex, true
	}
	return 0, false
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return TypeString
	case KindBoolean:
		return TypeBoolean
	case KindInt32:
		return TypeInt32
	case KindDouble:
		return TypeDouble
	case KindSingle:
		return TypeSingle
	case KindDateTime:
		return TypeDateTime
	case KindComplex:
		return "ComplexType"
	default:
		return "Unknown"
	}
}
