package edm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveType(t *testing.T) {
	complexTypes := map[string]bool{"Address": true}

	kind, ok := ResolveType("Edm.Int32", complexTypes)
	assert.True(t, ok)
	assert.Equal(t, KindInt32, kind)

	kind, ok = ResolveType("Address", complexTypes)
	assert.True(t, ok)
	assert.Equal(t, KindComplex, kind)

	// Type matching is case-sensitive.
	_, ok = ResolveType("Edm.Datetime", complexTypes)
	assert.False(t, ok)

	_, ok = ResolveType("Edm.Guid", complexTypes)
	assert.False(t, ok)
}

func TestValidName(t *testing.T) {
	valid := []string{"p1", "Price", "a", "a-b_c", "A0"}
	for _, name := range valid {
		assert.True(t, ValidName(name), name)
	}

	invalid := []string{"", "-p", "_p", "p.q", "日本語", "p q"}
	for _, name := range invalid {
		assert.False(t, ValidName(name), name)
	}

	long := make([]byte, 128)
	for i := range long {
		long[i] = 'a'
	}
	assert.True(t, ValidName(string(long)))
	assert.False(t, ValidName(string(long)+"a"))
}

func TestValidCollectionKind(t *testing.T) {
	assert.True(t, ValidCollectionKind(CollectionKindNone))
	assert.True(t, ValidCollectionKind(CollectionKindList))
	assert.False(t, ValidCollectionKind("none"))
	assert.False(t, ValidCollectionKind("Set"))
}

func TestParseDateLiteral(t *testing.T) {
	ms, ok := ParseDateLiteral("/Date(10000)/")
	assert.True(t, ok)
	assert.Equal(t, int64(10000), ms)

	ms, ok = ParseDateLiteral("/Date(-1)/")
	assert.True(t, ok)
	assert.Equal(t, int64(-1), ms)

	for _, malformed := range []string{"Date(10000)/", "/Date(10000)", "/Date(1.5)/", "10000", ""} {
		_, ok := ParseDateLiteral(malformed)
		assert.False(t, ok, malformed)
	}

	assert.Equal(t, "/Date(10000)/", FormatDateLiteral(10000))
}
