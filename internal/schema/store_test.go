package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestPropertyCompositeKeyUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	property := &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
		Name: "p1", EntityTypeName: "Price", Type: "Edm.String",
		Nullable: true, CollectionKind: "None",
	}
	require.NoError(t, store.CreateProperty(ctx, property))

	duplicate := &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
		Name: "p1", EntityTypeName: "Price", Type: "Edm.Int32",
		Nullable: true, CollectionKind: "None",
	}
	require.ErrorIs(t, store.CreateProperty(ctx, duplicate), ErrDuplicate)

	// The same (Name, EntityTypeName) in a sibling collection is a
	// different key.
	sibling := &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: "col2",
		Name: "p1", EntityTypeName: "Price", Type: "Edm.String",
		Nullable: true, CollectionKind: "None",
	}
	require.NoError(t, store.CreateProperty(ctx, sibling))
}

func TestScopeIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scopeA := Scope{Cell: "c1", Box: "b1", Collection: "col1"}
	scopeB := Scope{Cell: "c1", Box: "b2", Collection: "col1"}

	_, err := store.CreateEntityType(ctx, scopeA, "Price")
	require.NoError(t, err)

	_, err = store.GetEntityType(ctx, scopeA, "Price")
	require.NoError(t, err)

	_, err = store.GetEntityType(ctx, scopeB, "Price")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	for _, name := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.CreateProperty(ctx, &Property{
			Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
			Name: name, EntityTypeName: "Price", Type: "Edm.String",
			Nullable: true, CollectionKind: "None",
		}))
	}
	require.NoError(t, store.CreateProperty(ctx, &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
		Name: "other", EntityTypeName: "Sales", Type: "Address",
		Nullable: true, CollectionKind: "None",
	}))

	count, err := store.CountProperties(ctx, scope, "Price")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	count, err = store.CountPropertiesOfType(ctx, scope, "Address")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestComplexTypeNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	_, err := store.CreateComplexType(ctx, scope, "Address")
	require.NoError(t, err)

	names, err := store.ComplexTypeNames(ctx, scope)
	require.NoError(t, err)
	require.True(t, names["Address"])
	require.False(t, names["Missing"])
}

func TestDeletePropertyAndRecreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	property := &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
		Name: "p1", EntityTypeName: "Price", Type: "Edm.String",
		Nullable: true, CollectionKind: "None",
	}
	require.NoError(t, store.CreateProperty(ctx, property))
	require.NoError(t, store.DeleteProperty(ctx, property.ID))

	_, err := store.GetProperty(ctx, scope, "p1", "Price")
	require.ErrorIs(t, err, ErrNotFound)

	// The key is available again after deletion.
	require.NoError(t, store.CreateProperty(ctx, &Property{
		Cell: scope.Cell, Box: scope.Box, Collection: scope.Collection,
		Name: "p1", EntityTypeName: "Price", Type: "Edm.Int32",
		Nullable: true, CollectionKind: "None",
	}))
}
