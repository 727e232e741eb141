package userdata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/celldav/cellschema/internal/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestHasNonNullValue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := schema.Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	_, err := store.Create(ctx, scope, "Price", "", map[string]interface{}{
		"declared": "value",
		"dynamic":  123,
		"empty":    nil,
	})
	require.NoError(t, err)

	for field, want := range map[string]bool{
		"declared": true,
		"dynamic":  true,
		"empty":    false,
		"missing":  false,
	} {
		got, err := store.HasNonNullValue(ctx, scope, "Price", field)
		require.NoError(t, err)
		require.Equal(t, want, got, field)
	}
}

func TestHasRecordsAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := schema.Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	has, err := store.HasRecords(ctx, scope, "Price")
	require.NoError(t, err)
	require.False(t, has)

	record, err := store.Create(ctx, scope, "Price", "", map[string]interface{}{"a": 1})
	require.NoError(t, err)

	has, err = store.HasRecords(ctx, scope, "Price")
	require.NoError(t, err)
	require.True(t, has)

	// Rows of one EntityType are invisible to another.
	has, err = store.HasRecords(ctx, scope, "Sales")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, store.Delete(ctx, scope, "Price", record.ID))
	require.ErrorIs(t, store.Delete(ctx, scope, "Price", record.ID), ErrNotFound)
}

func TestCreateDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := schema.Scope{Cell: "c1", Box: "b1", Collection: "col1"}

	_, err := store.Create(ctx, scope, "Price", "r1", map[string]interface{}{"a": 1})
	require.NoError(t, err)

	_, err = store.Create(ctx, scope, "Price", "r1", map[string]interface{}{"b": 2})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestBindJoinsTransaction(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	schemas := schema.NewStore(db)
	require.NoError(t, schemas.AutoMigrate())
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())

	ctx := context.Background()
	scope := schema.Scope{Cell: "c1", Box: "b1", Collection: "col1"}
	abort := errors.New("abort")

	err = schemas.Transaction(ctx, func(tx *schema.Store) error {
		if _, cerr := store.Bind(tx.Handle()).Create(ctx, scope, "Price", "r1", map[string]interface{}{"a": 1}); cerr != nil {
			return cerr
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	// The rollback took the bound write with it.
	has, err := store.HasRecords(ctx, scope, "Price")
	require.NoError(t, err)
	require.False(t, has)
}
