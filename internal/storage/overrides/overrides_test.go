package overrides

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "overrides.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutLookup(t *testing.T) {
	store := openStore(t)

	err := store.Put("sedus", "ai", "SE:AI-999", ocd.Override{Price: 459.0})
	require.NoError(t, err)

	ov, ok := store.Lookup("sedus", "ai", "SE:AI-999")
	require.True(t, ok)
	assert.Equal(t, 459.0, ov.Price)
	assert.Equal(t, "EUR", ov.Currency, "currency defaults on insert")
	assert.Equal(t, "B", ov.PriceLevel)

	_, ok = store.Lookup("sedus", "ai", "OTHER")
	assert.False(t, ok)
	_, ok = store.Lookup("other", "ai", "SE:AI-999")
	assert.False(t, ok, "scoped to manufacturer and series")
}

func TestPutReplaces(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put("m", "s", "A-1", ocd.Override{Price: 100}))
	require.NoError(t, store.Put("m", "s", "A-1", ocd.Override{Price: 200, Currency: "CHF"}))

	ov, ok := store.Lookup("m", "s", "A-1")
	require.True(t, ok)
	assert.Equal(t, 200.0, ov.Price)
	assert.Equal(t, "CHF", ov.Currency)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStore(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Close())

	_, ok := store.Lookup("m", "s", "a")
	assert.False(t, ok)
	assert.ErrorIs(t, store.Put("m", "s", "a", ocd.Override{}), ErrClosed)
}
