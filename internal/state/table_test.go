package state

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
)

func newTestTable(t *testing.T, now time.Time) *Table {
	t.Helper()
	return NewTable(
		filepath.Join(t.TempDir(), "state.json"),
		WithClock(func() time.Time { return now }),
		WithStoreOptions(
			jsonstore.WithCache(jsonstore.NewCache(4)),
			jsonstore.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
	)
}

func TestTable_UpdatePersistsChanges(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, t0)

	var changes []Change
	err := tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:1", true, Extras{InventoryQty: SetTo(50), Title: SetTo("Mocha")})
		tx.Apply("shop:2", false, Extras{})
		changes = tx.Changes()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "shop:1", changes[0].Key)
	assert.Equal(t, "shop:2", changes[1].Key)

	ps, ok, err := tbl.Get("shop:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ps.Available)
	assert.Equal(t, t0, ps.LastChecked)
	assert.Equal(t, ptr(50), ps.InventoryQty)
}

func TestTable_UnchangedObservationStillWrites(t *testing.T) {
	t.Parallel()

	now := t0
	tbl := NewTable(
		filepath.Join(t.TempDir(), "state.json"),
		WithClock(func() time.Time { return now }),
		WithStoreOptions(jsonstore.WithCache(jsonstore.NewCache(4))),
	)

	require.NoError(t, tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:1", true, Extras{})
		return nil
	}))

	now = t1
	var c *Change
	require.NoError(t, tbl.Update(func(tx *Tx) error {
		c = tx.Apply("shop:1", true, Extras{})
		return nil
	}))
	assert.Nil(t, c)

	ps, _, err := tbl.Get("shop:1")
	require.NoError(t, err)
	assert.Equal(t, t1, ps.LastChecked)
}

func TestTable_RemoveAndKeys(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, t0)
	require.NoError(t, tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:2", true, Extras{})
		tx.Apply("shop:1", true, Extras{})
		tx.Apply("other:1", true, Extras{})
		return nil
	}))

	require.NoError(t, tbl.Update(func(tx *Tx) error {
		assert.Equal(t, []string{"other:1", "shop:1", "shop:2"}, tx.Keys())
		assert.True(t, tx.Remove("shop:2"))
		assert.False(t, tx.Remove("shop:404"))
		assert.NotContains(t, tx.Keys(), "shop:2")
		return nil
	}))

	doc, err := tbl.Load()
	require.NoError(t, err)
	assert.Len(t, doc, 2)
	assert.NotContains(t, doc, "shop:2")
}

func TestTable_TouchOnlyTouchesSource(t *testing.T) {
	t.Parallel()

	now := t0
	tbl := NewTable(
		filepath.Join(t.TempDir(), "state.json"),
		WithClock(func() time.Time { return now }),
		WithStoreOptions(jsonstore.WithCache(jsonstore.NewCache(4))),
	)
	require.NoError(t, tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:1", true, Extras{})
		tx.Apply("shop:1:2", false, Extras{})
		tx.Apply("shopify:1", true, Extras{})
		return nil
	}))

	now = t1
	require.NoError(t, tbl.Update(func(tx *Tx) error {
		assert.Equal(t, 2, tx.Touch("shop"))
		assert.Empty(t, tx.Changes())
		return nil
	}))

	doc, err := tbl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, t1, doc["shop:1"].LastChecked)
	assert.Equal(t, t1, doc["shop:1:2"].LastChecked)
	assert.Equal(t, t0, doc["shopify:1"].LastChecked)
}

func TestTable_ErrorAbortsTransaction(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, t0)
	errAbort := errors.New("abort")

	err := tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:1", true, Extras{})
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	doc, err := tbl.Load()
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestTable_PersistedLayout(t *testing.T) {
	t.Parallel()

	tbl := newTestTable(t, t0)
	require.NoError(t, tbl.Update(func(tx *Tx) error {
		tx.Apply("shop:1", true, Extras{Title: SetTo("Mocha"), InventoryQty: SetTo(3)})
		return nil
	}))

	doc, err := tbl.Load()
	require.NoError(t, err)
	ps := doc["shop:1"]
	assert.Equal(t, ptr("Mocha"), ps.Title)
	assert.Nil(t, ps.StatusText)
	assert.Equal(t, t0, ps.LastChecked)
}
