package history

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

var t0 = time.Date(2026, 2, 18, 15, 30, 0, 0, time.UTC)

type labels map[string]string

func (l labels) SourceLabel(key string) string {
	p := state.SourceOf(key)
	if v, ok := l[p]; ok {
		return v
	}
	return p
}

func ptr[T any](v T) *T { return &v }

func newTestLog(t *testing.T, opts ...Option) *Log {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return t0 }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStoreOptions(jsonstore.WithCache(jsonstore.NewCache(2))),
	}
	return New(filepath.Join(t.TempDir(), "history.json"), append(base, opts...)...)
}

func change(key string, available bool) state.Change {
	return state.Change{Key: key, Available: available}
}

func TestAppend_RecordsChangeWithSourceLabel(t *testing.T) {
	t.Parallel()

	l := newTestLog(t, WithLabeler(labels{"shop": "shop.example"}))

	c := state.Change{
		Key:       "shop:1",
		Available: true,
		Attributes: state.Attributes{
			Title:        ptr("Soylent Mocha"),
			InventoryQty: ptr(50),
		},
	}
	require.NoError(t, l.Append([]state.Change{c}))

	got, err := l.List("", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[0]
	assert.Equal(t, t0, e.Timestamp)
	assert.Equal(t, "shop:1", e.ProductKey)
	assert.True(t, e.Available)
	assert.Equal(t, "Soylent Mocha", e.Title)
	assert.Equal(t, "shop.example", e.Source)
	assert.Equal(t, ptr(50), e.InventoryQty)
}

func TestAppend_TitleFallsBackToKey(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)
	require.NoError(t, l.Append([]state.Change{change("other:9", false)}))

	got, err := l.List("", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other:9", got[0].Title)
	assert.Equal(t, "other", got[0].Source)
}

func TestAppend_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)
	require.NoError(t, l.Append(nil))

	n, err := l.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppend_BatchSharesTimestamp(t *testing.T) {
	t.Parallel()

	calls := 0
	l := newTestLog(t, WithClock(func() time.Time {
		calls++
		return t0.Add(time.Duration(calls) * time.Second)
	}))

	require.NoError(t, l.Append([]state.Change{change("a:1", true), change("a:2", true), change("a:3", false)}))

	got, err := l.List("", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, got[0].Timestamp, e.Timestamp)
	}
	assert.Equal(t, 1, calls)
}

func TestAppend_CapDropsOldestFirst(t *testing.T) {
	t.Parallel()

	l := newTestLog(t, WithMaxEntries(5))

	for i := range 4 {
		batch := []state.Change{
			change(fmt.Sprintf("a:%d", 2*i), true),
			change(fmt.Sprintf("a:%d", 2*i+1), true),
		}
		require.NoError(t, l.Append(batch))

		n, err := l.Len()
		require.NoError(t, err)
		assert.LessOrEqual(t, n, 5)
	}

	got, err := l.List("", 0)
	require.NoError(t, err)
	keys := make([]string, 0, len(got))
	for _, e := range got {
		keys = append(keys, e.ProductKey)
	}
	assert.Equal(t, []string{"a:7", "a:6", "a:5", "a:4", "a:3"}, keys)
}

func TestList_FilterAndLimit(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)
	require.NoError(t, l.Append([]state.Change{
		change("a:1", true),
		change("a:2", true),
		change("a:1", false),
		change("a:2", false),
		change("a:1", true),
	}))

	got, err := l.List("a:1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Available)
	assert.False(t, got[1].Available)
	assert.True(t, got[2].Available)

	got, err = l.List("", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a:1", got[0].ProductKey)
	assert.Equal(t, "a:2", got[1].ProductKey)

	got, err = l.List("missing:1", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_DoesNotReorderStorage(t *testing.T) {
	t.Parallel()

	l := newTestLog(t)
	require.NoError(t, l.Append([]state.Change{change("a:1", true), change("a:2", true)}))

	_, err := l.List("", 0)
	require.NoError(t, err)

	raw, err := l.store.Read()
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "a:1", raw[0].ProductKey)
	assert.Equal(t, "a:2", raw[1].ProductKey)
}
