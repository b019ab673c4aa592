package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 2, 18, 15, 30, 0, 0, time.UTC)
	t1 = t0.Add(5 * time.Minute)
)

func ptr[T any](v T) *T { return &v }

func TestApply_FirstObservationAlwaysChanges(t *testing.T) {
	t.Parallel()

	for _, available := range []bool{true, false} {
		states := Document{}
		c := Apply(states, "shop:1", available, Extras{}, t0)

		require.NotNil(t, c)
		assert.Equal(t, "shop:1", c.Key)
		assert.Equal(t, available, c.Available)
		assert.Nil(t, c.WasAvailable)
		assert.True(t, c.FirstSeen())
	}
}

func TestApply_RepeatedAvailabilityOnlyFirstChanges(t *testing.T) {
	t.Parallel()

	states := Document{}
	require.NotNil(t, Apply(states, "shop:1", true, Extras{}, t0))

	c := Apply(states, "shop:1", true, Extras{}, t1)
	assert.Nil(t, c)
	assert.Equal(t, t1, states["shop:1"].LastChecked, "last_checked refreshes without a change")

	assert.Nil(t, Apply(states, "shop:1", true, Extras{}, t1.Add(time.Minute)))
}

func TestApply_Transition(t *testing.T) {
	t.Parallel()

	states := Document{"shop:1": {Available: true, LastChecked: t0}}

	c := Apply(states, "shop:1", false, Extras{}, t1)
	require.NotNil(t, c)
	assert.False(t, c.Available)
	require.NotNil(t, c.WasAvailable)
	assert.True(t, *c.WasAvailable)
	assert.False(t, c.FirstSeen())
	assert.False(t, states["shop:1"].Available)
}

func TestApply_MergeSemantics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		second  Extras
		wantQty *int
	}{
		{
			name:    "explicit clear removes the field",
			second:  Extras{InventoryQty: Cleared[int]()},
			wantQty: nil,
		},
		{
			name:    "omitted field is preserved",
			second:  Extras{},
			wantQty: ptr(5),
		},
		{
			name:    "new value overwrites",
			second:  Extras{InventoryQty: SetTo(7)},
			wantQty: ptr(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			states := Document{}
			Apply(states, "shop:1", true, Extras{
				InventoryQty: SetTo(5),
				Title:        SetTo("Soylent Mocha"),
			}, t0)
			c := Apply(states, "shop:1", true, tt.second, t1)

			assert.Nil(t, c)
			assert.Equal(t, tt.wantQty, states["shop:1"].InventoryQty)
			assert.Equal(t, ptr("Soylent Mocha"), states["shop:1"].Title, "untouched field survives")
		})
	}
}

func TestApply_ChangeCarriesOnlySetExtras(t *testing.T) {
	t.Parallel()

	states := Document{"shop:1": {
		Available:  false,
		Attributes: Attributes{Handle: ptr("mocha"), Price: ptr("39.00")},
	}}

	c := Apply(states, "shop:1", true, Extras{
		Title:        SetTo("Mocha"),
		InventoryQty: SetTo(50),
		StatusText:   Cleared[string](),
	}, t1)

	require.NotNil(t, c)
	assert.Equal(t, ptr("Mocha"), c.Title)
	assert.Equal(t, ptr(50), c.InventoryQty)
	assert.Nil(t, c.StatusText)
	assert.Nil(t, c.Handle, "stored-but-not-supplied attributes are not in the event")

	stored := states["shop:1"]
	assert.Equal(t, ptr("mocha"), stored.Handle)
	assert.Equal(t, ptr("39.00"), stored.Price)
}

func TestApply_ScenarioEmptyStateWithQuantity(t *testing.T) {
	t.Parallel()

	states := Document{}
	c := Apply(states, "shop:1", true, Extras{InventoryQty: SetTo(50)}, t0)

	require.NotNil(t, c)
	assert.Nil(t, c.WasAvailable)
	assert.True(t, c.Available)
	qty, ok := c.Quantity()
	assert.True(t, ok)
	assert.Equal(t, 50, qty)
	assert.Equal(t, "shop", c.Source())
}

func TestSplitKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key                   string
		source, id, variantID string
	}{
		{key: "shopify-ca:123", source: "shopify-ca", id: "123"},
		{key: "shopify-ca:123:456", source: "shopify-ca", id: "123", variantID: "456"},
		{key: "bare", source: "bare"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			source, id, variant := SplitKey(tt.key)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.variantID, variant)
			assert.Equal(t, tt.source, SourceOf(tt.key))
		})
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "shop:1", Key("shop", "1"))
	assert.Equal(t, "shop:1:9", Key("shop", "1", "9"))
	assert.Equal(t, "shop:1", Key("shop", "1", ""))
}

func TestAttributes_Helpers(t *testing.T) {
	t.Parallel()

	var a Attributes
	assert.Equal(t, "fallback", a.TitleOr("fallback"))
	_, ok := a.Quantity()
	assert.False(t, ok)

	a.Title = ptr("Mocha")
	a.InventoryQty = ptr(0)
	assert.Equal(t, "Mocha", a.TitleOr("fallback"))
	qty, ok := a.Quantity()
	assert.True(t, ok)
	assert.Zero(t, qty)
}
