package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func qty(n int) *int { return &n }

func TestFormatMessage_SingleItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		item  Item
		unsub map[string]bool
		want  string
	}{
		{
			name:  "high stock unsubscribed",
			item:  Item{Key: "shop:1", Name: "Mocha", URL: "https://shop.example/p/mocha", Qty: qty(200)},
			unsub: map[string]bool{"shop:1": true},
			want:  "Mocha is back in stock (200 available):\nhttps://shop.example/p/mocha\n\nYou've been unsubscribed from this product.",
		},
		{
			name: "limited stock keeps watching",
			item: Item{Key: "shop:1", Name: "Mocha", URL: "https://shop.example/p/mocha", Qty: qty(10)},
			want: "Mocha is back in stock (10 available):\nhttps://shop.example/p/mocha\n\nLimited stock, we'll keep watching.",
		},
		{
			name: "unknown stock",
			item: Item{Key: "shop:1", Name: "Mocha", URL: "https://shop.example/p/mocha"},
			want: "Mocha is back in stock:\nhttps://shop.example/p/mocha\n\nUnknown stock, we'll keep watching.",
		},
		{
			name: "zero quantity counts as unknown",
			item: Item{Key: "shop:1", Name: "Mocha", URL: "u", Qty: qty(0)},
			want: "Mocha is back in stock:\nu\n\nUnknown stock, we'll keep watching.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatMessage([]Item{tt.item}, tt.unsub, "https://tracker.example"))
		})
	}
}

func TestFormatMessage_MultipleItems(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Key: "shop:1", Name: "Mocha", Qty: qty(200)},
		{Key: "shop:2", Name: "Cacao"},
		{Key: "shop:3", Name: "Vanilla", Qty: qty(5)},
	}

	tests := []struct {
		name   string
		unsub  map[string]bool
		footer string
	}{
		{
			name:   "all unsubscribed",
			unsub:  map[string]bool{"shop:1": true, "shop:2": true, "shop:3": true},
			footer: "You've been unsubscribed from these products.",
		},
		{
			name:   "none unsubscribed",
			footer: "We'll keep watching the low inventory products.",
		},
		{
			name:   "mixed",
			unsub:  map[string]bool{"shop:1": true},
			footer: "You've been unsubscribed from high-stock items.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := "Back in stock:\n\n200x Mocha\nCacao\n5x Vanilla\n\nhttps://tracker.example\n\n" + tt.footer
			assert.Equal(t, want, FormatMessage(items, tt.unsub, "https://tracker.example"))
		})
	}
}
