package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/api/client"
	"github.com/donaldgifford/restock-tracker/internal/api/handlers"
	"github.com/donaldgifford/restock-tracker/internal/engine"
	"github.com/donaldgifford/restock-tracker/internal/notify"
	"github.com/donaldgifford/restock-tracker/internal/scheduler"
	"github.com/donaldgifford/restock-tracker/internal/state"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

func ptr[T any](v T) *T { return &v }

func TestPrintProductsTable(t *testing.T) {
	t.Parallel()

	list := &client.ProductList{
		Products: []handlers.Product{
			{
				Key:         "shop:1",
				Name:        "Original Powder",
				Source:      "Shop CA",
				Available:   true,
				LastChecked: time.Now().Add(-3 * time.Minute),
				Attributes:  state.Attributes{InventoryQty: ptr(1500), Price: ptr("42.00")},
			},
			{Key: "shop:2", Name: "Cacao", Source: "Shop CA"},
		},
		Total:     2,
		Available: 1,
	}

	var buf bytes.Buffer
	require.NoError(t, printProductsTable(&buf, list))
	out := buf.String()

	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "$42.00")
	assert.Contains(t, out, "3 minutes ago")
	assert.Contains(t, out, "sold out")
	assert.True(t, strings.HasSuffix(out, "2 products, 1 in stock\n"))
}

func TestPrintProductDetail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printProductDetail(&buf, &handlers.Product{
		Key:         "shop:1",
		Name:        "Original Powder",
		Category:    "powder",
		Available:   true,
		LastChecked: time.Now(),
		URL:         "https://shop.example/products/original",
		Attributes:  state.Attributes{StatusText: ptr("Ships in 2 days")},
	}))

	out := buf.String()
	assert.Contains(t, out, "Ships in 2 days")
	assert.Contains(t, out, "https://shop.example/products/original")
	assert.Regexp(t, `Quantity:\s+-`, out)
	assert.Regexp(t, `Price:\s+-`, out)
}

func TestPrintSMSStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stats notify.Stats
		want  []string
	}{
		{
			name:  "with cap",
			stats: notify.Stats{Today: 12, Total: 4200, Cap: 200},
			want:  []string{"12 / 200", "4,200"},
		},
		{
			name: "phones by count",
			stats: notify.Stats{
				Today:   3,
				Total:   3,
				ByPhone: map[string]int{"+155***0001": 1, "+155***0002": 2},
				LastMessage: map[string]notify.LastMessage{
					"+155***0002": {Text: "Back in stock:\nMocha", At: time.Now()},
				},
			},
			want: []string{"PHONE", "Back in stock: Mocha"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, printSMSStats(&buf, &tt.stats))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}

	var buf bytes.Buffer
	require.NoError(t, printSMSStats(&buf, &notify.Stats{
		ByPhone: map[string]int{"+155***0001": 1, "+155***0002": 2},
	}))
	out := buf.String()
	assert.Less(t, strings.Index(out, "+155***0002"), strings.Index(out, "+155***0001"))
}

func TestPrintJobsTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printJobsTable(&buf, []scheduler.JobStatus{
		{Name: "shop", Kind: scheduler.KindChecker, Schedule: "@every 1m0s", Running: true, Runs: 4, Failures: 1, LastError: "polling shop: timeout"},
		{Name: "maintenance", Kind: scheduler.KindCron, Schedule: "0 3 * * *"},
	}))

	out := buf.String()
	assert.Contains(t, out, "@every 1m0s (running)")
	assert.Contains(t, out, "polling shop: timeout")
	assert.Contains(t, out, "0 3 * * *")
}

func TestPrintCheckResult(t *testing.T) {
	t.Parallel()

	t.Run("changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, printCheckResult(&buf, &engine.Result{
			Source:   "shop",
			Observed: 3,
			Changes: []state.Change{
				{Key: "shop:1", Available: true, Attributes: state.Attributes{Title: ptr("Mocha"), InventoryQty: ptr(8)}},
			},
			Notification: &notify.Summary{Notified: 2, Failed: 1},
		}))

		out := buf.String()
		assert.Regexp(t, `Observed:\s+3`, out)
		assert.Contains(t, out, "2 sent, 1 failed")
		assert.Contains(t, out, "FIRST SEEN")
		assert.Contains(t, out, "Mocha")
	})

	t.Run("not modified", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, printCheckResult(&buf, &engine.Result{Source: "shop", NotModified: true, Touched: 7}))
		assert.Contains(t, buf.String(), "not modified, 7 products touched")
		assert.NotContains(t, buf.String(), "PRODUCT")
	})
}

func TestPrintSubscribersTable(t *testing.T) {
	t.Parallel()

	users := []subscribers.Subscriber{
		{Phone: "+15551234567", NotificationsEnabled: true, Subscriptions: []string{"shop:1", "shop:2"}, InvitedBy: "+15550000000"},
	}

	var masked, full bytes.Buffer
	require.NoError(t, printSubscribersTable(&masked, users, false))
	require.NoError(t, printSubscribersTable(&full, users, true))

	assert.Contains(t, masked.String(), "+155***4567")
	assert.NotContains(t, masked.String(), "123-4567")
	assert.Contains(t, full.String(), "+1 (555) 123-4567")
	assert.Regexp(t, `\+155\*\*\*4567\s+-\s+on\s+2`, masked.String())
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer product title", 10, "a longe..."},
		{"Café au lait ☕ édition", 8, "Café ..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max), tt.in)
	}
}
