package notify

import (
	"fmt"
	"strings"
)

// Footers.
const (
	footerUnsubscribedOne  = "You've been unsubscribed from this product."
	footerLimitedStock     = "Limited stock, we'll keep watching."
	footerUnknownStock     = "Unknown stock, we'll keep watching."
	footerUnsubscribedAll  = "You've been unsubscribed from these products."
	footerKeepWatchingLow  = "We'll keep watching the low inventory products."
	footerUnsubscribedSome = "You've been unsubscribed from high-stock items."
)

// Item is one restocked product in a message.
type Item struct {
	Key  string
	Name string
	URL  string
	// Qty is the inventory quantity, nil when unknown.
	Qty *int
}

func (it *Item) knownQty() (int, bool) {
	if it.Qty == nil || *it.Qty <= 0 {
		return 0, false
	}
	return *it.Qty, true
}

// FormatMessage renders the single SMS sent to one subscriber for all of
// their restocked items. unsub holds the keys being auto-unsubscribed.
func FormatMessage(items []Item, unsub map[string]bool, trackerURL string) string {
	footer := footerFor(items, unsub)

	if len(items) == 1 {
		it := &items[0]
		suffix := ""
		if qty, ok := it.knownQty(); ok {
			suffix = fmt.Sprintf(" (%d available)", qty)
		}
		return fmt.Sprintf("%s is back in stock%s:\n%s\n\n%s", it.Name, suffix, it.URL, footer)
	}

	lines := make([]string, 0, len(items))
	for i := range items {
		if qty, ok := items[i].knownQty(); ok {
			lines = append(lines, fmt.Sprintf("%dx %s", qty, items[i].Name))
		} else {
			lines = append(lines, items[i].Name)
		}
	}
	return fmt.Sprintf("Back in stock:\n\n%s\n\n%s\n\n%s", strings.Join(lines, "\n"), trackerURL, footer)
}

func footerFor(items []Item, unsub map[string]bool) string {
	if len(items) == 1 {
		if unsub[items[0].Key] {
			return footerUnsubscribedOne
		}
		if _, ok := items[0].knownQty(); ok {
			return footerLimitedStock
		}
		return footerUnknownStock
	}

	marked := 0
	for i := range items {
		if unsub[items[i].Key] {
			marked++
		}
	}
	switch marked {
	case len(items):
		return footerUnsubscribedAll
	case 0:
		return footerKeepWatchingLow
	default:
		return footerUnsubscribedSome
	}
}
