// Package categorization assigns ledger categories: a deterministic keyword
// pass at ingestion time and an asynchronous refinement of whatever was left
// as "other".
package categorization

import "strings"

// Category is one of the fixed ledger categories.
type Category string

const (
	Food          Category = "food"
	Groceries     Category = "groceries"
	Transport     Category = "transport"
	Shopping      Category = "shopping"
	Bills         Category = "bills"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Education     Category = "education"
	Subscriptions Category = "subscriptions"
	Transfer      Category = "transfer"
	Income        Category = "income"
	Other         Category = "other"
)

// All lists the taxonomy in display order.
var All = []Category{
	Food, Groceries, Transport, Shopping, Bills, Entertainment,
	Health, Education, Subscriptions, Transfer, Income, Other,
}

// Parse maps user or model input onto the taxonomy.
func Parse(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if c == known {
			return c, true
		}
	}
	return Other, false
}
