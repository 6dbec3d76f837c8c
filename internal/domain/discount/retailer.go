package discount

import (
	"fmt"

	"github.com/kailas-cloud/dishpal/internal/domain"
)

// ErrRetailerNotFound signals a retailer no discount in the catalog refers to.
var ErrRetailerNotFound = fmt.Errorf("retailer %w", domain.ErrNotFound)

// Key identifies the retailer on the retailer endpoints.
// Retailers imported without an id fall back to their name.
func (r Retailer) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// RetailerSummary is a retailer as derived from the catalog.
type RetailerSummary struct {
	Retailer
	Discounts int
}

// Retailers returns the distinct retailers of ds in first-seen order.
// The first discount naming a retailer defines its name, contacts and location;
// later records only add to the count.
func Retailers(ds []Discount) []RetailerSummary {
	var out []RetailerSummary
	pos := make(map[string]int)
	for i := range ds {
		r := ds[i].Retailer()
		key := r.Key()
		if j, ok := pos[key]; ok {
			out[j].Discounts++
			continue
		}
		pos[key] = len(out)
		out = append(out, RetailerSummary{Retailer: r, Discounts: 1})
	}
	return out
}

// FindRetailer returns the retailer with the given key.
func FindRetailer(ds []Discount, key string) (RetailerSummary, error) {
	for _, r := range Retailers(ds) {
		if r.Key() == key {
			return r, nil
		}
	}
	return RetailerSummary{}, fmt.Errorf("%w: %s", ErrRetailerNotFound, key)
}
