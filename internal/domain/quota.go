package domain

import "fmt"

// QuotaEntry is one category target. Order in a QuotaTable is the allocation order.
type QuotaEntry struct {
	Category Category `yaml:"category"`
	Target   int      `yaml:"target"`
}

// QuotaTable maps categories to target counts in a fixed iteration order.
type QuotaTable []QuotaEntry

// DefaultQuotaTable is the production quota table; targets sum to 50.
func DefaultQuotaTable() QuotaTable {
	return QuotaTable{
		{Category: CategoryBeauty, Target: 15},
		{Category: CategoryHome, Target: 12},
		{Category: CategoryLifestyle, Target: 13},
		{Category: CategoryFashion, Target: 5},
		{Category: CategoryTech, Target: 5},
	}
}

// Total is TOTAL_TARGET, the hard cap on a selection.
func (q QuotaTable) Total() int {
	total := 0
	for _, e := range q {
		total += e.Target
	}
	return total
}

// Validate rejects unknown categories, duplicates and negative targets.
func (q QuotaTable) Validate() error {
	seen := make(map[Category]struct{}, len(q))
	for _, e := range q {
		if _, ok := ParseCategory(string(e.Category)); !ok {
			return fmt.Errorf("quota: unknown category %q", e.Category)
		}
		if e.Target < 0 {
			return fmt.Errorf("quota: negative target for %s", e.Category)
		}
		if _, dup := seen[e.Category]; dup {
			return fmt.Errorf("quota: duplicate category %s", e.Category)
		}
		seen[e.Category] = struct{}{}
	}
	return nil
}
