package selection

import "TrendCurator/internal/domain"

// Backfill tops up the selection with the first Shortfall unselected pool items in pool
// order, ignoring category, then truncates the result to total. The truncation is the
// only place the size cap is enforced.
func Backfill(pool []domain.CategorizedItem, sel Result, total int) []domain.CategorizedItem {
	selected := make([]domain.CategorizedItem, 0, len(sel.Items)+sel.Shortfall)
	seen := make(map[string]struct{}, len(sel.Items))
	for _, item := range sel.Items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		selected = append(selected, item)
	}

	need := sel.Shortfall
	for _, item := range pool {
		if need <= 0 {
			break
		}
		if _, taken := seen[item.ID]; taken {
			continue
		}
		seen[item.ID] = struct{}{}
		selected = append(selected, item)
		need--
	}

	if total >= 0 && len(selected) > total {
		selected = selected[:total]
	}
	return selected
}

// Select runs allocation and backfill with the quota table's total as the cap.
func Select(pool []domain.CategorizedItem, quotas domain.QuotaTable) ([]domain.CategorizedItem, Result) {
	alloc := Allocate(pool, quotas)
	return Backfill(pool, alloc, quotas.Total()), alloc
}
