// Package selection picks a bounded, category-balanced subset of a classified content pool.
package selection

import "TrendCurator/internal/domain"

// Result is an ordered selection plus the number of quota slots that could not be filled.
type Result struct {
	Items     []domain.CategorizedItem
	Shortfall int
}

// Allocate walks the quota table in order and takes up to target items per category,
// splitting each target evenly between instagram and tiktok. The pool must already be
// ranked by popularity within each platform; relative order is preserved.
func Allocate(pool []domain.CategorizedItem, quotas domain.QuotaTable) Result {
	var res Result

	for _, quota := range quotas {
		if quota.Target <= 0 {
			continue
		}

		var insta, tiktok []domain.CategorizedItem
		available := 0
		for _, item := range pool {
			if item.Category != quota.Category {
				continue
			}
			available++
			switch item.Platform {
			case domain.PlatformInstagram:
				insta = append(insta, item)
			case domain.PlatformTikTok:
				tiktok = append(tiktok, item)
			}
		}

		half := (quota.Target + 1) / 2
		picked := append(head(insta, half), head(tiktok, half)...)
		res.Items = append(res.Items, head(picked, quota.Target)...)

		if available < quota.Target {
			res.Shortfall += quota.Target - available
		}
	}

	return res
}

func head(items []domain.CategorizedItem, n int) []domain.CategorizedItem {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
