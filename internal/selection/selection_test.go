package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendCurator/internal/domain"
)

func item(id string, p domain.Platform, c domain.Category, pop int) domain.CategorizedItem {
	return domain.CategorizedItem{
		CandidateItem: domain.CandidateItem{ID: id, Platform: p, Popularity: pop},
		Category:      c,
	}
}

// deepPool builds perCategory items per platform and category, instagram block first,
// each block ranked by popularity descending.
func deepPool(perCategory int) []domain.CategorizedItem {
	var pool []domain.CategorizedItem
	for _, p := range domain.Platforms() {
		pop := 10_000
		for i := 0; i < perCategory; i++ {
			for _, q := range domain.DefaultQuotaTable() {
				pool = append(pool, item(fmt.Sprintf("%s-%s-%d", p, q.Category, i), p, q.Category, pop))
				pop--
			}
		}
	}
	return pool
}

func countBy(items []domain.CategorizedItem) map[domain.Category]int {
	out := map[domain.Category]int{}
	for _, it := range items {
		out[it.Category]++
	}
	return out
}

func TestSelectFillsEveryQuotaFromDeepPool(t *testing.T) {
	t.Parallel()

	quotas := domain.DefaultQuotaTable()
	selected, alloc := Select(deepPool(20), quotas)

	require.Len(t, selected, quotas.Total())
	assert.Equal(t, 50, quotas.Total())
	assert.Zero(t, alloc.Shortfall)

	counts := countBy(selected)
	for _, q := range quotas {
		assert.Equal(t, q.Target, counts[q.Category], "category %s", q.Category)
	}
}

func TestAllocateSplitsPlatformsWithCeilHalf(t *testing.T) {
	t.Parallel()

	quotas := domain.QuotaTable{{Category: domain.CategoryBeauty, Target: 15}}
	res := Allocate(deepPool(20), quotas)

	require.Len(t, res.Items, 15)
	var insta, tiktok int
	for i, it := range res.Items {
		if it.Platform == domain.PlatformInstagram {
			insta++
			assert.Less(t, i, 8, "instagram items come first")
		} else {
			tiktok++
		}
	}
	assert.Equal(t, 8, insta)
	assert.Equal(t, 7, tiktok)
}

func TestAllocateSinglePlatformCategoryIsCappedAtHalf(t *testing.T) {
	t.Parallel()

	var pool []domain.CategorizedItem
	for i := 0; i < 10; i++ {
		pool = append(pool, item(fmt.Sprintf("i%d", i), domain.PlatformInstagram, domain.CategoryTech, 100-i))
	}

	res := Allocate(pool, domain.QuotaTable{{Category: domain.CategoryTech, Target: 5}})

	require.Len(t, res.Items, 3)
	assert.Equal(t, []string{"i0", "i1", "i2"}, ids(res.Items))
	assert.Zero(t, res.Shortfall, "availability, not the platform split, drives shortfall")
}

func TestShortBeautyPoolIsBackfilled(t *testing.T) {
	t.Parallel()

	var pool []domain.CategorizedItem
	pool = append(pool,
		item("b-i-1", domain.PlatformInstagram, domain.CategoryBeauty, 100),
		item("b-i-2", domain.PlatformInstagram, domain.CategoryBeauty, 90),
		item("b-i-3", domain.PlatformInstagram, domain.CategoryBeauty, 80),
	)
	for _, p := range domain.Platforms() {
		for i := 0; i < 20; i++ {
			for _, c := range []domain.Category{domain.CategoryHome, domain.CategoryLifestyle, domain.CategoryFashion, domain.CategoryTech} {
				pool = append(pool, item(fmt.Sprintf("%s-%s-%d", p, c, i), p, c, 50))
			}
		}
		if p == domain.PlatformInstagram {
			pool = append(pool,
				item("b-t-1", domain.PlatformTikTok, domain.CategoryBeauty, 70),
				item("b-t-2", domain.PlatformTikTok, domain.CategoryBeauty, 60),
			)
		}
	}

	quotas := domain.DefaultQuotaTable()
	alloc := Allocate(pool, quotas)
	assert.Equal(t, 10, alloc.Shortfall)

	selected := Backfill(pool, alloc, quotas.Total())
	require.Len(t, selected, 50)

	assert.Equal(t, 5, countBy(selected)[domain.CategoryBeauty])
	assert.Equal(t, []string{"b-i-1", "b-i-2", "b-i-3", "b-t-1", "b-t-2"}, ids(selected[:5]))

	taken := map[string]bool{}
	for _, it := range alloc.Items {
		taken[it.ID] = true
	}
	var want []string
	for _, it := range pool {
		if !taken[it.ID] && len(want) < 10 {
			want = append(want, it.ID)
		}
	}
	assert.Equal(t, want, ids(selected[40:]))
}

func TestBackfillTakesRemainingInPoolOrder(t *testing.T) {
	t.Parallel()

	pool := []domain.CategorizedItem{
		item("b1", domain.PlatformInstagram, domain.CategoryBeauty, 9),
		item("h1", domain.PlatformInstagram, domain.CategoryHome, 8),
		item("b2", domain.PlatformInstagram, domain.CategoryBeauty, 7),
		item("t1", domain.PlatformTikTok, domain.CategoryTech, 9),
		item("b3", domain.PlatformTikTok, domain.CategoryBeauty, 8),
		item("h2", domain.PlatformTikTok, domain.CategoryHome, 7),
		item("h3", domain.PlatformTikTok, domain.CategoryHome, 6),
	}
	quotas := domain.QuotaTable{
		{Category: domain.CategoryBeauty, Target: 4},
		{Category: domain.CategoryTech, Target: 2},
	}

	selected, alloc := Select(pool, quotas)

	assert.Equal(t, 2, alloc.Shortfall)
	assert.Equal(t, []string{"b1", "b2", "b3", "t1", "h1", "h2"}, ids(selected))
}

func TestBackfillTruncatesToTotal(t *testing.T) {
	t.Parallel()

	pool := []domain.CategorizedItem{
		item("a", domain.PlatformInstagram, domain.CategoryHome, 3),
		item("b", domain.PlatformInstagram, domain.CategoryHome, 2),
		item("c", domain.PlatformInstagram, domain.CategoryHome, 1),
	}
	sel := Result{Items: pool[:2], Shortfall: 1}

	out := Backfill(pool, sel, 2)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

func TestBackfillNeverDuplicatesIDs(t *testing.T) {
	t.Parallel()

	pool := []domain.CategorizedItem{
		item("x", domain.PlatformInstagram, domain.CategoryHome, 3),
		item("x", domain.PlatformTikTok, domain.CategoryHome, 3),
		item("y", domain.PlatformTikTok, domain.CategoryTech, 2),
		item("z", domain.PlatformTikTok, domain.CategoryTech, 1),
	}
	sel := Result{Items: []domain.CategorizedItem{pool[0], pool[1]}, Shortfall: 2}

	out := Backfill(pool, sel, 10)
	assert.Equal(t, []string{"x", "y", "z"}, ids(out))
}

func TestSelectEmptyPool(t *testing.T) {
	t.Parallel()

	selected, alloc := Select(nil, domain.DefaultQuotaTable())
	assert.Empty(t, selected)
	assert.Equal(t, 50, alloc.Shortfall)
}

func ids(items []domain.CategorizedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
