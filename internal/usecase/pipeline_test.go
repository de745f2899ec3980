package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/selection"
)

type fakePool struct {
	items map[domain.Platform][]domain.CandidateItem
	err   error
	calls []domain.Platform
}

func (f *fakePool) FetchTop(_ context.Context, platform domain.Platform, limit int, _ string) ([]domain.CandidateItem, error) {
	f.calls = append(f.calls, platform)
	if f.err != nil {
		return nil, f.err
	}
	items := f.items[platform]
	if len(items) > limit {
		items = items[:limit]
	}
	return append([]domain.CandidateItem(nil), items...), nil
}

// textClassifier labels an item with its text, which tests set to a category name.
type textClassifier struct {
	inFlight, maxInFlight atomic.Int32
	delay                 time.Duration
}

func (c *textClassifier) Classify(_ context.Context, text string) (domain.Category, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		m := c.maxInFlight.Load()
		if n <= m || c.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	switch text {
	case "boom":
		return "", errors.New("provider quota exhausted")
	case "panic":
		panic("malformed provider response")
	}
	return domain.Category(text), nil
}

type funcAnalyzer struct {
	mu    sync.Mutex
	calls []string
	fn    func(call int, item domain.CandidateItem) (domain.AnalysisResult, error)
}

func (a *funcAnalyzer) Analyze(_ context.Context, item domain.CandidateItem, _ domain.Platform) (domain.AnalysisResult, error) {
	a.mu.Lock()
	call := len(a.calls)
	a.calls = append(a.calls, item.ID)
	a.mu.Unlock()
	if a.fn != nil {
		return a.fn(call, item)
	}
	return domain.AnalysisOf(domain.Analysis{ProductName: "product " + item.ID, EnglishKeyword: item.ID}), nil
}

type funcSearch struct {
	fn func(a domain.Analysis) ([]domain.ProductMatch, error)
}

func (s *funcSearch) Search(_ context.Context, a domain.Analysis) ([]domain.ProductMatch, error) {
	if s.fn != nil {
		return s.fn(a)
	}
	return []domain.ProductMatch{
		{Title: a.ProductName, Thumbnail: "https://img/" + a.EnglishKeyword, PrimaryLink: "https://shop/" + a.EnglishKeyword, Links: map[string]string{"amazon": "https://amazon/" + a.EnglishKeyword}},
		{Title: "second", PrimaryLink: "https://shop/second"},
	}, nil
}

type fakeSink struct {
	calls   int
	records []domain.EnrichedRecommendation
	err     error
}

func (s *fakeSink) BulkInsert(ctx context.Context, records []domain.EnrichedRecommendation) (domain.InsertResult, error) {
	s.calls++
	if ctx.Err() != nil {
		return domain.InsertResult{}, ctx.Err()
	}
	if s.err != nil {
		return domain.InsertResult{}, s.err
	}
	s.records = append(s.records, records...)
	return domain.InsertResult{Success: true, Count: len(records)}, nil
}

type countingThrottle struct{ waits int }

func (c *countingThrottle) Wait(ctx context.Context) error {
	c.waits++
	return ctx.Err()
}

type fakeNotifier struct {
	runIDs []string
	err    error
}

func (n *fakeNotifier) PublishDigest(_ context.Context, runID string, _ []domain.EnrichedRecommendation) error {
	n.runIDs = append(n.runIDs, runID)
	return n.err
}

// deepPool gives each platform perCategory items of every category, ranked descending.
func deepPool(perCategory int) map[domain.Platform][]domain.CandidateItem {
	out := map[domain.Platform][]domain.CandidateItem{}
	for _, p := range domain.Platforms() {
		pop := 100_000
		for i := 0; i < perCategory; i++ {
			for _, q := range domain.DefaultQuotaTable() {
				out[p] = append(out[p], domain.CandidateItem{
					ID:         fmt.Sprintf("%s-%s-%d", p, q.Category, i),
					Platform:   p,
					Text:       string(q.Category),
					Popularity: pop,
				})
				pop--
			}
		}
	}
	return out
}

// expectedSelection replays selection on the pool the pipeline will see.
func expectedSelection(pool map[domain.Platform][]domain.CandidateItem) []domain.CategorizedItem {
	var labeled []domain.CategorizedItem
	for _, p := range domain.Platforms() {
		for _, it := range pool[p] {
			labeled = append(labeled, domain.CategorizedItem{CandidateItem: it, Category: domain.Category(it.Text)})
		}
	}
	selected, _ := selection.Select(labeled, domain.DefaultQuotaTable())
	return selected
}

type harness struct {
	pool     *fakePool
	analyzer *funcAnalyzer
	search   *funcSearch
	sink     *fakeSink
	throttle *countingThrottle
	notifier *fakeNotifier
}

func newHarness(items map[domain.Platform][]domain.CandidateItem) *harness {
	return &harness{
		pool:     &fakePool{items: items},
		analyzer: &funcAnalyzer{},
		search:   &funcSearch{},
		sink:     &fakeSink{},
		throttle: &countingThrottle{},
		notifier: &fakeNotifier{},
	}
}

func (h *harness) pipeline() *Pipeline {
	return NewPipeline(PipelineDeps{
		Pool:       h.pool,
		Classifier: &textClassifier{},
		Analyzer:   h.analyzer,
		Search:     h.search,
		Sink:       h.sink,
		Throttle:   h.throttle,
		Now:        func() time.Time { return time.Date(2025, time.March, 4, 15, 30, 0, 0, time.UTC) },
	})
}

func TestRunProducesFullBatch(t *testing.T) {
	t.Parallel()

	items := deepPool(20)
	h := newHarness(items)
	p := h.pipeline()
	p.notifiers = append(p.notifiers, h.notifier)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	want := expectedSelection(items)
	require.Len(t, want, 50)
	require.Len(t, res.Recommendations, 50)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 50, res.Selected)
	assert.True(t, res.Persisted)
	assert.Equal(t, 50, res.InsertedCount)
	assert.Equal(t, 1, h.sink.calls)
	assert.Equal(t, 49, h.throttle.waits)
	assert.Equal(t, []string{res.RunID}, h.notifier.runIDs)

	for i, rec := range res.Recommendations {
		assert.Equal(t, want[i].ID, rec.OriginalContentID)
		assert.Equal(t, want[i].Category, rec.Category)
		assert.Equal(t, want[i].Platform, rec.Platform)
	}

	first := res.Recommendations[0]
	assert.Equal(t, "product "+want[0].ID, first.TrendKeyword)
	assert.Equal(t, first.TrendKeyword, first.ProductName)
	assert.Equal(t, "https://shop/"+want[0].ID, first.ProductURL)
	assert.Equal(t, "https://img/"+want[0].ID, first.ThumbnailURL)
	assert.Equal(t, "https://amazon/"+want[0].ID, first.Analysis.Links["amazon"])
	assert.InDelta(t, 0.8, first.ConfidenceScore, 1e-9)
	assert.Equal(t, time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), first.Date)
}

func TestRunEmptyPoolSkipsPersistence(t *testing.T) {
	t.Parallel()

	h := newHarness(map[domain.Platform][]domain.CandidateItem{})
	res, err := h.pipeline().Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, StageDone, res.Stage)
	assert.Zero(t, h.sink.calls)
	assert.Equal(t, []domain.Platform{domain.PlatformInstagram, domain.PlatformTikTok}, h.pool.calls)
}

func TestRunAllSearchesEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(deepPool(20))
	h.search.fn = func(domain.Analysis) ([]domain.ProductMatch, error) { return nil, nil }

	res, err := h.pipeline().Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, 50, res.Selected)
	assert.Len(t, h.analyzer.calls, 50)
	assert.Equal(t, 49, h.throttle.waits, "skipped items still pace the providers")
	assert.Zero(t, h.sink.calls)
}

func TestRunIsolatesAnalyzerFailures(t *testing.T) {
	t.Parallel()

	items := deepPool(20)
	h := newHarness(items)
	h.analyzer.fn = func(call int, item domain.CandidateItem) (domain.AnalysisResult, error) {
		if call == 3 || call == 27 {
			return domain.AnalysisResult{}, errors.New("llm timeout")
		}
		return domain.AnalysisOf(domain.Analysis{ProductName: "product " + item.ID, EnglishKeyword: item.ID}), nil
	}

	res, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 48)

	want := expectedSelection(items)
	var wantIDs []string
	for i, it := range want {
		if i != 3 && i != 27 {
			wantIDs = append(wantIDs, it.ID)
		}
	}
	var got []string
	for _, rec := range res.Recommendations {
		got = append(got, rec.OriginalContentID)
	}
	assert.Equal(t, wantIDs, got)
	assert.Equal(t, want[2].ID, res.Recommendations[2].OriginalContentID)
	assert.Equal(t, want[4].ID, res.Recommendations[3].OriginalContentID)
}

func TestRunSkipsUnusableAnalysesAndPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(deepPool(20))
	h.analyzer.fn = func(call int, item domain.CandidateItem) (domain.AnalysisResult, error) {
		switch call {
		case 0:
			return domain.ParseFailure("not json"), nil
		case 1:
			return domain.AnalysisOf(domain.Analysis{ProductName: ""}), nil
		case 2:
			panic("analyzer bug")
		}
		return domain.AnalysisOf(domain.Analysis{ProductName: "p", EnglishKeyword: item.ID}), nil
	}
	h.search.fn = func(a domain.Analysis) ([]domain.ProductMatch, error) {
		if a.EnglishKeyword == "" {
			t.Errorf("search called with unusable analysis")
		}
		return []domain.ProductMatch{{PrimaryLink: "https://x/" + a.EnglishKeyword}}, nil
	}

	res, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 47)
}

func TestRunSearchErrorDropsItem(t *testing.T) {
	t.Parallel()

	items := deepPool(20)
	h := newHarness(items)
	target := expectedSelection(items)[10].ID
	h.search.fn = func(a domain.Analysis) ([]domain.ProductMatch, error) {
		if a.EnglishKeyword == target {
			return nil, errors.New("search 503")
		}
		return []domain.ProductMatch{{PrimaryLink: "https://x/" + a.EnglishKeyword}}, nil
	}

	res, err := h.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 49)
	for _, rec := range res.Recommendations {
		assert.NotEqual(t, target, rec.OriginalContentID)
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	h.pool.err = errors.New("connection refused")

	res, err := h.pipeline().Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, StageFetching, res.Stage)
	assert.Empty(t, h.analyzer.calls)
	assert.Zero(t, h.sink.calls)
}

func TestRunPersistFailureKeepsResults(t *testing.T) {
	t.Parallel()

	h := newHarness(deepPool(20))
	h.sink.err = errors.New("unique violation")
	p := h.pipeline()
	p.notifiers = append(p.notifiers, h.notifier)

	res, err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersist)
	assert.Len(t, res.Recommendations, 50)
	assert.False(t, res.Persisted)
	assert.Equal(t, StagePersisting, res.Stage)
	assert.Empty(t, h.notifier.runIDs)
}

func TestRunNotifierFailureIsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(deepPool(20))
	h.notifier.err = errors.New("telegram down")
	p := h.pipeline()
	p.notifiers = append(p.notifiers, h.notifier)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Len(t, h.notifier.runIDs, 1)
}

func TestRunCancellationKeepsProducedItems(t *testing.T) {
	t.Parallel()

	h := newHarness(deepPool(20))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.analyzer.fn = func(call int, item domain.CandidateItem) (domain.AnalysisResult, error) {
		if call == 4 {
			cancel()
		}
		return domain.AnalysisOf(domain.Analysis{ProductName: "p", EnglishKeyword: item.ID}), nil
	}

	res, err := h.pipeline().Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Recommendations, 5)
	assert.Len(t, h.analyzer.calls, 5)
	assert.Equal(t, 1, h.sink.calls)
	assert.Len(t, h.sink.records, 5)
	assert.Equal(t, StageDone, res.Stage)
}

func TestRunMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(PipelineDeps{}).Run(context.Background())
	require.Error(t, err)
}

func TestClassifyPoolFallsBackToLifestyle(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{Classifier: &textClassifier{}})
	pool := []domain.CandidateItem{
		{ID: "1", Text: "beauty"},
		{ID: "2", Text: "boom"},
		{ID: "3", Text: "panic"},
		{ID: "4", Text: "gardening"},
		{ID: "5", Text: "tech"},
	}

	out := p.classifyPool(context.Background(), p.logger, pool)

	require.Len(t, out, 5)
	got := []domain.Category{out[0].Category, out[1].Category, out[2].Category, out[3].Category, out[4].Category}
	assert.Equal(t, []domain.Category{
		domain.CategoryBeauty,
		domain.CategoryLifestyle,
		domain.CategoryLifestyle,
		domain.CategoryLifestyle,
		domain.CategoryTech,
	}, got)
	assert.Equal(t, "3", out[2].ID)
}

func TestClassifyPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	cls := &textClassifier{delay: 5 * time.Millisecond}
	p := NewPipeline(PipelineDeps{
		Classifier: cls,
		Settings:   Settings{ClassifyConcurrency: 3},
	})

	pool := make([]domain.CandidateItem, 30)
	for i := range pool {
		pool[i] = domain.CandidateItem{ID: fmt.Sprint(i), Text: "home"}
	}
	out := p.classifyPool(context.Background(), p.logger, pool)

	assert.Len(t, out, 30)
	assert.LessOrEqual(t, cls.maxInFlight.Load(), int32(3))
}

func TestClassifyWithoutClassifierUsesDefault(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{})
	out := p.classifyPool(context.Background(), p.logger, []domain.CandidateItem{{ID: "a", Text: "beauty"}})
	assert.Equal(t, domain.CategoryLifestyle, out[0].Category)
}
