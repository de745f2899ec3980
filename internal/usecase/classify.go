package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
)

// classifyPool labels every pool item, at most ClassifyConcurrency calls in flight.
// Output order matches pool order.
func (p *Pipeline) classifyPool(ctx context.Context, log *slog.Logger, pool []domain.CandidateItem) []domain.CategorizedItem {
	out := make([]domain.CategorizedItem, len(pool))

	var g errgroup.Group
	g.SetLimit(p.settings.ClassifyConcurrency)
	for i, item := range pool {
		g.Go(func() error {
			out[i] = domain.CategorizedItem{
				CandidateItem: item,
				Category:      p.classifyOne(ctx, log, item),
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// classifyOne never fails: errors, panics and unknown labels all map to the default category.
func (p *Pipeline) classifyOne(ctx context.Context, log *slog.Logger, item domain.CandidateItem) (category domain.Category) {
	if p.classifier == nil {
		return domain.DefaultCategory
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementClassifierFallback("panic")
			log.Warn("classifier panicked", "item_id", item.ID, "panic", r)
			category = domain.DefaultCategory
		}
	}()

	label, err := p.classifier.Classify(ctx, item.Text)
	if err != nil {
		metrics.IncrementClassifierFallback("error")
		log.Debug("classification failed, using default", "item_id", item.ID, "error", err)
		return domain.DefaultCategory
	}

	c, ok := domain.ParseCategory(string(label))
	if !ok {
		metrics.IncrementClassifierFallback("unknown_label")
		return domain.DefaultCategory
	}
	return c
}
