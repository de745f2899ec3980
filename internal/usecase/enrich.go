package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
)

const (
	outcomeOK         = "ok"
	outcomeNoAnalysis = "no_analysis"
	outcomeNoMatch    = "no_match"
	outcomeError      = "error"
)

// enrich processes the selection one item at a time. Item failures are dropped; the
// returned error is non-nil only when the context or throttle stopped the loop, in
// which case the recommendations produced so far are still returned.
func (p *Pipeline) enrich(ctx context.Context, log *slog.Logger, day time.Time, selected []domain.CategorizedItem) ([]domain.EnrichedRecommendation, error) {
	recs := make([]domain.EnrichedRecommendation, 0, len(selected))

	for i, item := range selected {
		if err := ctx.Err(); err != nil {
			return recs, err
		}
		// Every item calls the analyzer, so skipped items are paced too.
		if i > 0 && p.throttle != nil {
			if err := p.throttle.Wait(ctx); err != nil {
				return recs, fmt.Errorf("throttle: %w", err)
			}
		}

		rec, outcome, err := p.enrichOne(ctx, day, item)
		metrics.IncrementEnrichment(outcome)

		switch outcome {
		case outcomeOK:
			recs = append(recs, rec)
		case outcomeError:
			log.Warn("enrichment failed, skipping item", "index", i, "item_id", item.ID, "error", err)
		default:
			log.Info("item skipped", "index", i, "item_id", item.ID, "reason", outcome)
		}
	}

	return recs, nil
}

func (p *Pipeline) enrichOne(ctx context.Context, day time.Time, item domain.CategorizedItem) (rec domain.EnrichedRecommendation, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomeError
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res, err := p.analyzer.Analyze(ctx, item.CandidateItem, item.Platform)
	if err != nil {
		return rec, outcomeError, fmt.Errorf("analyze: %w", err)
	}
	if res.Status != domain.AnalysisOK || !res.Analysis.Usable() {
		return rec, outcomeNoAnalysis, nil
	}

	matches, err := p.search.Search(ctx, *res.Analysis)
	if err != nil {
		return rec, outcomeError, fmt.Errorf("search: %w", err)
	}
	if len(matches) == 0 {
		return rec, outcomeNoMatch, nil
	}

	return domain.NewRecommendation(day, item, *res.Analysis, matches[0], p.settings.ConfidenceScore), outcomeOK, nil
}
