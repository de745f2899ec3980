package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/metrics"
	"TrendCurator/internal/ports"
	"TrendCurator/internal/selection"
)

// Stage names the linear run states.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageClassifying Stage = "classifying"
	StageSelecting   Stage = "selecting"
	StageBackfilling Stage = "backfilling"
	StageEnriching   Stage = "enriching"
	StagePersisting  Stage = "persisting"
	StageDone        Stage = "done"
)

// Settings carries the selection and enrichment tunables.
type Settings struct {
	Quotas              domain.QuotaTable
	PoolLimit           int
	SortKey             string
	ClassifyConcurrency int
	ConfidenceScore     float64
	Location            *time.Location
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Quotas:              domain.DefaultQuotaTable(),
		PoolLimit:           200,
		SortKey:             "popularity",
		ClassifyConcurrency: 10,
		ConfidenceScore:     0.8,
		Location:            time.UTC,
	}
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Pool       ports.ContentPool
	Classifier ports.Classifier
	Analyzer   ports.ContentAnalyzer
	Search     ports.ProductSearch
	Sink       ports.RecommendationSink
	Notifiers  []ports.Notifier
	Throttle   ports.Throttle
	Logger     *slog.Logger
	Settings   Settings
	Now        func() time.Time
}

// Pipeline implements the select-and-enrich workflow.
type Pipeline struct {
	pool       ports.ContentPool
	classifier ports.Classifier
	analyzer   ports.ContentAnalyzer
	search     ports.ProductSearch
	sink       ports.RecommendationSink
	notifiers  []ports.Notifier
	throttle   ports.Throttle
	logger     *slog.Logger
	settings   Settings
	now        func() time.Time
}

// RunResult is what a single run produced. Recommendations is populated even when
// persistence failed or the run was cancelled mid-enrichment.
type RunResult struct {
	RunID           string                          `json:"run_id"`
	Stage           Stage                           `json:"stage"`
	PoolSize        int                             `json:"pool_size"`
	Selected        int                             `json:"selected"`
	Shortfall       int                             `json:"shortfall"`
	Persisted       bool                            `json:"persisted"`
	InsertedCount   int                             `json:"inserted_count"`
	Recommendations []domain.EnrichedRecommendation `json:"recommendations"`
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	settings := deps.Settings
	defaults := DefaultSettings()
	if len(settings.Quotas) == 0 {
		settings.Quotas = defaults.Quotas
	}
	if settings.PoolLimit <= 0 {
		settings.PoolLimit = defaults.PoolLimit
	}
	if settings.SortKey == "" {
		settings.SortKey = defaults.SortKey
	}
	if settings.ClassifyConcurrency <= 0 {
		settings.ClassifyConcurrency = defaults.ClassifyConcurrency
	}
	if settings.ConfidenceScore <= 0 {
		settings.ConfidenceScore = defaults.ConfidenceScore
	}
	if settings.Location == nil {
		settings.Location = defaults.Location
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		pool:       deps.Pool,
		classifier: deps.Classifier,
		analyzer:   deps.Analyzer,
		search:     deps.Search,
		sink:       deps.Sink,
		notifiers:  deps.Notifiers,
		throttle:   deps.Throttle,
		logger:     logger,
		settings:   settings,
		now:        now,
	}
}

// Run executes FETCHING through DONE once. Only fetch failures abort with an empty
// result; a persistence failure is returned alongside the computed recommendations.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString(), Stage: StageFetching}
	log := p.logger.With("run_id", res.RunID)

	if p.pool == nil || p.analyzer == nil || p.search == nil {
		metrics.IncrementRun("misconfigured")
		return res, errors.New("pipeline misconfigured: pool, analyzer and search are required")
	}

	day := p.now().In(p.settings.Location)
	started := time.Now()
	log.Info("run started", "day", day.Format("2006-01-02"))

	pool, err := p.fetch(ctx, log)
	p.observe(StageFetching, started)
	if err != nil {
		metrics.IncrementRun("fetch_failed")
		log.Error("fetch failed", "error", err)
		return res, err
	}
	res.PoolSize = len(pool)

	res.Stage = StageClassifying
	mark := time.Now()
	labeled := p.classifyPool(ctx, log, pool)
	p.observe(StageClassifying, mark)

	res.Stage = StageSelecting
	mark = time.Now()
	alloc := selection.Allocate(labeled, p.settings.Quotas)
	p.observe(StageSelecting, mark)
	res.Shortfall = alloc.Shortfall

	res.Stage = StageBackfilling
	mark = time.Now()
	selected := selection.Backfill(labeled, alloc, p.settings.Quotas.Total())
	p.observe(StageBackfilling, mark)
	res.Selected = len(selected)
	log.Info("selection ready", "selected", len(selected), "shortfall", alloc.Shortfall)

	res.Stage = StageEnriching
	mark = time.Now()
	recs, stopErr := p.enrich(ctx, log, day, selected)
	p.observe(StageEnriching, mark)
	res.Recommendations = recs
	if stopErr != nil {
		log.Warn("enrichment stopped early", "error", stopErr, "produced", len(recs))
	}

	if len(recs) > 0 && p.sink != nil {
		res.Stage = StagePersisting
		mark = time.Now()
		inserted, err := p.sink.BulkInsert(context.WithoutCancel(ctx), recs)
		p.observe(StagePersisting, mark)
		if err != nil {
			metrics.IncrementRun("persist_failed")
			log.Error("persist failed", "error", err, "recommendations", len(recs))
			return res, fmt.Errorf("%w: %w", domain.ErrPersist, err)
		}
		res.Persisted = inserted.Success
		res.InsertedCount = inserted.Count
		p.notify(ctx, log, res.RunID, recs)
	}

	res.Stage = StageDone
	if stopErr != nil {
		metrics.IncrementRun("cancelled")
		return res, stopErr
	}

	metrics.IncrementRun("ok")
	log.Info("run finished", "recommendations", len(recs), "elapsed", time.Since(started))
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger) ([]domain.CandidateItem, error) {
	var pool []domain.CandidateItem
	for _, platform := range domain.Platforms() {
		items, err := p.pool.FetchTop(ctx, platform, p.settings.PoolLimit, p.settings.SortKey)
		if err != nil {
			return nil, fmt.Errorf("%w: platform %s: %w", domain.ErrFetch, platform, err)
		}
		for i := range items {
			if items[i].Platform == "" {
				items[i].Platform = platform
			}
		}
		log.Debug("platform fetched", "platform", platform, "count", len(items))
		pool = append(pool, items...)
	}
	return pool, nil
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, runID string, recs []domain.EnrichedRecommendation) {
	for _, n := range p.notifiers {
		if n == nil {
			continue
		}
		if err := n.PublishDigest(ctx, runID, recs); err != nil {
			log.Warn("notify failed", "error", err)
		}
	}
}

func (p *Pipeline) observe(stage Stage, since time.Time) {
	metrics.ObserveStage(string(stage), time.Since(since))
}
