package ports

import (
	"context"
	"time"

	"TrendCurator/internal/domain"
)

// ContentPool returns ranked candidate items for one platform.
type ContentPool interface {
	FetchTop(ctx context.Context, platform domain.Platform, limit int, sortKey string) ([]domain.CandidateItem, error)
}

// Classifier labels a text with a product category.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Category, error)
}

// ContentAnalyzer turns a content item into a product idea.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, item domain.CandidateItem, platform domain.Platform) (domain.AnalysisResult, error)
}

// ProductSearch finds marketplace products matching an analysis.
type ProductSearch interface {
	Search(ctx context.Context, analysis domain.Analysis) ([]domain.ProductMatch, error)
}

// RecommendationSink persists a finished batch.
type RecommendationSink interface {
	BulkInsert(ctx context.Context, records []domain.EnrichedRecommendation) (domain.InsertResult, error)
}

// Notifier announces a persisted batch (Telegram, message broker, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, runID string, recs []domain.EnrichedRecommendation) error
}

// Throttle paces outbound enrichment calls.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
