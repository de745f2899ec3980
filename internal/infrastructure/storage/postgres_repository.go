package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/ports"
)

// insertBatchSize keeps a single INSERT well under Postgres' 65535 parameter limit.
const insertBatchSize = 500

var sortColumns = map[string]struct{}{
	"popularity": {},
	"likes":      {},
	"views":      {},
	"comments":   {},
	"created_at": {},
}

var recommendationColumns = []string{
	"date", "platform", "category", "trend_keyword", "product_name", "product_url",
	"thumbnail_url", "analysis", "confidence_score", "original_content_id",
}

// PostgresRepository reads the content pool and stores recommendations.
type PostgresRepository struct {
	db                  *sql.DB
	contentTable        string
	recommendationTable string
	sb                  sq.StatementBuilderType
}

var (
	_ ports.ContentPool        = (*PostgresRepository)(nil)
	_ ports.RecommendationSink = (*PostgresRepository)(nil)
)

// Open connects through the pgx database/sql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, contentTable, recommendationTable string) *PostgresRepository {
	if contentTable == "" {
		contentTable = "social_contents"
	}
	if recommendationTable == "" {
		recommendationTable = "recommendations"
	}
	return &PostgresRepository{
		db:                  db,
		contentTable:        contentTable,
		recommendationTable: recommendationTable,
		sb:                  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// FetchTop returns a platform's items ordered by sortKey descending.
func (r *PostgresRepository) FetchTop(ctx context.Context, platform domain.Platform, limit int, sortKey string) ([]domain.CandidateItem, error) {
	if r.db == nil {
		return nil, fmt.Errorf("content pool database is not configured")
	}

	query, args, err := r.fetchTopQuery(platform, limit, sortKey)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content pool: %w", err)
	}

	var items []domain.CandidateItem
	for rows.Next() {
		var (
			item     domain.CandidateItem
			platform string
			raw      []byte
		)
		if err := rows.Scan(&item.ID, &platform, &item.Text, &item.Popularity, &raw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan content: %w", err)
		}
		item.Platform = domain.Platform(platform)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &item.RawMetadata); err != nil {
				item.RawMetadata = map[string]any{"raw": string(raw)}
			}
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return items, nil
}

func (r *PostgresRepository) fetchTopQuery(platform domain.Platform, limit int, sortKey string) (string, []any, error) {
	if _, ok := sortColumns[sortKey]; !ok {
		return "", nil, fmt.Errorf("unsupported sort key %q", sortKey)
	}
	if limit <= 0 {
		return "", nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	return r.sb.
		Select("id", "platform", "COALESCE(text, '')", "COALESCE(popularity, 0)", "raw_metadata").
		From(r.contentTable).
		Where(sq.Eq{"platform": string(platform)}).
		OrderBy(sortKey + " DESC NULLS LAST").
		Limit(uint64(limit)).
		ToSql()
}

// BulkInsert writes all rows in one transaction. Rows are append-only; nothing is updated.
func (r *PostgresRepository) BulkInsert(ctx context.Context, records []domain.EnrichedRecommendation) (domain.InsertResult, error) {
	if len(records) == 0 {
		return domain.InsertResult{Success: true}, nil
	}
	if r.db == nil {
		return domain.InsertResult{}, fmt.Errorf("recommendation database is not configured")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("begin tx: %w", err)
	}

	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))

		query, args, err := r.insertQuery(records[start:end])
		if err != nil {
			_ = tx.Rollback()
			return domain.InsertResult{}, err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return domain.InsertResult{}, fmt.Errorf("insert recommendations: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		} else {
			inserted += end - start
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.InsertResult{}, fmt.Errorf("commit recommendations: %w", err)
	}

	return domain.InsertResult{Success: true, Count: inserted}, nil
}

func (r *PostgresRepository) insertQuery(records []domain.EnrichedRecommendation) (string, []any, error) {
	builder := r.sb.Insert(r.recommendationTable).Columns(recommendationColumns...)
	for _, rec := range records {
		details, err := json.Marshal(rec.Analysis)
		if err != nil {
			return "", nil, fmt.Errorf("marshal analysis for %s: %w", rec.OriginalContentID, err)
		}
		builder = builder.Values(
			rec.Date.Format(time.DateOnly),
			string(rec.Platform),
			string(rec.Category),
			rec.TrendKeyword,
			rec.ProductName,
			rec.ProductURL,
			rec.ThumbnailURL,
			string(details),
			rec.ConfidenceScore,
			rec.OriginalContentID,
		)
	}
	return builder.ToSql()
}
