package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendCurator/internal/config"
	"TrendCurator/internal/domain"
	"TrendCurator/internal/ports"
)

const keyPrefix = "trendcurator:category:"

// store is the subset of *redis.Client the cache needs.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Classifier memoizes category labels by text. Redis errors are logged and the
// call goes straight to the wrapped classifier, so an outage only costs latency.
type Classifier struct {
	next   ports.Classifier
	rdb    store
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Classifier = (*Classifier)(nil)

func NewClassifier(next ports.Classifier, rdb store, ttl time.Duration, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Category, error) {
	key := cacheKey(text)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cat, ok := domain.ParseCategory(raw); ok {
			return cat, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("category cache read failed", "error", err)
	}

	cat, err := c.next.Classify(ctx, text)
	if err != nil {
		return cat, err
	}
	// Unknown labels are left to the caller's fallback and never cached.
	if _, ok := domain.ParseCategory(string(cat)); !ok {
		return cat, nil
	}

	if err := c.rdb.Set(ctx, key, string(cat), c.ttl).Err(); err != nil {
		c.logger.Warn("category cache write failed", "error", err)
	}
	return cat, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])
}
