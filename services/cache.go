package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"safar/metrics"
)

const cacheKeyPrefix = "safar:budget:"

// CachedPredictor is a read-through redis cache in front of another
// predictor. Redis failures are logged and bypass the cache.
type CachedPredictor struct {
	next   BudgetPredictor
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

//nolint:gocritic // zerolog.Logger is passed by value by design
func NewCachedPredictor(next BudgetPredictor, rdb redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *CachedPredictor {
	return &CachedPredictor{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "prediction_cache").Logger(),
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (p *CachedPredictor) PredictBudget(ctx context.Context, f TripFeatures) (Prediction, error) {
	f = f.WithDefaults()
	key := CacheKey(f)

	raw, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pred Prediction
		if jerr := json.Unmarshal(raw, &pred); jerr == nil {
			metrics.RecordCache("prediction", true)
			pred.Source = SourceCache
			return pred, nil
		}
		p.logger.Warn().Str("key", key).Msg("discarding malformed cache entry")
	case errors.Is(err, redis.Nil):
	default:
		p.logger.Warn().Err(err).Msg("cache read failed")
	}
	metrics.RecordCache("prediction", false)

	pred, err := p.next.PredictBudget(ctx, f)
	if err != nil {
		return Prediction{}, err
	}

	// Estimates are not cached so the model is retried once it recovers.
	if pred.Source == SourceModel {
		if b, jerr := json.Marshal(pred); jerr == nil {
			if serr := p.rdb.Set(ctx, key, b, p.ttl).Err(); serr != nil {
				p.logger.Warn().Err(serr).Msg("cache write failed")
			}
		}
	}
	return pred, nil
}

// CacheKey identifies a feature set independent of case and surrounding
// whitespace.
func CacheKey(f TripFeatures) string {
	norm := fmt.Sprintf("%s|%d|%d|%s|%s|%s|%.1f",
		strings.ToLower(strings.TrimSpace(f.Destination)),
		f.NumDays,
		f.NumPeople,
		strings.ToLower(f.Season),
		strings.ToLower(f.ComfortLevel),
		strings.ToLower(f.TripType),
		f.AirportDistanceKm,
	)
	sum := sha256.Sum256([]byte(norm))
	return cacheKeyPrefix + hex.EncodeToString(sum[:12])
}
