package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/grading"
)

// statsSnapshotTTL bounds how stale a cached snapshot can get between
// worker flushes.
const statsSnapshotTTL = 30 * time.Second

// CachedStats serves exam statistics from a short-lived Redis snapshot. The
// stats worker deletes the snapshot whenever it folds in new submissions.
type CachedStats struct {
	source StatsReader
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewCachedStats wraps source with a Redis snapshot.
func NewCachedStats(source StatsReader, rdb *redis.Client, log zerolog.Logger) *CachedStats {
	return &CachedStats{
		source: source,
		rdb:    rdb,
		log:    log.With().Str("component", "stats_cache").Logger(),
	}
}

// Load returns the statistics of examKey.
func (c *CachedStats) Load(ctx context.Context, examKey string) (map[string]grading.ProblemStats, error) {
	key := config.CacheKey.ExamStatsKey(examKey)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var stats map[string]grading.ProblemStats
		if jerr := json.Unmarshal(raw, &stats); jerr == nil {
			return stats, nil
		}
		c.log.Warn().Str("exam_id", examKey).Msg("Discarding unreadable stats snapshot")
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("exam_id", examKey).Msg("Stats snapshot read failed")
	}

	stats, err := c.source.Load(ctx, examKey)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, key, raw, statsSnapshotTTL).Err(); err != nil {
			c.log.Warn().Err(err).Str("exam_id", examKey).Msg("Stats snapshot write failed")
		}
	}
	return stats, nil
}
