package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/repository"
)

const (
	StatsBatchSize    = 50
	StatsBatchTimeout = 2 * time.Second
	StatsPollTimeout  = 1 * time.Second
)

// StatsWorker folds graded submissions into per-problem statistics and then
// discards the submitters' autosave buffers.
type StatsWorker struct {
	stats  *repository.StatsRepository
	drafts *repository.DraftRepository
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewStatsWorker creates a new StatsWorker.
func NewStatsWorker(stats *repository.StatsRepository, drafts *repository.DraftRepository, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		stats:  stats,
		drafts: drafts,
		rdb:    rdb,
		log:    log.With().Str("component", "stats_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what is left.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	batch := make([]*model.StatsEvent, 0, StatsBatchSize)
	lastFlush := time.Now()

	for {
		if shouldFlush(len(batch), time.Since(lastFlush)) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, StatsPollTimeout, config.WorkerKey.SubmissionStatsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.StatsEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &ev)
		}
	}
}

func shouldFlush(size int, sinceLast time.Duration) bool {
	return size > 0 && (size >= StatsBatchSize || sinceLast >= StatsBatchTimeout)
}

// ----------------------------------------------------------------
// Batch apply with per-event fallback
// ----------------------------------------------------------------

func (w *StatsWorker) flushSafe(ctx context.Context, batch []*model.StatsEvent) {
	if len(batch) == 0 {
		return
	}

	if err := w.stats.Apply(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk stats update failed, using fallback")

		applied := make([]*model.StatsEvent, 0, len(batch))
		for _, ev := range batch {
			if err := w.stats.Apply(ctx, []*model.StatsEvent{ev}); err != nil {
				w.log.Error().Err(err).
					Int("user_id", ev.UserID).
					Str("exam_id", ev.ExamKey).
					Msg("single stats update failed, requeueing")
				raw, _ := json.Marshal(ev)
				w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.SubmissionStatsQueue, raw)
				continue
			}
			applied = append(applied, ev)
		}
		w.clearBuffers(ctx, applied)
		return
	}

	w.clearBuffers(ctx, batch)
}

// ----------------------------------------------------------------
// Cleanup of autosave buffers and stale stats snapshots
// ----------------------------------------------------------------

func (w *StatsWorker) clearBuffers(ctx context.Context, batch []*model.StatsEvent) {
	if len(batch) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for _, key := range clearKeys(batch) {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear autosave buffers")
	}

	for _, ev := range batch {
		if err := w.drafts.DeleteByExam(ctx, ev.UserID, ev.ExamKey); err != nil {
			w.log.Warn().Err(err).
				Int("user_id", ev.UserID).
				Str("exam_id", ev.ExamKey).
				Msg("Failed to delete stored drafts")
		}
	}
}

// clearKeys lists the Redis keys a flushed batch invalidates: every
// submitter's draft hash plus each touched exam's stats snapshot.
func clearKeys(batch []*model.StatsEvent) []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, ev := range batch {
		add(config.CacheKey.DraftAnswersKey(ev.ExamKey, ev.UserID))
	}
	for _, ev := range batch {
		add(config.CacheKey.ExamStatsKey(ev.ExamKey))
	}
	return keys
}
