package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/repository"
)

// Exam lookup errors.
var (
	ErrExamNotFound        = repository.ErrExamNotFound
	ErrInvalidExamDocument = repository.ErrInvalidExamDocument
)

// ExamCatalogService serves exam definitions from EXAM_DATA_DIR through a
// Redis cache. Exam keys have the form <cohort>_<name>.
type ExamCatalogService struct {
	files *repository.ExamFileRepository
	rdb   *redis.Client
	cfg   *config.Config
	log   zerolog.Logger
}

// NewExamCatalogService creates a new ExamCatalogService.
func NewExamCatalogService(files *repository.ExamFileRepository, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *ExamCatalogService {
	return &ExamCatalogService{
		files: files,
		rdb:   rdb,
		cfg:   cfg,
		log:   log.With().Str("component", "exam_catalog").Logger(),
	}
}

// Load returns the parsed definition of key, reading the file on a cache miss.
func (s *ExamCatalogService) Load(ctx context.Context, key string) (*grading.Exam, error) {
	vals, err := s.rdb.MGet(ctx,
		config.CacheKey.ExamFormatKey(key),
		config.CacheKey.ExamDocumentKey(key),
	).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", key).Msg("Exam cache read failed, falling back to file")
	} else if format, ok := vals[0].(string); ok {
		if data, ok := vals[1].(string); ok {
			exam, err := repository.ParseExamDocument(repository.ExamFormat(format), []byte(data))
			if err == nil {
				return exam, nil
			}
			s.log.Warn().Err(err).Str("exam_id", key).Msg("Cached exam unreadable, reloading")
		}
	}

	exam, _, err := s.warm(ctx, key)
	return exam, err
}

// Refresh re-reads key from disk and replaces the cached copy.
func (s *ExamCatalogService) Refresh(ctx context.Context, key string) (*grading.Exam, error) {
	exam, cached, err := s.warm(ctx, key)
	if err != nil {
		return nil, err
	}
	if !cached {
		return exam, errors.New("exam reloaded but cache write failed")
	}
	return exam, nil
}

func (s *ExamCatalogService) warm(ctx context.Context, key string) (*grading.Exam, bool, error) {
	doc, err := s.files.Read(key)
	if err != nil {
		return nil, false, err
	}
	exam, err := doc.Parse()
	if err != nil {
		return nil, false, fmt.Errorf("exam %s: %w", key, err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamFormatKey(key), string(doc.Format), s.cfg.ExamCacheTTL)
	pipe.Set(ctx, config.CacheKey.ExamDocumentKey(key), doc.Data, s.cfg.ExamCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", key).Msg("Failed to cache exam")
		return exam, false, nil
	}

	s.log.Debug().
		Str("exam_id", key).
		Int("problems", len(exam.Problems())).
		Msg("Exam cached")
	return exam, true, nil
}

// Prewarm loads every exam on disk into the cache. Broken definitions are
// logged and skipped.
func (s *ExamCatalogService) Prewarm(ctx context.Context) error {
	keys, err := s.files.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		s.log.Info().Str("dir", s.files.Dir()).Msg("No exam definitions to prewarm")
		return nil
	}

	warmed := 0
	for _, key := range keys {
		if _, _, err := s.warm(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("exam_id", key).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(keys)).
		Msg("Prewarming complete")
	return nil
}

// Keys lists every exam key on disk.
func (s *ExamCatalogService) Keys() ([]string, error) {
	return s.files.Keys()
}

// KeysForCohort lists the exam keys available to a cohort.
func (s *ExamCatalogService) KeysForCohort(cohort string) ([]string, error) {
	keys, err := s.files.Keys()
	if err != nil {
		return nil, err
	}
	prefix := cohort + "_"
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// ExamKey joins a cohort and an exam name.
func ExamKey(cohort, name string) string {
	return cohort + "_" + name
}

// SplitExamKey separates a key into cohort and exam name.
func SplitExamKey(key string) (cohort, name string) {
	cohort, name, ok := strings.Cut(key, "_")
	if !ok {
		return "", key
	}
	return cohort, name
}
