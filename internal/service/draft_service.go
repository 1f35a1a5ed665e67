package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/repository"
)

// ErrUnknownProblem is returned when an autosave names a problem the exam
// does not contain.
var ErrUnknownProblem = errors.New("unknown problem id")

// DraftService keeps in-progress answers in a Redis hash per (user, exam)
// and queues every change for durable storage.
type DraftService struct {
	rdb   *redis.Client
	repo  *repository.DraftRepository
	exams ExamLoader
	queue Queue
	log   zerolog.Logger
}

// NewDraftService creates a new DraftService.
func NewDraftService(rdb *redis.Client, repo *repository.DraftRepository, exams ExamLoader, queue Queue, log zerolog.Logger) *DraftService {
	return &DraftService{
		rdb:   rdb,
		repo:  repo,
		exams: exams,
		queue: queue,
		log:   log.With().Str("component", "draft_service").Logger(),
	}
}

// Autosave stores one answer. ans is the answer as a JSON document; plain
// text that is not valid JSON is stored as a JSON string.
func (s *DraftService) Autosave(ctx context.Context, userID int, examKey, problemID, ans string) error {
	exam, err := s.exams.Load(ctx, examKey)
	if err != nil {
		return err
	}
	if _, ok := exam.Find(problemID); !ok {
		return ErrUnknownProblem
	}

	doc := normalizeDraft(ans)
	if err := s.rdb.HSet(ctx, config.CacheKey.DraftAnswersKey(examKey, userID), problemID, doc).Err(); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	event := &model.DraftEvent{UserID: userID, ExamKey: examKey, QuestionID: problemID, Answer: doc}
	if err := s.queue.Enqueue(ctx, config.WorkerKey.PersistDraftsQueue, event); err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Str("exam_id", examKey).Msg("Failed to queue draft")
	}
	return nil
}

// Sheet returns the autosaved answers of a user as an answer sheet. Redis is
// authoritative; the database copy is used when the hash is gone.
func (s *DraftService) Sheet(ctx context.Context, userID int, examKey string) (grading.RawAnswers, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.DraftAnswersKey(examKey, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read drafts: %w", err)
	}
	if len(raw) == 0 && s.repo != nil {
		raw, err = s.repo.List(ctx, userID, examKey)
		if err != nil {
			return nil, fmt.Errorf("read stored drafts: %w", err)
		}
	}
	return DecodeDrafts(raw), nil
}

// DecodeDrafts turns stored JSON documents into an answer sheet.
func DecodeDrafts(raw map[string]string) grading.RawAnswers {
	sheet := make(grading.RawAnswers, len(raw))
	for qid, doc := range raw {
		a, err := grading.DecodeAnswers([]byte(`{"v":` + doc + `}`))
		if err != nil {
			sheet[qid] = doc
			continue
		}
		sheet[qid] = a["v"]
	}
	return sheet
}

func normalizeDraft(ans string) string {
	if json.Valid([]byte(ans)) {
		return ans
	}
	b, _ := json.Marshal(ans)
	return string(b)
}
