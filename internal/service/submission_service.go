package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/repository"
	"github.com/stemsi/exstem-portal/internal/response"
)

// Submission errors.
var (
	ErrAlreadySubmitted   = repository.ErrAlreadySubmitted
	ErrSubmissionNotFound = repository.ErrSubmissionNotFound
)

// ExamLoader supplies parsed exam definitions.
type ExamLoader interface {
	Load(ctx context.Context, key string) (*grading.Exam, error)
	KeysForCohort(cohort string) ([]string, error)
}

// SubmissionStore persists graded submissions, at most one per (user, exam).
type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	Get(ctx context.Context, userID int, examKey string) (*model.Submission, error)
	ListByUser(ctx context.Context, userID int) (map[string]*model.Submission, error)
	ListByExam(ctx context.Context, examKey string, limit, offset int) ([]model.Submission, int, error)
	Delete(ctx context.Context, userID int, examKey string) error
}

// StatsReader loads the aggregated answer statistics of an exam.
type StatsReader interface {
	Load(ctx context.Context, examKey string) (map[string]grading.ProblemStats, error)
}

// Student identifies the caller of a student operation.
type Student struct {
	ID       int
	Username string
	Cohort   string
}

// SubmissionService grades answer sheets and manages submissions.
type SubmissionService struct {
	exams ExamLoader
	store SubmissionStore
	stats StatsReader
	queue Queue
	log   zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(exams ExamLoader, store SubmissionStore, stats StatsReader, queue Queue, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		exams: exams,
		store: store,
		stats: stats,
		queue: queue,
		log:   log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit grades answers for examKey and stores the result. A second
// submission for the same exam returns ErrAlreadySubmitted and leaves the
// first untouched.
func (s *SubmissionService) Submit(ctx context.Context, st Student, examKey string, answers grading.RawAnswers) (*model.Submission, error) {
	exam, err := s.exams.Load(ctx, examKey)
	if err != nil {
		return nil, err
	}

	report, err := grading.Grade(exam, answers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExamDocument, err)
	}
	if answers == nil {
		answers = grading.RawAnswers{}
	}

	sub := &model.Submission{
		UserID:   st.ID,
		Username: st.Username,
		ExamKey:  examKey,
		Answers:  answers,
		Report:   *report,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	event := &model.StatsEvent{
		UserID:   st.ID,
		ExamKey:  examKey,
		Outcomes: grading.Outcomes(exam, answers, report),
	}
	if err := s.queue.Enqueue(ctx, config.WorkerKey.SubmissionStatsQueue, event); err != nil {
		s.log.Warn().Err(err).Int("user_id", st.ID).Str("exam_id", examKey).Msg("Failed to queue stats event")
	}

	s.log.Info().
		Int("user_id", st.ID).
		Str("exam_id", examKey).
		Float64("total", report.Total).
		Msg("Exam submitted and graded")
	return sub, nil
}

// Status reports the caller's submission for examKey, if any.
func (s *SubmissionService) Status(ctx context.Context, userID int, examKey string) (*model.StatusResponse, error) {
	sub, err := s.store.Get(ctx, userID, examKey)
	if errors.Is(err, ErrSubmissionNotFound) {
		return &model.StatusResponse{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.StatusResponse{
		Found:   true,
		Answers: sub.Answers,
		Scores:  sub.Report.Scores,
		Total:   sub.Report.Total,
	}, nil
}

// Solution merges the exam with the caller's submission. Live statistics
// replace the static option percentages when available.
func (s *SubmissionService) Solution(ctx context.Context, userID int, examKey string) (*grading.Review, error) {
	sub, err := s.store.Get(ctx, userID, examKey)
	if err != nil {
		return nil, err
	}
	exam, err := s.exams.Load(ctx, examKey)
	if err != nil {
		return nil, err
	}

	review := grading.BuildReview(exam, sub.Answers, &sub.Report)

	if s.stats != nil {
		stats, err := s.stats.Load(ctx, examKey)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examKey).Msg("Failed to load exam statistics")
		} else {
			review.ApplyStats(stats)
		}
	}
	return review, nil
}

// ListForStudent lists the exams of the caller's cohort with their
// submission state.
func (s *SubmissionService) ListForStudent(ctx context.Context, st Student) ([]model.ExamSummary, error) {
	keys, err := s.exams.KeysForCohort(st.Cohort)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListByUser(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	out := make([]model.ExamSummary, 0, len(keys))
	for _, key := range keys {
		exam, err := s.exams.Load(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", key).Msg("Skipping unreadable exam")
			continue
		}
		cohort, name := SplitExamKey(key)
		sum := model.ExamSummary{
			Key:      key,
			Name:     name,
			Cohort:   cohort,
			Problems: len(exam.Problems()),
			MaxTotal: grading.Round2(exam.MaxTotal()),
		}
		if sub, ok := subs[key]; ok {
			total := sub.Report.Total
			sum.Submitted = true
			sum.Total = &total
		}
		out = append(out, sum)
	}
	return out, nil
}

// Results returns one page of an exam's results.
func (s *SubmissionService) Results(ctx context.Context, examKey string, q model.ResultsQuery) ([]model.ResultRow, *response.Pagination, error) {
	q.Normalize()
	subs, total, err := s.store.ListByExam(ctx, examKey, q.PerPage, q.Offset())
	if err != nil {
		return nil, nil, err
	}

	rows := make([]model.ResultRow, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, model.ResultRow{
			UserID:      sub.UserID,
			Username:    sub.Username,
			Total:       sub.Report.Total,
			Scores:      sub.Report.Scores,
			SubmittedAt: sub.SubmittedAt,
		})
	}
	return rows, response.NewPagination(q.Page, q.PerPage, total), nil
}

// AllSubmissions returns every submission of an exam ordered by username.
func (s *SubmissionService) AllSubmissions(ctx context.Context, examKey string) ([]model.Submission, error) {
	subs, _, err := s.store.ListByExam(ctx, examKey, 0, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Username < subs[j].Username })
	return subs, nil
}

// Reset deletes a submission so the student can sit the exam again.
func (s *SubmissionService) Reset(ctx context.Context, userID int, examKey string) error {
	if err := s.store.Delete(ctx, userID, examKey); err != nil {
		return err
	}
	s.log.Info().Int("user_id", userID).Str("exam_id", examKey).Msg("Submission reset")
	return nil
}

// ExamForExport loads an exam definition for report generation.
func (s *SubmissionService) ExamForExport(ctx context.Context, examKey string) (*grading.Exam, error) {
	return s.exams.Load(ctx, examKey)
}
