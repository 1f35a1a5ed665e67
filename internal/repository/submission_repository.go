package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
)

// SubmissionRepository persists graded submissions in PostgreSQL. The
// UNIQUE (user_id, exam_id) constraint makes Create an atomic
// check-and-insert.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts s unless the user already submitted the exam, in which case
// ErrAlreadySubmitted is returned and nothing is written.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	scores, err := json.Marshal(s.Report)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO submissions (id, user_id, username, exam_id, answers, scores, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING submitted_at`,
		s.ID, s.UserID, s.Username, s.ExamKey, answers, scores, s.Report.Total,
	).Scan(&s.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadySubmitted
	}
	return err
}

// Get returns the submission of a user for an exam.
func (r *SubmissionRepository) Get(ctx context.Context, userID int, examKey string) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, username, exam_id, answers, scores, submitted_at
		 FROM submissions WHERE user_id = $1 AND exam_id = $2`, userID, examKey)

	s, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	return s, err
}

// ListByUser returns every submission of a user, keyed by exam.
func (r *SubmissionRepository) ListByUser(ctx context.Context, userID int) (map[string]*model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, username, exam_id, answers, scores, submitted_at
		 FROM submissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*model.Submission)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out[s.ExamKey] = s
	}
	return out, rows.Err()
}

// ListByExam returns one page of an exam's submissions ordered by username,
// plus the total count.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examKey string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE exam_id = $1`, examKey,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, username, exam_id, answers, scores, submitted_at
		FROM submissions WHERE exam_id = $1 ORDER BY username`
	args := []any{examKey}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *s)
	}
	return subs, total, rows.Err()
}

// Delete removes a submission so the user may sit the exam again.
func (r *SubmissionRepository) Delete(ctx context.Context, userID int, examKey string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM submissions WHERE user_id = $1 AND exam_id = $2`, userID, examKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var (
		s       model.Submission
		answers []byte
		scores  []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Username, &s.ExamKey, &answers, &scores, &s.SubmittedAt); err != nil {
		return nil, err
	}
	a, err := grading.DecodeAnswers(answers)
	if err != nil {
		return nil, fmt.Errorf("decode stored answers: %w", err)
	}
	s.Answers = a
	if err := json.Unmarshal(scores, &s.Report); err != nil {
		return nil, fmt.Errorf("decode stored scores: %w", err)
	}
	return &s, nil
}
