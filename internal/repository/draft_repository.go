package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DraftRepository persists autosaved answers so they survive a Redis flush.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// Upsert stores one autosaved answer. answer must be a JSON document.
func (r *DraftRepository) Upsert(ctx context.Context, userID int, examKey, problemID, answer string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO draft_answers (user_id, exam_id, problem_id, answer)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (user_id, exam_id, problem_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		userID, examKey, problemID, answer,
	)
	return err
}

// List returns the autosaved answers of a user for an exam as raw JSON
// documents keyed by problem id.
func (r *DraftRepository) List(ctx context.Context, userID int, examKey string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT problem_id, answer::text FROM draft_answers
		 WHERE user_id = $1 AND exam_id = $2`, userID, examKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var qid, ans string
		if err := rows.Scan(&qid, &ans); err != nil {
			return nil, err
		}
		out[qid] = ans
	}
	return out, rows.Err()
}

// DeleteByExam removes the autosaved answers of a user for an exam.
func (r *DraftRepository) DeleteByExam(ctx context.Context, userID int, examKey string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM draft_answers WHERE user_id = $1 AND exam_id = $2`, userID, examKey)
	return err
}
