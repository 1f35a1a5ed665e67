package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
)

// StatsRepository aggregates per-problem outcomes and option picks.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// statsColumns flattens events into the parallel arrays UNNEST expects.
type statsColumns struct {
	outExam, outProblem   []string
	outAttempts, outFull  []int
	pickExam, pickProblem []string
	pickLabel             []string
	pickCount             []int
}

func flatten(events []*model.StatsEvent) *statsColumns {
	type outKey struct{ exam, problem string }
	type pickKey struct{ exam, problem, label string }

	attempts := make(map[outKey][2]int)
	picks := make(map[pickKey]int)
	var outOrder []outKey
	var pickOrder []pickKey

	for _, e := range events {
		for _, o := range e.Outcomes {
			k := outKey{e.ExamKey, o.ProblemID}
			v, seen := attempts[k]
			if !seen {
				outOrder = append(outOrder, k)
			}
			v[0]++
			if o.FullCredit {
				v[1]++
			}
			attempts[k] = v

			for _, l := range o.Picked {
				pk := pickKey{e.ExamKey, o.ProblemID, l}
				if _, seen := picks[pk]; !seen {
					pickOrder = append(pickOrder, pk)
				}
				picks[pk]++
			}
		}
	}

	c := &statsColumns{}
	for _, k := range outOrder {
		c.outExam = append(c.outExam, k.exam)
		c.outProblem = append(c.outProblem, k.problem)
		c.outAttempts = append(c.outAttempts, attempts[k][0])
		c.outFull = append(c.outFull, attempts[k][1])
	}
	for _, k := range pickOrder {
		c.pickExam = append(c.pickExam, k.exam)
		c.pickProblem = append(c.pickProblem, k.problem)
		c.pickLabel = append(c.pickLabel, k.label)
		c.pickCount = append(c.pickCount, picks[k])
	}
	return c
}

// Apply folds a batch of events into the aggregates in one transaction using
// UNNEST bulk upserts.
func (r *StatsRepository) Apply(ctx context.Context, events []*model.StatsEvent) error {
	c := flatten(events)
	if len(c.outExam) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO problem_outcomes (exam_id, problem_id, attempts, full_credit)
			SELECT * FROM UNNEST($1::varchar[], $2::varchar[], $3::int[], $4::int[])
			ON CONFLICT (exam_id, problem_id) DO UPDATE
			SET attempts = problem_outcomes.attempts + EXCLUDED.attempts,
			    full_credit = problem_outcomes.full_credit + EXCLUDED.full_credit`,
			c.outExam, c.outProblem, c.outAttempts, c.outFull)
		if err != nil {
			return err
		}

		if len(c.pickExam) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO option_picks (exam_id, problem_id, label, picks)
			SELECT * FROM UNNEST($1::varchar[], $2::varchar[], $3::varchar[], $4::int[])
			ON CONFLICT (exam_id, problem_id, label) DO UPDATE
			SET picks = option_picks.picks + EXCLUDED.picks`,
			c.pickExam, c.pickProblem, c.pickLabel, c.pickCount)
		return err
	})
}

// Load returns the aggregated statistics of an exam keyed by problem id.
func (r *StatsRepository) Load(ctx context.Context, examKey string) (map[string]grading.ProblemStats, error) {
	out := make(map[string]grading.ProblemStats)

	rows, err := r.pool.Query(ctx,
		`SELECT problem_id, attempts, full_credit FROM problem_outcomes WHERE exam_id = $1`, examKey)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			id string
			st grading.ProblemStats
		)
		if err := rows.Scan(&id, &st.Attempts, &st.FullCredit); err != nil {
			rows.Close()
			return nil, err
		}
		st.Picks = make(map[string]int)
		out[id] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT problem_id, label, picks FROM option_picks WHERE exam_id = $1`, examKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, label string
			n         int
		)
		if err := rows.Scan(&id, &label, &n); err != nil {
			return nil, err
		}
		if st, ok := out[id]; ok {
			st.Picks[label] = n
		}
	}
	return out, rows.Err()
}
