//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/stemsi/exstem-portal/internal/database"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgc, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("exstem_portal"),
		postgres.WithUsername("exstem"),
		postgres.WithPassword("exstem_secret"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Printf("start postgres: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = testcontainers.TerminateContainer(pgc) }()

		dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("connection string: %v\n", err)
			return 1
		}
		if err := database.MigrateUp(dsn); err != nil {
			fmt.Printf("migrate: %v\n", err)
			return 1
		}
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			fmt.Printf("pool: %v\n", err)
			return 1
		}
		defer pool.Close()

		return m.Run()
	}()
	os.Exit(code)
}

func createUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	if err := repository.NewUserRepository(pool).Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserRepository_Duplicate(t *testing.T) {
	createUser(t, "2230001")

	u := &model.User{Username: "2230001", Email: "dup@example.com", PasswordHash: "x"}
	err := repository.NewUserRepository(pool).Create(context.Background(), u)
	if !errors.Is(err, repository.ErrUserExists) {
		t.Errorf("Create() error = %v, want ErrUserExists", err)
	}
}

func TestSubmissionRepository_AtMostOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSubmissionRepository(pool)
	u := createUser(t, "2230002")

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := &model.Submission{
				UserID:   u.ID,
				Username: u.Username,
				ExamKey:  "223_race",
				Answers:  grading.RawAnswers{"1": fmt.Sprintf("%d", i)},
				Report:   grading.Report{Scores: map[string]float64{"1": float64(i)}, Total: float64(i)},
			}
			err := repo.Create(ctx, sub)
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
			case !errors.Is(err, repository.ErrAlreadySubmitted):
				t.Errorf("Create() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}

	got, err := repo.Get(ctx, u.ID, "223_race")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Report.Total != got.Report.Score("1") {
		t.Errorf("stored report is inconsistent: %+v", got.Report)
	}
	if time.Since(got.SubmittedAt) > time.Minute {
		t.Errorf("SubmittedAt = %v", got.SubmittedAt)
	}
}

func TestSubmissionRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSubmissionRepository(pool)

	for i := 0; i < 3; i++ {
		u := createUser(t, fmt.Sprintf("224000%d", i))
		sub := &model.Submission{
			UserID:   u.ID,
			Username: u.Username,
			ExamKey:  "224_list",
			Answers:  grading.RawAnswers{},
			Report:   grading.Report{Scores: map[string]float64{}, Total: float64(i)},
		}
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, total, err := repo.ListByExam(ctx, "224_list", 2, 0)
	if err != nil {
		t.Fatalf("ListByExam() error = %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("total = %d, page = %d; want 3 and 2", total, len(page))
	}

	if err := repo.Delete(ctx, page[0].UserID, "224_list"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, page[0].UserID, "224_list"); !errors.Is(err, repository.ErrSubmissionNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSubmissionNotFound", err)
	}
	if _, err := repo.Get(ctx, page[0].UserID, "224_list"); !errors.Is(err, repository.ErrSubmissionNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
}

func TestDraftRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDraftRepository(pool)
	u := createUser(t, "2230003")

	if err := repo.Upsert(ctx, u.ID, "223_draft", "1", `"A"`); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, u.ID, "223_draft", "1", `["A", "C"]`); err != nil {
		t.Fatalf("Upsert() overwrite error = %v", err)
	}
	if err := repo.Upsert(ctx, u.ID, "223_draft", "3", `{"3-1": "7"}`); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.List(ctx, u.ID, "223_draft")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got["1"] != `["A", "C"]` {
		t.Errorf("List() = %v", got)
	}

	if err := repo.DeleteByExam(ctx, u.ID, "223_draft"); err != nil {
		t.Fatalf("DeleteByExam() error = %v", err)
	}
	if got, _ := repo.List(ctx, u.ID, "223_draft"); len(got) != 0 {
		t.Errorf("List() after delete = %v", got)
	}
}

func TestStatsRepository_ApplyAccumulates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStatsRepository(pool)

	batch := []*model.StatsEvent{
		{UserID: 1, ExamKey: "223_stats", Outcomes: []grading.Outcome{
			{ProblemID: "1", Picked: []string{"B"}, FullCredit: true},
			{ProblemID: "3"},
		}},
		{UserID: 2, ExamKey: "223_stats", Outcomes: []grading.Outcome{
			{ProblemID: "1", Picked: []string{"A"}},
			{ProblemID: "3", FullCredit: true},
		}},
	}
	if err := repo.Apply(ctx, batch); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := repo.Apply(ctx, batch[:1]); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	stats, err := repo.Load(ctx, "223_stats")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p1 := stats["1"]
	if p1.Attempts != 3 || p1.FullCredit != 2 || p1.Picks["B"] != 2 || p1.Picks["A"] != 1 {
		t.Errorf("problem 1 = %+v", p1)
	}
	if p3 := stats["3"]; p3.Attempts != 3 || p3.FullCredit != 1 {
		t.Errorf("problem 3 = %+v", p3)
	}
}
