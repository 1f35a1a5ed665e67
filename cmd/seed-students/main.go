package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/database"
	"github.com/stemsi/exstem-portal/internal/logger"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/repository"
	"github.com/stemsi/exstem-portal/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
}

func main() {
	var (
		cohort   string
		count    int
		password string
	)
	flag.StringVar(&cohort, "cohort", "223", "Cohort prefix for generated usernames")
	flag.IntVar(&count, "count", 50, "Number of students to create")
	flag.StringVar(&password, "password", "stemsijaya", "Password for every seeded account")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if len(cohort) != cfg.CohortDigits {
		log.Fatal().Str("cohort", cohort).Int("digits", cfg.CohortDigits).Msg("Cohort length must match COHORT_DIGITS")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	authService := service.NewAuthService(cfg, userRepo, nil, log)

	// Every seeded account shares one password, so hash once.
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Printf("=== Seeding %d students for cohort %s ===\n", count, cohort)

	created, skipped := 0, 0
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%04d", cohort, i+1)
		user := &model.User{
			Username:     username,
			Email:        username + "@students.example.com",
			Name:         names[i%len(names)],
			Role:         model.RoleStudent,
			PasswordHash: hash,
		}

		err := userRepo.Create(ctx, user)
		switch {
		case errors.Is(err, repository.ErrUserExists):
			skipped++
		case err != nil:
			fmt.Printf("Error creating student %s: %v\n", username, err)
		default:
			created++
			if created%10 == 0 {
				fmt.Printf("Created %d students...\n", created)
			}
		}
	}

	fmt.Printf("\nSeed completed! Added %d/%d students (%d already existed).\n", created, count, skipped)
}
