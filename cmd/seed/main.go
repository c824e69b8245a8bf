package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
	"github.com/sngm3741/contact-form-services/api/internal/infrastructure/store"
	"github.com/sngm3741/contact-form-services/api/internal/logger"
)

type seedOptions struct {
	envName    string
	count      int
	randomSeed int64
	spread     time.Duration
}

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Barbara", "Ken", "Margaret", "Dennis", "Frances", "Yukihiro", "Hedy"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Liskov", "Thompson", "Hamilton", "Ritchie", "Allen", "Matsumoto", "Lamarr"}
	topics     = []string{
		"I'd love to talk about a freelance project.",
		"Are you available for a short consulting call next week?",
		"Your portfolio site is great. How did you build the contact form?",
		"We have an opening on our platform team that might interest you.",
		"Quick question about the open-source library you maintain.",
	}
)

func main() {
	opts := parseFlags()

	if err := loadEnvFiles(opts.envName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	repo, closeStore, err := store.Open(ctx, cfg, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		_ = closeStore(context.Background())
	}()

	rng := rand.New(rand.NewSource(opts.randomSeed))
	submissions, err := generateSubmissions(rng, opts.count, time.Now().UTC(), opts.spread)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate submissions")
	}

	for _, submission := range submissions {
		if err := repo.Create(ctx, submission); err != nil {
			log.Fatal().Err(err).Msg("failed to insert submission")
		}
		stored, err := repo.FindByID(ctx, submission.ID)
		if err != nil {
			log.Fatal().Err(err).Str("submission_id", submission.ID).Msg("inserted submission could not be read back")
		}
		log.Debug().Str("submission_id", stored.ID).Str("email", stored.Email).Msg("seeded submission")
	}

	log.Info().
		Int("count", len(submissions)).
		Int64("seed", opts.randomSeed).
		Str("driver", cfg.StoreDriver).
		Msg("seed completed")
}

func parseFlags() seedOptions {
	var opts seedOptions
	flag.StringVar(&opts.envName, "env", "local", "env file name under ../env (e.g. local, staging)")
	flag.IntVar(&opts.count, "count", 20, "number of submissions to insert")
	flag.DurationVar(&opts.spread, "spread", 30*24*time.Hour, "how far back submittedAt may go")
	flag.Int64Var(&opts.randomSeed, "seed", time.Now().UnixNano(), "random seed for reproducible data")
	flag.Parse()
	return opts
}

// loadEnvFiles loads shared.env then <env>.env; missing files are skipped.
func loadEnvFiles(envName string) error {
	base := filepath.Clean(filepath.Join("..", "env"))
	files := []string{
		filepath.Join(base, "shared.env"),
		filepath.Join(base, fmt.Sprintf("%s.env", envName)),
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func generateSubmissions(rng *rand.Rand, count int, now time.Time, spread time.Duration) ([]*domain.Submission, error) {
	if count <= 0 {
		return nil, errors.New("count must be at least 1")
	}

	out := make([]*domain.Submission, 0, count)
	for i := 0; i < count; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]

		var offset time.Duration
		if spread > 0 {
			offset = time.Duration(rng.Int63n(int64(spread)))
		}

		submission, err := domain.NewSubmission(domain.ContactInput{
			Name:    first + " " + last,
			Email:   fmt.Sprintf("%s.%s+%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Phone:   fmt.Sprintf("555-%04d", rng.Intn(10000)),
			Message: topics[rng.Intn(len(topics))],
		}, now.Add(-offset))
		if err != nil {
			return nil, err
		}
		out = append(out, submission)
	}
	return out, nil
}
