package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS contact_submissions (
    id           BIGSERIAL PRIMARY KEY,
    name         TEXT        NOT NULL,
    email        TEXT        NOT NULL,
    phone        TEXT        NOT NULL,
    message      TEXT        NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS contact_submissions_submitted_at_idx
    ON contact_submissions (submitted_at DESC);`

// DB abstracts the pool operations the repository needs.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// SubmissionRepository implements application.SubmissionRepository on PostgreSQL.
type SubmissionRepository struct {
	db DB
}

// NewSubmissionRepository wraps a pool (or mock) in a repository.
func NewSubmissionRepository(db DB) (*SubmissionRepository, error) {
	if db == nil {
		return nil, errors.New("postgres repository: db cannot be nil")
	}
	return &SubmissionRepository{db: db}, nil
}

// EnsureSchema creates the submissions table when it does not exist yet.
func (r *SubmissionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createSubmissionsTable); err != nil {
		return fmt.Errorf("create contact_submissions: %w", err)
	}
	return nil
}

// Create inserts one row and assigns the generated id.
func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	// timestamptz keeps microseconds; round up so the stored time never precedes receipt
	received := submission.SubmittedAt.UTC()
	submission.SubmittedAt = received.Truncate(time.Microsecond)
	if submission.SubmittedAt.Before(received) {
		submission.SubmittedAt = submission.SubmittedAt.Add(time.Microsecond)
	}

	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO contact_submissions (name, email, phone, message, submitted_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`,
		submission.Name, submission.Email, submission.Phone, submission.Message, submission.SubmittedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	submission.ID = strconv.FormatInt(id, 10)
	return nil
}

// FindByID returns domain.ErrNotFound for unknown or malformed ids.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*domain.Submission, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var submission domain.Submission
	var rowID int64
	err = r.db.QueryRow(ctx, `
        SELECT id, name, email, phone, message, submitted_at
        FROM contact_submissions
        WHERE id = $1`,
		numericID,
	).Scan(&rowID, &submission.Name, &submission.Email, &submission.Phone, &submission.Message, &submission.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	submission.ID = strconv.FormatInt(rowID, 10)
	submission.SubmittedAt = submission.SubmittedAt.UTC()
	return &submission, nil
}

// Ping checks pool connectivity.
func (r *SubmissionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
