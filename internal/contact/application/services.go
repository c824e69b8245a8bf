package application

import (
	"context"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// SubmissionRepository is the durable store for submissions.
type SubmissionRepository interface {
	// Create inserts the submission once and sets its ID.
	Create(ctx context.Context, submission *domain.Submission) error
	FindByID(ctx context.Context, id string) (*domain.Submission, error)
	Ping(ctx context.Context) error
}

// NotificationSender delivers one message describing a submission to the site owner.
// Send returns nil on success or a *domain.NotificationError.
type NotificationSender interface {
	Name() string
	Send(ctx context.Context, submission domain.Submission) error
}

// SubmitContactCommand carries the raw form fields.
type SubmitContactCommand struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// SubmitResult describes an accepted submission.
// NotifyErr is set when the best-effort policy swallowed a notification failure.
type SubmitResult struct {
	Submission *domain.Submission
	NotifyErr  error
}

// SubmissionService validates, persists and notifies.
type SubmissionService interface {
	Submit(ctx context.Context, cmd SubmitContactCommand) (*SubmitResult, error)
	Policy() domain.NotificationPolicy
}
