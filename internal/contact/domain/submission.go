package domain

import (
	"strings"
	"time"
)

// Submission is one contact-form record. It is immutable once persisted.
type Submission struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Message     string
	SubmittedAt time.Time
}

// ContactInput is the caller-supplied part of a Submission.
type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Validate reports ErrValidation when any field is empty or whitespace-only.
// Values are checked trimmed but never rewritten.
func (in ContactInput) Validate() error {
	for _, field := range []string{in.Name, in.Email, in.Phone, in.Message} {
		if strings.TrimSpace(field) == "" {
			return ErrValidation
		}
	}
	return nil
}

// NewSubmission builds a Submission from validated input, keeping the values as sent.
func NewSubmission(in ContactInput, now time.Time) (*Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Submission{
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Message:     in.Message,
		SubmittedAt: now,
	}, nil
}
