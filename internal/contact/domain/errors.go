package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation means a required field was missing or empty.
	ErrValidation = errors.New("all fields are required")
	// ErrPersistence means the submission could not be durably stored.
	ErrPersistence = errors.New("failed to persist submission")
	// ErrNotification means the owner could not be notified.
	ErrNotification = errors.New("failed to send notification")
	// ErrNotFound is returned by repositories when no submission matches.
	ErrNotFound = errors.New("submission not found")
)

// FailureReason classifies why a notification failed.
type FailureReason string

const (
	ReasonUnavailable  FailureReason = "unavailable"
	ReasonUnauthorized FailureReason = "unauthorized"
	ReasonRejected     FailureReason = "rejected"
	ReasonUnknown      FailureReason = "unknown"
)

// NotificationError is returned by senders. It matches ErrNotification via errors.Is.
type NotificationError struct {
	Transport string
	Reason    FailureReason
	Err       error
}

func (e *NotificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s notification failed (%s)", e.Transport, e.Reason)
	}
	return fmt.Sprintf("%s notification failed (%s): %v", e.Transport, e.Reason, e.Err)
}

func (e *NotificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotification}
	}
	return []error{ErrNotification, e.Err}
}

// NewNotificationError wraps err with a transport name and reason.
func NewNotificationError(transport string, reason FailureReason, err error) *NotificationError {
	if reason == "" {
		reason = ReasonUnknown
	}
	return &NotificationError{Transport: transport, Reason: reason, Err: err}
}

// ReasonOf extracts the classified reason from err, or ReasonUnknown.
func ReasonOf(err error) FailureReason {
	var notifyErr *NotificationError
	if errors.As(err, &notifyErr) && notifyErr.Reason != "" {
		return notifyErr.Reason
	}
	return ReasonUnknown
}
