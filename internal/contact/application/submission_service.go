package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
	"github.com/sngm3741/contact-form-services/api/internal/metrics"
)

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultNotifyTimeout = 10 * time.Second
)

// ServiceConfig defines dependencies required by the submission service.
type ServiceConfig struct {
	Repository    SubmissionRepository
	Sender        NotificationSender
	Policy        domain.NotificationPolicy
	Logger        zerolog.Logger
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type submissionService struct {
	repo          SubmissionRepository
	sender        NotificationSender
	policy        domain.NotificationPolicy
	logger        zerolog.Logger
	storeTimeout  time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewSubmissionService wires the submit use-case.
func NewSubmissionService(cfg ServiceConfig) SubmissionService {
	policy := cfg.Policy
	if policy == "" {
		policy = domain.PolicyBestEffort
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &submissionService{
		repo:          cfg.Repository,
		sender:        cfg.Sender,
		policy:        policy,
		logger:        cfg.Logger.With().Str("component", "submission_service").Logger(),
		storeTimeout:  storeTimeout,
		notifyTimeout: notifyTimeout,
		now:           now,
	}
}

func (s *submissionService) Policy() domain.NotificationPolicy {
	return s.policy
}

func (s *submissionService) Submit(ctx context.Context, cmd SubmitContactCommand) (*SubmitResult, error) {
	submission, err := domain.NewSubmission(domain.ContactInput{
		Name:    cmd.Name,
		Email:   cmd.Email,
		Phone:   cmd.Phone,
		Message: cmd.Message,
	}, s.now())
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if err := s.persist(ctx, submission); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("persist_failed").Inc()
		s.logger.Error().Err(err).Msg("failed to save contact submission")
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	s.logger.Info().Str("submission_id", submission.ID).Msg("contact submission saved")

	result := &SubmitResult{Submission: submission}

	notifyErr := s.notify(ctx, *submission)
	if notifyErr == nil {
		metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
		s.logger.Info().Str("submission_id", submission.ID).Str("transport", s.sender.Name()).Msg("notification sent")
		return result, nil
	}

	s.logger.Error().
		Err(notifyErr).
		Str("submission_id", submission.ID).
		Str("transport", s.sender.Name()).
		Str("reason", string(domain.ReasonOf(notifyErr))).
		Str("policy", string(s.policy)).
		Msg("notification failed")

	if s.policy == domain.PolicyStrict {
		metrics.SubmissionsTotal.WithLabelValues("notify_failed").Inc()
		return result, notifyErr
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	result.NotifyErr = notifyErr
	return result, nil
}

func (s *submissionService) persist(ctx context.Context, submission *domain.Submission) error {
	if s.repo == nil {
		return errors.New("submission repository is not configured")
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	return s.repo.Create(ctx, submission)
}

// notify never lets a sender failure escape as anything but a NotificationError.
func (s *submissionService) notify(ctx context.Context, submission domain.Submission) (err error) {
	if s.sender == nil {
		return domain.NewNotificationError("none", domain.ReasonUnknown, errors.New("notification sender is not configured"))
	}
	transport := s.sender.Name()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = domain.NewNotificationError(transport, domain.ReasonUnknown, fmt.Errorf("sender panicked: %v", recovered))
		}
		status := "sent"
		if err != nil {
			status = "failed"
		}
		metrics.NotificationsTotal.WithLabelValues(transport, status).Inc()
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	start := time.Now()
	sendErr := s.sender.Send(ctx, submission)
	metrics.NotificationDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	if sendErr == nil {
		return nil
	}

	var notifyErr *domain.NotificationError
	if errors.As(sendErr, &notifyErr) {
		return sendErr
	}
	return domain.NewNotificationError(transport, domain.ReasonUnknown, sendErr)
}
