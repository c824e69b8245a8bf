package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

type fakeRepository struct {
	mu      sync.Mutex
	err     error
	created []domain.Submission
}

func (r *fakeRepository) Create(_ context.Context, submission *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	submission.ID = "sub-1"
	r.created = append(r.created, *submission)
	return nil
}

func (r *fakeRepository) FindByID(_ context.Context, id string) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.created {
		if s.ID == id {
			copied := s
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepository) Ping(context.Context) error { return nil }

type fakeSender struct {
	mu     sync.Mutex
	err    error
	panic  bool
	sent   []domain.Submission
	ctxErr error
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(ctx context.Context, submission domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErr = ctx.Err()
	s.sent = append(s.sent, submission)
	if s.panic {
		panic("boom")
	}
	return s.err
}

func newService(repo *fakeRepository, sender *fakeSender, policy domain.NotificationPolicy, now time.Time) SubmissionService {
	return NewSubmissionService(ServiceConfig{
		Repository: repo,
		Sender:     sender,
		Policy:     policy,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	})
}

var validCommand = SubmitContactCommand{Name: "Ada", Email: "ada@example.com", Phone: "555-0100", Message: "Hello"}

func TestSubmit_ValidationFailureHasNoSideEffects(t *testing.T) {
	commands := []SubmitContactCommand{
		{Email: "ada@example.com", Phone: "555-0100", Message: "Hello"},
		{Name: "Ada", Phone: "555-0100", Message: "Hello"},
		{Name: "Ada", Email: "ada@example.com", Message: "Hello"},
		{Name: "Ada", Email: "ada@example.com", Phone: "555-0100"},
		{Name: "Ada", Email: "", Phone: "555-0100", Message: "Hello"},
	}

	for _, cmd := range commands {
		repo := &fakeRepository{}
		sender := &fakeSender{}
		svc := newService(repo, sender, domain.PolicyBestEffort, time.Now())

		result, err := svc.Submit(context.Background(), cmd)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, repo.created)
		assert.Empty(t, sender.sent)
	}
}

func TestSubmit_PersistsAndNotifiesOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	repo := &fakeRepository{}
	sender := &fakeSender{}
	svc := newService(repo, sender, domain.PolicyBestEffort, now)

	result, err := svc.Submit(context.Background(), validCommand)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NoError(t, result.NotifyErr)

	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	assert.Equal(t, "Ada", stored.Name)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, "555-0100", stored.Phone)
	assert.Equal(t, "Hello", stored.Message)
	assert.Equal(t, now, stored.SubmittedAt)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "sub-1", sender.sent[0].ID)
	assert.Equal(t, "ada@example.com", sender.sent[0].Email)
}

func TestSubmit_CancelledCallerStillNotifies(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{}
	svc := newService(repo, sender, domain.PolicyStrict, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Submit(ctx, validCommand)
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
	require.Len(t, sender.sent, 1)
	assert.NoError(t, sender.ctxErr)
}

func TestSubmit_PersistenceFailureSkipsNotification(t *testing.T) {
	repo := &fakeRepository{err: errors.New("connection refused")}
	sender := &fakeSender{}
	svc := newService(repo, sender, domain.PolicyStrict, time.Now())

	result, err := svc.Submit(context.Background(), validCommand)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrNotification)
	assert.Empty(t, sender.sent)
}

func TestSubmit_NotificationFailurePolicies(t *testing.T) {
	sendErr := domain.NewNotificationError("fake", domain.ReasonUnavailable, errors.New("timeout"))

	t.Run("best effort keeps success", func(t *testing.T) {
		repo := &fakeRepository{}
		sender := &fakeSender{err: sendErr}
		svc := newService(repo, sender, domain.PolicyBestEffort, time.Now())

		result, err := svc.Submit(context.Background(), validCommand)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.ErrorIs(t, result.NotifyErr, domain.ErrNotification)
		assert.Len(t, repo.created, 1)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("strict surfaces failure", func(t *testing.T) {
		repo := &fakeRepository{}
		sender := &fakeSender{err: sendErr}
		svc := newService(repo, sender, domain.PolicyStrict, time.Now())

		result, err := svc.Submit(context.Background(), validCommand)
		assert.ErrorIs(t, err, domain.ErrNotification)
		assert.Equal(t, domain.ReasonUnavailable, domain.ReasonOf(err))
		require.NotNil(t, result)
		assert.Equal(t, "sub-1", result.Submission.ID)
		assert.Len(t, repo.created, 1)
		assert.Len(t, sender.sent, 1)
	})
}

func TestSubmit_UnclassifiedSenderErrorsBecomeNotificationErrors(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{err: errors.New("something odd")}
	svc := newService(repo, sender, domain.PolicyStrict, time.Now())

	_, err := svc.Submit(context.Background(), validCommand)
	assert.ErrorIs(t, err, domain.ErrNotification)
	assert.Equal(t, domain.ReasonUnknown, domain.ReasonOf(err))
}

func TestSubmit_SenderPanicIsContained(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{panic: true}
	svc := newService(repo, sender, domain.PolicyStrict, time.Now())

	assert.NotPanics(t, func() {
		_, err := svc.Submit(context.Background(), validCommand)
		assert.ErrorIs(t, err, domain.ErrNotification)
	})
	assert.Len(t, repo.created, 1)
}

func TestNewSubmissionService_DefaultsToBestEffort(t *testing.T) {
	svc := NewSubmissionService(ServiceConfig{Repository: &fakeRepository{}, Sender: &fakeSender{}, Logger: zerolog.Nop()})
	assert.Equal(t, domain.PolicyBestEffort, svc.Policy())
}
