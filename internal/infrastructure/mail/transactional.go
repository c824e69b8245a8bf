package mail

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

const transportTransactional = "transactional"

type transactionalContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type transactionalRequest struct {
	Sender      transactionalContact   `json:"sender"`
	To          []transactionalContact `json:"to"`
	ReplyTo     *transactionalContact  `json:"replyTo,omitempty"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"htmlContent"`
	TextContent string                 `json:"textContent"`
	Headers     map[string]string      `json:"headers,omitempty"`
}

// TransactionalSender calls a transactional-email HTTP API authenticated by a static API key.
type TransactionalSender struct {
	composer   *Composer
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTransactionalSender constructs the API-key transport.
func NewTransactionalSender(cfg config.TransactionalConfig, composer *Composer, httpClient *http.Client, logger zerolog.Logger) (*TransactionalSender, error) {
	if composer == nil {
		return nil, errors.New("transactional sender: composer is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("transactional sender: api key is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("transactional sender: endpoint is required")
	}
	return &TransactionalSender{
		composer:   composer,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		httpClient: defaultHTTPClient(httpClient),
		logger:     logger.With().Str("transport", transportTransactional).Logger(),
	}, nil
}

// Name identifies the transport in logs and metrics.
func (s *TransactionalSender) Name() string { return transportTransactional }

// Send issues exactly one API call for the submission.
func (s *TransactionalSender) Send(ctx context.Context, submission domain.Submission) error {
	msg, err := s.composer.Compose(submission)
	if err != nil {
		return domain.NewNotificationError(transportTransactional, domain.ReasonUnknown, err)
	}

	payload := transactionalRequest{
		Sender:      transactionalContact{Email: msg.From, Name: msg.FromName},
		To:          []transactionalContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
		TextContent: msg.TextBody,
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &transactionalContact{Email: msg.ReplyTo, Name: submission.Name}
	}
	if msg.SubmissionID != "" {
		payload.Headers = map[string]string{"X-Contact-Submission-Id": msg.SubmissionID}
	}

	res, err := postJSON(ctx, s.httpClient, s.endpoint, map[string]string{"api-key": s.apiKey}, payload)
	if err != nil {
		return domain.NewNotificationError(transportTransactional, domain.ReasonUnavailable, err)
	}
	if res.StatusCode >= 300 {
		return domain.NewNotificationError(transportTransactional, reasonForStatus(res.StatusCode), statusError(res))
	}

	s.logger.Debug().Str("submission_id", submission.ID).Msg("transactional api accepted message")
	return nil
}
