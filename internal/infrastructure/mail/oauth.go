package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

const (
	transportOAuth        = "oauth"
	invalidOAuthTokenCode = "INVALID_OAUTHTOKEN"
)

type oauthMailRequest struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	ReplyTo     string `json:"replyTo,omitempty"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	MailFormat  string `json:"mailFormat"`
	AskReceipt  string `json:"askReceipt"`
}

// oauthErrorBody mirrors the provider's error envelope. Every level is
// optional so a missing shape never panics classification.
type oauthErrorBody struct {
	Data *struct {
		ErrorCode string `json:"errorCode"`
	} `json:"data"`
}

// OAuthMailSender posts notifications to an OAuth-protected mail API using
// an access token from a CredentialCache.
type OAuthMailSender struct {
	composer    *Composer
	credentials *CredentialCache
	endpoint    string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewOAuthMailSender constructs the refresh-credential transport.
func NewOAuthMailSender(cfg config.OAuthConfig, composer *Composer, credentials *CredentialCache, httpClient *http.Client, logger zerolog.Logger) (*OAuthMailSender, error) {
	if composer == nil {
		return nil, errors.New("oauth sender: composer is required")
	}
	if credentials == nil {
		return nil, errors.New("oauth sender: credential cache is required")
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errors.New("oauth sender: account id is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		return nil, errors.New("oauth sender: api base url is required")
	}

	return &OAuthMailSender{
		composer:    composer,
		credentials: credentials,
		endpoint:    fmt.Sprintf("%s/accounts/%s/messages", base, url.PathEscape(cfg.AccountID)),
		httpClient:  defaultHTTPClient(httpClient),
		logger:      logger.With().Str("transport", transportOAuth).Logger(),
	}, nil
}

// Name identifies the transport in logs and metrics.
func (s *OAuthMailSender) Name() string { return transportOAuth }

// Send delivers one message. When the provider rejects the access token the
// cache is invalidated and re-exchanged once; the send itself is not repeated.
func (s *OAuthMailSender) Send(ctx context.Context, submission domain.Submission) error {
	msg, err := s.composer.Compose(submission)
	if err != nil {
		return domain.NewNotificationError(transportOAuth, domain.ReasonUnknown, err)
	}

	token, err := s.credentials.Token(ctx)
	if err != nil {
		return err
	}

	payload := oauthMailRequest{
		FromAddress: msg.From,
		ToAddress:   msg.To,
		ReplyTo:     msg.ReplyTo,
		Subject:     msg.Subject,
		Content:     msg.HTMLBody,
		MailFormat:  "html",
		AskReceipt:  "no",
	}
	res, err := postJSON(ctx, s.httpClient, s.endpoint, map[string]string{
		"Authorization": "Zoho-oauthtoken " + token,
	}, payload)
	if err != nil {
		return domain.NewNotificationError(transportOAuth, domain.ReasonUnavailable, err)
	}

	if res.StatusCode < 300 {
		s.logger.Debug().Str("submission_id", submission.ID).Msg("mail api accepted message")
		return nil
	}

	if isInvalidToken(res) {
		s.credentials.Invalidate(token)
		if _, refreshErr := s.credentials.Refresh(ctx); refreshErr != nil {
			s.logger.Warn().Err(refreshErr).Msg("re-exchange after rejected token failed")
		}
		return domain.NewNotificationError(transportOAuth, domain.ReasonUnauthorized, statusError(res))
	}

	return domain.NewNotificationError(transportOAuth, reasonForStatus(res.StatusCode), statusError(res))
}

func isInvalidToken(res *apiResponse) bool {
	if res.StatusCode == http.StatusUnauthorized {
		return true
	}
	var body oauthErrorBody
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return false
	}
	return body.Data != nil && strings.EqualFold(body.Data.ErrorCode, invalidOAuthTokenCode)
}
