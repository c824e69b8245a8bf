package mail

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/application"
)

// NewSender selects the transport named by cfg.MailTransport. The returned
// Refresher is non-nil only for the OAuth transport with a positive refresh
// interval; the caller owns its lifecycle.
func NewSender(cfg config.Config, httpClient *http.Client, logger zerolog.Logger) (application.NotificationSender, *Refresher, error) {
	composer := NewComposer(cfg.MailFrom, cfg.MailFromName, cfg.OwnerEmail)

	switch cfg.MailTransport {
	case config.TransportSMTP:
		sender, err := NewSMTPSender(cfg.SMTP, composer, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, nil, nil
	case config.TransportOAuth:
		credentials := NewCredentialCache(cfg.OAuth, httpClient, logger)
		sender, err := NewOAuthMailSender(cfg.OAuth, composer, credentials, httpClient, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, NewRefresher(credentials, cfg.OAuth.RefreshInterval, logger), nil
	case config.TransportTransactional:
		sender, err := NewTransactionalSender(cfg.Transactional, composer, httpClient, logger)
		if err != nil {
			return nil, nil, err
		}
		return sender, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
}
