package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
	"github.com/sngm3741/contact-form-services/api/internal/metrics"
)

const (
	// defaultTokenLifetime applies when the provider reports no expiry at all.
	defaultTokenLifetime = time.Hour
	expirySkew           = time.Minute
)

// CredentialState is the lifecycle state of the cached access token.
type CredentialState string

const (
	StateNoToken CredentialState = "no_token"
	StateValid   CredentialState = "valid"
	StateExpired CredentialState = "expired"
)

// CredentialCache exchanges a long-lived refresh token for short-lived access
// tokens and caches the latest one. Reads and replacements are guarded by mu;
// exchangeMu keeps at most one exchange in flight.
type CredentialCache struct {
	oauth        *oauth2.Config
	refreshToken string
	httpClient   *http.Client
	logger       zerolog.Logger
	now          func() time.Time

	exchangeMu sync.Mutex

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewCredentialCache builds an empty cache (state NoToken).
func NewCredentialCache(cfg config.OAuthConfig, httpClient *http.Client, logger zerolog.Logger) *CredentialCache {
	return &CredentialCache{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: cfg.RefreshToken,
		httpClient:   defaultHTTPClient(httpClient),
		logger:       logger.With().Str("component", "oauth_credentials").Logger(),
		now:          time.Now,
	}
}

// State reports the current lifecycle state.
func (c *CredentialCache) State() CredentialState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *CredentialCache) stateLocked() CredentialState {
	if c.token == "" {
		return StateNoToken
	}
	if !c.now().Before(c.expiresAt.Add(-expirySkew)) {
		return StateExpired
	}
	return StateValid
}

func (c *CredentialCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() == StateValid {
		return c.token, true
	}
	return "", false
}

// Token returns a valid access token, exchanging the refresh token when the
// cache is empty or expired.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	// another caller may have exchanged while we waited
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.exchangeLocked(ctx)
}

// Refresh forces an exchange regardless of the cached token.
func (c *CredentialCache) Refresh(ctx context.Context) (string, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()
	return c.exchangeLocked(ctx)
}

// Invalidate drops the cached token if it is still the one the caller saw rejected.
func (c *CredentialCache) Invalidate(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rejected == "" || c.token == rejected {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

func (c *CredentialCache) store(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}

// exchangeLocked must be called with exchangeMu held.
func (c *CredentialCache) exchangeLocked(ctx context.Context) (string, error) {
	token, expiresAt, err := c.exchange(ctx)
	if err != nil {
		c.Invalidate("")
		metrics.OAuthTokenExchanges.WithLabelValues("failed").Inc()
		c.logger.Error().Err(err).Msg("access token exchange failed")
		return "", err
	}
	c.store(token, expiresAt)
	metrics.OAuthTokenExchanges.WithLabelValues("ok").Inc()
	c.logger.Info().Time("expires_at", expiresAt).Msg("access token refreshed")
	return token, nil
}

// exchange trades the refresh token for a new access token. Each call starts
// from the bare refresh token so the provider is always contacted.
func (c *CredentialCache) exchange(ctx context.Context) (string, time.Time, error) {
	recorder := &transportRecorder{base: c.httpClient.Transport}
	client := *c.httpClient
	client.Transport = recorder
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &client)

	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, domain.NewNotificationError(transportOAuth, exchangeFailureReason(err, recorder.err), fmt.Errorf("token exchange: %w", err))
	}
	return tok.AccessToken, c.expiryFor(tok), nil
}

// expiryFor prefers the provider's expires_in, then the exp claim of a JWT access token.
func (c *CredentialCache) expiryFor(tok *oauth2.Token) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return c.now().Add(defaultTokenLifetime)
}

// exchangeFailureReason treats a provider that answered as having refused the
// credentials unless it reported itself unavailable.
func exchangeFailureReason(err, transportErr error) domain.FailureReason {
	if transportErr != nil {
		return domain.ReasonUnavailable
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		reasonForStatus(retrieveErr.Response.StatusCode) == domain.ReasonUnavailable {
		return domain.ReasonUnavailable
	}
	return domain.ReasonUnauthorized
}

// transportRecorder keeps the round-trip error, which oauth2 only reports as text.
type transportRecorder struct {
	base http.RoundTripper
	err  error
}

func (t *transportRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	res, err := base.RoundTrip(req)
	if err != nil {
		t.err = err
	}
	return res, err
}

// Refresher proactively refreshes a CredentialCache on a fixed interval until
// its context is cancelled.
type Refresher struct {
	cache    *CredentialCache
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewRefresher returns nil when interval is not positive.
func NewRefresher(cache *CredentialCache, interval time.Duration, logger zerolog.Logger) *Refresher {
	if cache == nil || interval <= 0 {
		return nil
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger.With().Str("component", "oauth_refresher").Logger(),
	}
}

// Run performs one refresh immediately and then one per interval.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("credential refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.cache.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn().Err(err).Msg("scheduled token refresh failed; next send will retry")
	}
}
