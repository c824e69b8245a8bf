package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Mail transports.
const (
	TransportSMTP          = "smtp"
	TransportOAuth         = "oauth"
	TransportTransactional = "transactional"
)

// SMTPConfig holds the static-credential SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Secure   bool
}

// OAuthConfig holds the refresh-credential triple and mail API endpoints.
type OAuthConfig struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	TokenURL        string
	APIBaseURL      string
	AccountID       string
	RefreshInterval time.Duration
}

// TransactionalConfig holds the API-key transport settings.
type TransactionalConfig struct {
	APIKey   string
	Endpoint string
}

// Config holds runtime configuration shared across the application.
type Config struct {
	Env            string
	LogLevel       string
	Addr           string
	AllowedOrigins []string
	MetricsEnabled bool

	StoreDriver       string
	MongoURI          string
	MongoDatabase     string
	ContactCollection string
	DatabaseURL       string
	StoreTimeout      time.Duration

	NotifyPolicy  domain.NotificationPolicy
	NotifyTimeout time.Duration
	MailTransport string
	MailFrom      string
	MailFromName  string
	OwnerEmail    string

	SMTP          SMTPConfig
	OAuth         OAuthConfig
	Transactional TransactionalConfig
}

// ConfigurationError lists every required setting that is absent or invalid.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	var problems []string

	addr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if addr == "" {
		addr = ":" + envOrDefault("PORT", "5000")
	}

	policy, err := domain.ParseNotificationPolicy(os.Getenv("NOTIFY_POLICY"))
	if err != nil {
		problems = append(problems, "NOTIFY_POLICY must be best-effort or strict")
	}

	smtpPort, err := envInt("EMAIL_PORT", 465)
	if err != nil {
		problems = append(problems, "EMAIL_PORT must be an integer")
	}

	notifyTimeout, err := envDuration("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		problems = append(problems, err.Error())
	}
	refreshInterval, err := envDuration("OAUTH_REFRESH_INTERVAL", 45*time.Minute)
	if err != nil {
		problems = append(problems, err.Error())
	}

	smtpUser := strings.TrimSpace(os.Getenv("EMAIL_USER"))

	cfg := Config{
		Env:            envOrDefault("ENV", "production"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		Addr:           addr,
		AllowedOrigins: parseList("API_ALLOWED_ORIGINS", []string{"*"}),
		MetricsEnabled: envBool("METRICS_ENABLED", true),

		NotifyPolicy:  policy,
		NotifyTimeout: notifyTimeout,
		MailTransport: strings.ToLower(envOrDefault("MAIL_TRANSPORT", TransportSMTP)),
		MailFrom:      envOrDefault("MAIL_FROM", smtpUser),
		MailFromName:  envOrDefault("MAIL_FROM_NAME", "Contact Form"),
		OwnerEmail:    strings.TrimSpace(os.Getenv("PORTFOLIO_OWNER_EMAIL")),

		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("EMAIL_HOST")),
			Port:     smtpPort,
			Username: smtpUser,
			Password: os.Getenv("EMAIL_PASS"),
			Secure:   envBool("EMAIL_SECURE", smtpPort == 465),
		},
		OAuth: OAuthConfig{
			ClientID:        strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
			ClientSecret:    strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
			RefreshToken:    strings.TrimSpace(os.Getenv("OAUTH_REFRESH_TOKEN")),
			TokenURL:        envOrDefault("OAUTH_TOKEN_URL", "https://accounts.zoho.com/oauth/v2/token"),
			APIBaseURL:      strings.TrimRight(envOrDefault("OAUTH_MAIL_API_URL", "https://mail.zoho.com/api"), "/"),
			AccountID:       strings.TrimSpace(os.Getenv("OAUTH_ACCOUNT_ID")),
			RefreshInterval: refreshInterval,
		},
		Transactional: TransactionalConfig{
			APIKey:   strings.TrimSpace(os.Getenv("TRANSACTIONAL_API_KEY")),
			Endpoint: envOrDefault("TRANSACTIONAL_API_URL", "https://api.brevo.com/v3/smtp/email"),
		},
	}

	problems = append(problems, cfg.loadStore()...)
	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return Config{}, &ConfigurationError{Problems: problems}
	}
	return cfg, nil
}

// LoadStore reads only the logging and store settings. Offline tools such as
// the seeder use it so they do not need mail credentials.
func LoadStore() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:      envOrDefault("ENV", "production"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),
	}
	problems := cfg.loadStore()
	problems = append(problems, cfg.validateStore()...)
	if len(problems) > 0 {
		return Config{}, &ConfigurationError{Problems: problems}
	}
	return cfg, nil
}

func (c *Config) loadStore() []string {
	var problems []string
	storeTimeout, err := envDuration("STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		problems = append(problems, err.Error())
	}

	c.StoreDriver = strings.ToLower(envOrDefault("STORE_DRIVER", StoreMongo))
	c.MongoURI = strings.TrimSpace(os.Getenv("MONGODB_URI"))
	c.MongoDatabase = envOrDefault("MONGO_DB", "contactform")
	c.ContactCollection = envOrDefault("CONTACT_COLLECTION", "contacts")
	c.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	c.StoreTimeout = storeTimeout
	return problems
}

func (c Config) validateStore() []string {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return []string{"MONGODB_URI is required"}
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return []string{"DATABASE_URL is required"}
		}
	default:
		return []string{fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StorePostgres, c.StoreDriver)}
	}
	return nil
}

func (c Config) validate() []string {
	problems := c.validateStore()
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}

	require("PORTFOLIO_OWNER_EMAIL", c.OwnerEmail)

	switch c.MailTransport {
	case TransportSMTP:
		require("EMAIL_HOST", c.SMTP.Host)
		require("EMAIL_USER", c.SMTP.Username)
		require("EMAIL_PASS", c.SMTP.Password)
	case TransportOAuth:
		require("OAUTH_CLIENT_ID", c.OAuth.ClientID)
		require("OAUTH_CLIENT_SECRET", c.OAuth.ClientSecret)
		require("OAUTH_REFRESH_TOKEN", c.OAuth.RefreshToken)
		require("OAUTH_ACCOUNT_ID", c.OAuth.AccountID)
		require("MAIL_FROM", c.MailFrom)
	case TransportTransactional:
		require("TRANSACTIONAL_API_KEY", c.Transactional.APIKey)
		require("MAIL_FROM", c.MailFrom)
	default:
		problems = append(problems, fmt.Sprintf("MAIL_TRANSPORT must be smtp, oauth or transactional, got %q", c.MailTransport))
	}

	return problems
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 10s", key)
	}
	return parsed, nil
}

func parseList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}

	if len(values) == 0 {
		return fallback
	}
	return values
}
