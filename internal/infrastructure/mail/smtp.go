package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

const transportSMTP = "smtp"

// errAuthNotOffered means credentials are configured but the server offers no AUTH.
var errAuthNotOffered = errors.New("server does not advertise AUTH")

// Dialer abstracts net.Dialer so tests can point the sender at a local listener.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTPOption configures the SMTP sender.
type SMTPOption func(*SMTPSender)

// WithSMTPDialer swaps the network dialer.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(s *SMTPSender) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSMTPTLSConfig overrides the TLS configuration for implicit TLS and STARTTLS.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTPSender) {
		s.tlsConfig = cfg
	}
}

// WithSMTPClock replaces the clock used for the Date header.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(s *SMTPSender) {
		if now != nil {
			s.now = now
		}
	}
}

// SMTPSender delivers notifications over an authenticated SMTP session.
// Port 465 style deployments use implicit TLS; others upgrade with STARTTLS
// when the server offers it.
type SMTPSender struct {
	composer  *Composer
	logger    zerolog.Logger
	host      string
	port      int
	secure    bool
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	helloName string
	now       func() time.Time
}

// NewSMTPSender constructs the static-credential SMTP transport.
func NewSMTPSender(cfg config.SMTPConfig, composer *Composer, logger zerolog.Logger, opts ...SMTPOption) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp sender: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp sender: invalid port %d", cfg.Port)
	}
	if composer == nil {
		return nil, errors.New("smtp sender: composer is required")
	}

	s := &SMTPSender{
		composer:  composer,
		logger:    logger.With().Str("transport", transportSMTP).Logger(),
		host:      strings.TrimSpace(cfg.Host),
		port:      cfg.Port,
		secure:    cfg.Secure,
		dialer:    &net.Dialer{Timeout: 30 * time.Second},
		helloName: "localhost",
		now:       time.Now,
		tlsConfig: &tls.Config{
			ServerName: strings.TrimSpace(cfg.Host),
			MinVersion: tls.VersionTLS12,
		},
	}
	if strings.TrimSpace(cfg.Username) != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, s.host)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Name identifies the transport in logs and metrics.
func (s *SMTPSender) Name() string { return transportSMTP }

// Send composes and delivers one message for the submission.
func (s *SMTPSender) Send(ctx context.Context, submission domain.Submission) error {
	msg, err := s.composer.Compose(submission)
	if err != nil {
		return domain.NewNotificationError(transportSMTP, domain.ReasonUnknown, err)
	}

	from, err := envelopeAddress(msg.From)
	if err != nil {
		return domain.NewNotificationError(transportSMTP, domain.ReasonRejected, fmt.Errorf("invalid from address: %w", err))
	}
	to, err := envelopeAddress(msg.To)
	if err != nil {
		return domain.NewNotificationError(transportSMTP, domain.ReasonRejected, fmt.Errorf("invalid recipient: %w", err))
	}

	raw, err := s.buildMessage(msg)
	if err != nil {
		return domain.NewNotificationError(transportSMTP, domain.ReasonUnknown, err)
	}

	if err := s.deliver(ctx, from, to, raw); err != nil {
		return domain.NewNotificationError(transportSMTP, classifySMTPError(err), err)
	}

	s.logger.Debug().Str("submission_id", submission.ID).Msg("smtp message accepted")
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, from, to string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	if s.secure {
		tlsConn := tls.Client(conn, s.sessionTLSConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	if err := client.Hello(s.helloName); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	if !s.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.sessionTLSConfig()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errAuthNotOffered
		}
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("data write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}

	// The message is queued once DATA is accepted; QUIT cannot undo that.
	if err := client.Quit(); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn().Err(err).Msg("smtp quit failed after message was accepted")
	}
	return nil
}

// buildMessage renders a multipart/alternative message with text and HTML parts.
func (s *SMTPSender) buildMessage(msg Message) ([]byte, error) {
	boundary := "contact-" + uuid.NewString()
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.From))

	from := (&netmail.Address{Name: msg.FromName, Address: msg.From}).String()
	replyTo := (&netmail.Address{Address: msg.ReplyTo}).String()

	var buf bytes.Buffer
	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", msg.To)
	if strings.TrimSpace(msg.ReplyTo) != "" {
		writeHeader(&buf, "Reply-To", replyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", s.now().UTC().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID)
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	}
	for _, part := range parts {
		buf.WriteString("--" + boundary + "\r\n")
		writeHeader(&buf, "Content-Type", part.contentType)
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")

		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(normalizeBody(part.body))); err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + boundary + "--\r\n")

	return buf.Bytes(), nil
}

func (s *SMTPSender) sessionTLSConfig() *tls.Config {
	if s.tlsConfig == nil {
		return &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
	}
	cfg := s.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = s.host
	}
	return cfg
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(sanitizeHeaderValue(value))
	buf.WriteString("\r\n")
}

func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}

func normalizeBody(body string) string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}

func envelopeAddress(value string) (string, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}

// classifySMTPError maps SMTP reply codes and network failures to a reason.
func classifySMTPError(err error) domain.FailureReason {
	if errors.Is(err, errAuthNotOffered) {
		return domain.ReasonUnauthorized
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 530 || tpErr.Code == 534 || tpErr.Code == 535:
			return domain.ReasonUnauthorized
		case tpErr.Code >= 400 && tpErr.Code < 500:
			return domain.ReasonUnavailable
		case tpErr.Code >= 500:
			return domain.ReasonRejected
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ReasonUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ReasonUnavailable
	}
	return domain.ReasonUnknown
}
