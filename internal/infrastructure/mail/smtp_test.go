package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/contact-form-services/api/internal/config"
	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

// fakeSMTPServer speaks just enough SMTP for one plain-text session.
type fakeSMTPServer struct {
	listener net.Listener
	rcptCode int
	noAuth   bool
	quitCode int

	mu       sync.Mutex
	authed   bool
	mailFrom string
	rcptTo   string
	data     string
	done     chan struct{}
}

type fakeSMTPOption func(*fakeSMTPServer)

// withoutAuth stops the server from advertising AUTH.
func withoutAuth() fakeSMTPOption {
	return func(s *fakeSMTPServer) { s.noAuth = true }
}

// withQuitCode answers QUIT with code instead of 221.
func withQuitCode(code int) fakeSMTPOption {
	return func(s *fakeSMTPServer) { s.quitCode = code }
}

func startFakeSMTPServer(t *testing.T, rcptCode int, opts ...fakeSMTPOption) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fakeSMTPServer{listener: ln, rcptCode: rcptCode, quitCode: 221, done: make(chan struct{})}
	for _, opt := range opts {
		opt(srv)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (s *fakeSMTPServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	reply := func(line string) { _ = tp.PrintfLine("%s", line) }

	reply("220 localhost ESMTP test")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			if s.noAuth {
				reply("250 localhost")
				continue
			}
			reply("250-localhost")
			reply("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "AUTH PLAIN"):
			s.mu.Lock()
			s.authed = true
			s.mu.Unlock()
			reply("235 2.7.0 authenticated")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.mailFrom = line[len("MAIL FROM:"):]
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcptTo = line[len("RCPT TO:"):]
			s.mu.Unlock()
			if s.rcptCode != 250 {
				reply(strconv.Itoa(s.rcptCode) + " mailbox unavailable")
				continue
			}
			reply("250 OK")
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = strings.Join(lines, "\n")
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply(strconv.Itoa(s.quitCode) + " bye")
			return
		case cmd == "RSET", cmd == "NOOP":
			reply("250 OK")
		default:
			reply("502 not implemented")
		}
	}
}

func (s *fakeSMTPServer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session did not finish")
	}
}

func newTestSMTPSender(t *testing.T, port int) *SMTPSender {
	t.Helper()
	sender, err := NewSMTPSender(config.SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "site@example.com",
		Password: "secret",
	}, NewComposer("site@example.com", "Contact Form", "owner@example.com"), zerolog.Nop(),
		WithSMTPClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return sender
}

func TestSMTPSender_DeliversOneMessage(t *testing.T) {
	srv := startFakeSMTPServer(t, 250)
	sender := newTestSMTPSender(t, srv.port())

	err := sender.Send(context.Background(), ada)
	require.NoError(t, err)
	srv.wait(t)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.True(t, srv.authed)
	assert.Equal(t, "<site@example.com>", srv.mailFrom)
	assert.Equal(t, "<owner@example.com>", srv.rcptTo)
	assert.Contains(t, srv.data, "Reply-To: <ada@example.com>")
	assert.Contains(t, srv.data, "Subject: New Contact Form Submission from Ada")
	assert.Contains(t, srv.data, `From: "Contact Form" <site@example.com>`)
	assert.Contains(t, srv.data, "Message-ID: <")
	assert.Contains(t, srv.data, "multipart/alternative")
	assert.Contains(t, srv.data, "Hello")
}

func TestSMTPSender_FailedQuitAfterAcceptedData(t *testing.T) {
	srv := startFakeSMTPServer(t, 250, withQuitCode(554))
	sender := newTestSMTPSender(t, srv.port())

	require.NoError(t, sender.Send(context.Background(), ada))
	srv.wait(t)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Contains(t, srv.data, "Hello")
}

func TestSMTPSender_CredentialsWithoutAuthOffered(t *testing.T) {
	srv := startFakeSMTPServer(t, 250, withoutAuth())
	sender := newTestSMTPSender(t, srv.port())

	err := sender.Send(context.Background(), ada)
	assert.ErrorIs(t, err, domain.ErrNotification)
	assert.Equal(t, domain.ReasonUnauthorized, domain.ReasonOf(err))
	srv.wait(t)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.mailFrom)
}

func TestSMTPSender_RejectedRecipient(t *testing.T) {
	srv := startFakeSMTPServer(t, 550)
	sender := newTestSMTPSender(t, srv.port())

	err := sender.Send(context.Background(), ada)
	require.Error(t, err)

	var notifyErr *domain.NotificationError
	require.ErrorAs(t, err, &notifyErr)
	assert.Equal(t, "smtp", notifyErr.Transport)
	assert.Equal(t, domain.ReasonRejected, notifyErr.Reason)
}

func TestSMTPSender_UnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	sender := newTestSMTPSender(t, port)
	err = sender.Send(context.Background(), ada)
	assert.ErrorIs(t, err, domain.ErrNotification)
	assert.Equal(t, domain.ReasonUnavailable, domain.ReasonOf(err))
}

func TestNewSMTPSender_Validation(t *testing.T) {
	composer := NewComposer("a@example.com", "", "b@example.com")

	_, err := NewSMTPSender(config.SMTPConfig{Port: 465}, composer, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 0}, composer, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 465}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestClassifySMTPError(t *testing.T) {
	tests := []struct {
		err  error
		want domain.FailureReason
	}{
		{fmt.Errorf("auth: %w", &textproto.Error{Code: 535, Msg: "bad credentials"}), domain.ReasonUnauthorized},
		{&textproto.Error{Code: 421, Msg: "try later"}, domain.ReasonUnavailable},
		{&textproto.Error{Code: 554, Msg: "spam"}, domain.ReasonRejected},
		{fmt.Errorf("dial: %w", context.DeadlineExceeded), domain.ReasonUnavailable},
		{errAuthNotOffered, domain.ReasonUnauthorized},
		{errors.New("weird"), domain.ReasonUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifySMTPError(tt.err), tt.err.Error())
	}
}
