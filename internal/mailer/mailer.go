package mailer

import (
	"errors"
	"fmt"

	"log/slog"

	gomail "gopkg.in/gomail.v2"
)

// Sender delivers transactional email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// ErrNotConfigured is returned when no SMTP transport is configured.
var ErrNotConfigured = errors.New("mailer: smtp transport not configured")

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

// NewSMTP constructs an SMTP sender. An empty host yields a sender whose
// Send reports ErrNotConfigured; callers decide whether that is fatal.
func NewSMTP(host string, port int, username, password, from string, logger *slog.Logger) *SMTP {
	s := &SMTP{from: from, logger: logger}
	if host != "" {
		s.dialer = gomail.NewDialer(host, port, username, password)
	}
	return s
}

// Send delivers a single HTML message.
func (s *SMTP) Send(to, subject, htmlBody string) error {
	if s.dialer == nil {
		return ErrNotConfigured
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
