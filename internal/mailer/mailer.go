// Package mailer delivers composed reports over SMTP with mandatory STARTTLS.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"ibkr-reporter/internal/interfaces"
	"ibkr-reporter/internal/logger"
	"ibkr-reporter/internal/report"
)

const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587
)

// ErrMissingCredentials is returned before dialing when the sender address,
// password or recipient is not set.
var ErrMissingCredentials = errors.New("email credentials are not set")

// SMTPSender sends plain text mail with PLAIN auth after STARTTLS.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

var _ interfaces.Sender = (*SMTPSender)(nil)

// NewMessage builds the mail for a composed report.
func (s *SMTPSender) NewMessage(msg report.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(s.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) validate() error {
	if s.From == "" || s.Password == "" || len(s.To) == 0 {
		return ErrMissingCredentials
	}
	return nil
}

// Send delivers one message. Nothing is retried.
func (s *SMTPSender) Send(ctx context.Context, msg report.Message) error {
	if err := s.validate(); err != nil {
		return err
	}
	m, err := s.NewMessage(msg)
	if err != nil {
		return err
	}

	host, port := s.Host, s.Port
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	username := s.Username
	if username == "" {
		username = s.From
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(s.Password),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	timer := logger.StartOperation(ctx, "mailer.Send", "host", host, "port", port, "recipients", len(s.To))
	if err := client.DialAndSendWithContext(timer.GetContext(), m); err != nil {
		timer.EndWithError(err)
		return fmt.Errorf("send mail via %s:%d: %w", host, port, err)
	}
	timer.End()
	return nil
}
