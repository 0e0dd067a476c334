package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/jordan-wright/email"
)

// SMTPConfig is the outgoing mail server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// EmailSender mails the charge to the client, attaching the payment slip when
// it is a local file.
type EmailSender struct {
	cfg  SMTPConfig
	addr string
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(cfg SMTPConfig) *EmailSender {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &EmailSender{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ClientEmail) == "" {
		return fmt.Errorf("client %s has no email address", msg.ClientID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{msg.ClientEmail}
	e.Subject = fmt.Sprintf("Payment of %s due %s", msg.Amount, msg.DueDate)
	e.Text = []byte(emailBody(msg))

	if msg.DocumentRef != "" {
		if _, err := os.Stat(msg.DocumentRef); err == nil {
			if _, err := e.AttachFile(msg.DocumentRef); err != nil {
				return fmt.Errorf("attach payment slip: %w", err)
			}
		}
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	// net/smtp has no deadlines, so the send is abandoned when ctx ends.
	done := make(chan error, 1)
	go func() { done <- s.send(e, s.addr, auth) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", msg.ClientEmail, ctx.Err())
	}
}

func emailBody(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", msg.ClientName)
	fmt.Fprintf(&b, "This is a reminder that a charge of %s was due on %s.\n", msg.Amount, msg.DueDate)
	if msg.PaymentLink != "" {
		fmt.Fprintf(&b, "You can pay it at %s\n", msg.PaymentLink)
	}
	fmt.Fprintf(&b, "\nReference: %s\n", msg.ChargeID)
	return b.String()
}
