package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPNotifier sends email messages through an SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPNotifier configures the relay connection. Nothing is dialled until
// the first Send.
func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	return &SMTPNotifier{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

// Send delivers message as a multipart email.
func (s *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", message.Destination)
	m.SetHeader("Subject", message.Subject)
	m.SetBody("text/plain", message.Body)
	if message.HTML != "" {
		m.AddAlternative("text/html", message.HTML)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email: %w", message.Kind, err)
	}
	return nil
}
