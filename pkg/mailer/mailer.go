package mailer

import (
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/easydeed/reportscompany-sub005/pkg/config"
)

// Attachment is a rendered report file delivered inline with the email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound report email.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers report emails. Satisfied by Mailer and by test stubs.
type Sender interface {
	Send(msg Message) error
}

// Mailer sends report emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New constructs an SMTP mailer from config.
func New(cfg config.SMTPConfig) *Mailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password)
	return &Mailer{dialer: dialer, from: cfg.From}
}

// Send delivers the message to every recipient in one SMTP transaction.
func (m *Mailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.To...)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/html", msg.HTMLBody)

	for _, att := range msg.Attachments {
		data := att.Data
		mail.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("send report email: %w", err)
	}
	return nil
}
