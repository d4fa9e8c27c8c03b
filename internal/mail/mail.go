// Package mail sends plain-text notification mails through SendGrid.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// Sender is the part of the SendGrid client the mailer uses.
type Sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// Mailer implements core.Mailer.
type Mailer struct {
	sender    Sender
	fromName  string
	fromEmail string
}

var _ core.Mailer = (*Mailer)(nil)

// New creates a mailer using the SendGrid API key.
func New(apiKey, fromName, fromEmail string) *Mailer {
	return NewWithSender(sendgrid.NewSendClient(apiKey), fromName, fromEmail)
}

// NewWithSender creates a mailer on an existing client.
func NewWithSender(sender Sender, fromName, fromEmail string) *Mailer {
	return &Mailer{sender: sender, fromName: fromName, fromEmail: fromEmail}
}

func (m *Mailer) Send(ctx context.Context, to core.User, subject, body string) error {
	if to.Email == "" {
		return errors.New("recipient has no email address")
	}

	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(m.fromName, m.fromEmail))
	message.Subject = subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(to.Name, to.Email))
	message.AddPersonalizations(p)
	message.AddContent(sgmail.NewContent("text/plain", body))

	resp, err := m.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to.Email, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send mail to %s: status %d: %s", to.Email, resp.StatusCode, resp.Body)
	}
	return nil
}
