package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers rendered reports by email through SendGrid.
type Mailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

// NewMailer constructs a Mailer. fromAddr is the verified sender address.
func NewMailer(apiKey, fromAddr, fromName string) (*Mailer, error) {
	if apiKey == "" {
		return nil, errors.New("report: sendgrid apiKey must not be empty")
	}
	if fromAddr == "" {
		return nil, errors.New("report: fromAddr must not be empty")
	}
	return &Mailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromAddr: fromAddr,
		fromName: fromName,
	}, nil
}

// Send mails the report to every recipient. textBody is the plain-text
// rendering and htmlBody the HTML one; either may be empty, not both.
func (m *Mailer) Send(ctx context.Context, recipients []string, subject, textBody, htmlBody string) error {
	if len(recipients) == 0 {
		return errors.New("report: no recipients")
	}
	if textBody == "" && htmlBody == "" {
		return errors.New("report: empty body")
	}

	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.fromName, m.fromAddr))
	msg.Subject = subject

	for _, rcpt := range recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", rcpt))
		msg.AddPersonalizations(p)
	}

	if textBody != "" {
		msg.AddContent(mail.NewContent("text/plain", textBody))
	}
	if htmlBody != "" {
		msg.AddContent(mail.NewContent("text/html", htmlBody))
	}

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("report: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("report: sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// SendWithAttachment mails the report with one attached file (e.g., a
// generated PDF).
func (m *Mailer) SendWithAttachment(ctx context.Context, recipients []string, subject, textBody, htmlBody, filename string, data []byte) error {
	if len(data) == 0 {
		return errors.New("report: empty attachment")
	}
	if len(recipients) == 0 {
		return errors.New("report: no recipients")
	}

	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.fromName, m.fromAddr))
	msg.Subject = subject

	for _, rcpt := range recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", rcpt))
		msg.AddPersonalizations(p)
	}

	if textBody != "" {
		msg.AddContent(mail.NewContent("text/plain", textBody))
	}
	if htmlBody != "" {
		msg.AddContent(mail.NewContent("text/html", htmlBody))
	}

	att := mail.NewAttachment()
	att.SetContent(string(data))
	att.SetFilename(filename)
	att.SetDisposition("attachment")
	msg.AddAttachment(att)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("report: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("report: sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
