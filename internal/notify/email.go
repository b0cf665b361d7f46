package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email is an outgoing message.
type Email struct {
	ToAddress string
	ToName    string
	Subject   string
	Text      string
	HTML      string
}

// EmailSender sends one email.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// SendGridSender sends through the SendGrid v3 mail API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendGridSender creates a sender authenticated with apiKey.
func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Send delivers email. Non-2xx responses are errors.
func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(email.ToName, email.ToAddress)
	msg := mail.NewSingleEmail(from, email.Subject, to, email.Text, email.HTML)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender logs emails instead of sending them. Used when no API key is
// configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the subject and recipient.
func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("email not configured, skipping send",
		"to", email.ToAddress,
		"subject", email.Subject,
	)
	return nil
}

// EmailChannel renders messages and hands them to an EmailSender.
type EmailChannel struct {
	sender EmailSender
	appURL string
}

// NewEmailChannel creates an EmailChannel linking to appURL.
func NewEmailChannel(sender EmailSender, appURL string) *EmailChannel {
	return &EmailChannel{sender: sender, appURL: appURL}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements Channel. Recipients without an address are skipped.
func (c *EmailChannel) Deliver(ctx context.Context, msg Message) error {
	if msg.Recipient.Email == "" {
		return nil
	}
	r, err := Render(msg, c.appURL)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, Email{
		ToAddress: msg.Recipient.Email,
		ToName:    msg.Recipient.Name,
		Subject:   r.Subject,
		Text:      r.Text,
		HTML:      r.HTML,
	})
}
