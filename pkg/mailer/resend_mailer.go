package mailer

import (
	"context"
	"fmt"

	"github.com/resendlabs/resend-go"
)

type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

func NewResend(apiKey, fromName, fromEmail string) (*ResendClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required for resend")
	}
	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// Send ignores ctx: the resend client has no context-aware call.
func (c *ResendClient) Send(_ context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{msg.ToEmail},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	if _, err := c.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}
