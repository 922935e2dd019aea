package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/portfolio/pkg/config"
)

// Service sends the transactional mail of the contact workflow.
type Service interface {
	SendContactNotification(ctx context.Context, to string, n ContactNotice) error
	SendContactConfirmation(ctx context.Context, n ContactNotice) error
	SendContactReply(ctx context.Context, r Reply) error
}

// Sender is a mail transport. Implementations deliver one rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	ToEmail string
	ToName  string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// ContactNotice carries a contact submission into the templates.
type ContactNotice struct {
	ContactID   string
	Name        string
	Email       string
	Phone       string
	Company     string
	Subject     string
	Message     string
	ProjectType string
	Budget      string
	Timeline    string
	IPAddress   string
	CreatedAt   time.Time
	AdminURL    string
}

type Reply struct {
	ToEmail         string
	ToName          string
	OriginalSubject string
	Message         string
	FromName        string
}

// Mailer renders templates and hands the result to a Sender.
type Mailer struct {
	sender   Sender
	siteName string
}

func New(sender Sender, siteName string) *Mailer {
	return &Mailer{sender: sender, siteName: siteName}
}

func (m *Mailer) SendContactNotification(ctx context.Context, to string, n ContactNotice) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("no contact inbox configured")
	}
	msg, err := renderNotification(n, m.siteName)
	if err != nil {
		return err
	}
	msg.ToEmail = to
	msg.ReplyTo = n.Email
	return m.sender.Send(ctx, msg)
}

func (m *Mailer) SendContactConfirmation(ctx context.Context, n ContactNotice) error {
	msg, err := renderConfirmation(n, m.siteName)
	if err != nil {
		return err
	}
	msg.ToEmail = n.Email
	msg.ToName = n.Name
	return m.sender.Send(ctx, msg)
}

func (m *Mailer) SendContactReply(ctx context.Context, r Reply) error {
	msg, err := renderReply(r, m.siteName)
	if err != nil {
		return err
	}
	msg.ToEmail = r.ToEmail
	msg.ToName = r.ToName
	return m.sender.Send(ctx, msg)
}

// FromConfig picks the transport named by EMAIL_PROVIDER.
func FromConfig(cfg config.EmailConfig) (*Mailer, error) {
	var sender Sender
	switch strings.ToLower(cfg.Provider) {
	case "", "dev":
		sender = NewDevMailer()
	case "smtp":
		sender = NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	case "mailersend":
		ms := NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
		if !ms.enabled {
			return nil, fmt.Errorf("MAILERSEND_API_KEY and EMAIL_FROM are required for mailersend")
		}
		sender = ms
	case "resend":
		rs, err := NewResend(cfg.ResendKey, cfg.FromName, cfg.FromEmail)
		if err != nil {
			return nil, err
		}
		sender = rs
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
	return New(sender, cfg.FromName), nil
}
