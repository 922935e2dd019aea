package mailer

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDev() *DevMailer {
	d := NewDevMailer()
	d.out = io.Discard
	return d
}

func sampleNotice() ContactNotice {
	return ContactNotice{
		ContactID:   "c1",
		Name:        "Ada",
		Email:       "ada@x.com",
		Subject:     "Hello\r\nBcc: evil@x.com",
		Message:     "<script>alert(1)</script>",
		ProjectType: "web-development",
		Budget:      "not-sure",
		Timeline:    "flexible",
		CreatedAt:   time.Now(),
	}
}

func TestMailer_Notification(t *testing.T) {
	dev := newDev()
	m := New(dev, "Portfolio")

	require.NoError(t, m.SendContactNotification(context.Background(), "me@site.com", sampleNotice()))

	sent := dev.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "me@site.com", msg.ToEmail)
	assert.Equal(t, "ada@x.com", msg.ReplyTo)
	assert.NotContains(t, msg.Subject, "\n")
	assert.Contains(t, msg.Subject, "Hello Bcc:")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.Text, "Project type: web-development")
}

func TestMailer_NotificationRequiresInbox(t *testing.T) {
	m := New(newDev(), "Portfolio")
	assert.Error(t, m.SendContactNotification(context.Background(), " ", sampleNotice()))
}

func TestMailer_ConfirmationAndReply(t *testing.T) {
	dev := newDev()
	m := New(dev, "Portfolio")

	require.NoError(t, m.SendContactConfirmation(context.Background(), sampleNotice()))
	require.NoError(t, m.SendContactReply(context.Background(), Reply{
		ToEmail:         "ada@x.com",
		ToName:          "Ada",
		OriginalSubject: "Hello there",
		Message:         "Thanks, let's talk.",
	}))

	sent := dev.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "ada@x.com", sent[0].ToEmail)
	assert.True(t, strings.HasPrefix(sent[1].Subject, "Re: Hello there"))
	assert.Contains(t, sent[1].Text, "Thanks, let's talk.")
	assert.Contains(t, sent[1].Text, "Portfolio", "from name falls back to the site")
}

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(config.EmailConfig{Provider: "dev", FromName: "Portfolio"})
	require.NoError(t, err)
	assert.IsType(t, &DevMailer{}, m.sender)

	m, err = FromConfig(config.EmailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 1025})
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m.sender)

	_, err = FromConfig(config.EmailConfig{Provider: "mailersend"})
	assert.Error(t, err)
	_, err = FromConfig(config.EmailConfig{Provider: "resend"})
	assert.Error(t, err)
	_, err = FromConfig(config.EmailConfig{Provider: "pigeon"})
	assert.Error(t, err)
}

func TestSMTPMailer_Build(t *testing.T) {
	s := NewSMTPMailer("localhost", 1025, "noreply@site.com", "", "", false)
	body := string(s.build("ada@x.com", Message{Subject: "Héllo", ReplyTo: "me@site.com", Text: "hi", HTML: "<p>hi</p>"}))

	assert.Contains(t, body, "To: ada@x.com\r\n")
	assert.Contains(t, body, "Reply-To: me@site.com\r\n")
	assert.Contains(t, body, "Subject: =?utf-8?q?")
	assert.Contains(t, body, "multipart/alternative")
}
