package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/diagnosis/portfolio/pkg/logger"
)

// DevMailer prints mail instead of sending it and keeps the last messages
// for inspection.
type DevMailer struct {
	out  io.Writer
	mu   sync.Mutex
	sent []Message
}

func NewDevMailer() *DevMailer {
	return &DevMailer{out: os.Stdout}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) error {
	logger.InfoContext(ctx, "[DEV MAIL] Email",
		"to", msg.ToEmail,
		"subject", msg.Subject,
	)

	rule := strings.Repeat("━", 64)
	fmt.Fprintf(d.out, "\n%s\nEMAIL (DEV MODE)\n%s\nTo: %s (%s)\nReply-To: %s\nSubject: %s\n\n%s\n%s\n\n",
		rule, rule, msg.ToEmail, msg.ToName, msg.ReplyTo, msg.Subject, msg.Text, rule)

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.mu.Unlock()
	return nil
}

// Sent returns a copy of every message sent so far.
func (d *DevMailer) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent...)
}
