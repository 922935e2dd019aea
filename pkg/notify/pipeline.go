// Package notify turns contact events into email.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/mailer"
)

const sendTimeout = 30 * time.Second

// Pipeline mails the site owner about each contact submission and confirms
// receipt to the submitter. A failed email never fails the submission.
type Pipeline struct {
	mailer   mailer.Service
	inbox    string
	adminURL string
}

func NewPipeline(m mailer.Service, inbox, adminURL string) *Pipeline {
	return &Pipeline{mailer: m, inbox: inbox, adminURL: strings.TrimRight(adminURL, "/")}
}

// Register subscribes the pipeline to contact events within queue, so that
// running several workers still sends each mail once.
func (p *Pipeline) Register(sub events.Subscriber, queue string) error {
	return sub.QueueSubscribe(events.ContactSubmitted, queue, p.handleSubmitted)
}

func (p *Pipeline) handleSubmitted(msg *events.Message) {
	var evt events.ContactSubmittedEvent
	if err := msg.Decode(&evt); err != nil {
		logger.Error("Dropping malformed contact event", "event_id", msg.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	p.Handle(ctx, evt)
}

// Handle sends both emails for one submission and logs each outcome.
func (p *Pipeline) Handle(ctx context.Context, evt events.ContactSubmittedEvent) {
	notice := mailer.ContactNotice{
		ContactID:   evt.ContactID,
		Name:        evt.Name,
		Email:       evt.Email,
		Phone:       evt.Phone,
		Company:     evt.Company,
		Subject:     evt.Subject,
		Message:     evt.Message,
		ProjectType: evt.ProjectType,
		Budget:      evt.Budget,
		Timeline:    evt.Timeline,
		IPAddress:   evt.IPAddress,
		CreatedAt:   evt.CreatedAt,
	}
	if p.adminURL != "" {
		notice.AdminURL = p.adminURL + "/admin/contacts/" + evt.ContactID
	}

	if p.inbox == "" {
		logger.Warn("No contact inbox configured, skipping admin notification", "contact_id", evt.ContactID)
	} else if err := p.mailer.SendContactNotification(ctx, p.inbox, notice); err != nil {
		logger.Error("Failed to send contact notification", "contact_id", evt.ContactID, "error", err)
	} else {
		logger.Info("Contact notification sent", "contact_id", evt.ContactID)
	}

	if err := p.mailer.SendContactConfirmation(ctx, notice); err != nil {
		logger.Error("Failed to send contact confirmation", "contact_id", evt.ContactID, "email", evt.Email, "error", err)
		return
	}
	logger.Info("Contact confirmation sent", "contact_id", evt.ContactID)
}
