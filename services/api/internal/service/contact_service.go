package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/mailer"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/diagnosis/portfolio/services/api/internal/repository"
	"github.com/jackc/pgx/v5"
)

type ContactService interface {
	Submit(ctx context.Context, req *domain.ContactRequest) (*domain.Contact, error)
	List(ctx context.Context, f domain.ListFilter) (*domain.ContactList, error)
	Get(ctx context.Context, id string) (*domain.Contact, error)
	UpdateStatus(ctx context.Context, id, by string, upd *domain.StatusUpdate) (*domain.Contact, error)
	Reply(ctx context.Context, id, by string, req *domain.ReplyRequest) (*domain.Contact, error)
	MarkSpam(ctx context.Context, id, by string) error
	Delete(ctx context.Context, id, by string) error
}

type contactService struct {
	contactRepo repository.ContactRepository
	mailer      mailer.Service
	eventBus    events.Publisher
	replyFrom   string
}

func NewContactService(
	contactRepo repository.ContactRepository,
	mailer mailer.Service,
	eventBus events.Publisher,
	replyFrom string,
) ContactService {
	return &contactService{
		contactRepo: contactRepo,
		mailer:      mailer,
		eventBus:    eventBus,
		replyFrom:   replyFrom,
	}
}

// Submit stores a contact form. Notification email is sent by whoever
// consumes the contact.submitted event, so a mail outage never loses a
// submission.
func (s *contactService) Submit(ctx context.Context, req *domain.ContactRequest) (*domain.Contact, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.contactRepo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to save contact: %w", err)
	}

	logger.InfoContext(ctx, "Contact submitted", "contact_id", c.ID, "project_type", c.ProjectType)
	publish(ctx, s.eventBus, events.ContactSubmitted, events.ContactSubmittedEvent{
		ContactID:   c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		Company:     c.Company,
		Subject:     c.Subject,
		Message:     c.Message,
		ProjectType: c.ProjectType,
		Budget:      c.Budget,
		Timeline:    c.Timeline,
		IPAddress:   c.IPAddress,
		CreatedAt:   c.CreatedAt,
	})
	return c, nil
}

func (s *contactService) List(ctx context.Context, f domain.ListFilter) (*domain.ContactList, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	contacts, total, err := s.contactRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	stats, err := s.contactRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute contact stats: %w", err)
	}

	return &domain.ContactList{
		Contacts: contacts,
		Pagination: domain.Pagination{
			Page:  f.Offset/f.Limit + 1,
			Limit: f.Limit,
			Total: total,
			Pages: (total + f.Limit - 1) / f.Limit,
		},
		Stats: stats,
	}, nil
}

// Get returns a contact with its replies. Opening a new contact marks it read.
func (s *contactService) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	if c.Status == domain.StatusNew {
		if err := s.contactRepo.MarkRead(ctx, id); err != nil {
			logger.WarnContext(ctx, "Failed to mark contact read", "contact_id", id, "error", err)
		} else {
			c.Status = domain.StatusRead
		}
	}
	return c, nil
}

func (s *contactService) UpdateStatus(ctx context.Context, id, by string, upd *domain.StatusUpdate) (*domain.Contact, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	var (
		status   *domain.Status
		priority *domain.Priority
	)
	if upd.Status != nil {
		st, _ := domain.ParseStatus(*upd.Status)
		status = &st
	}
	if upd.Priority != nil {
		p, _ := domain.ParsePriority(*upd.Priority)
		priority = &p
	}

	c, err := s.contactRepo.UpdateStatus(ctx, id, status, priority, upd.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	publish(ctx, s.eventBus, events.ContactStatusChanged, events.ContactStatusChangedEvent{
		ContactID: c.ID,
		Status:    string(c.Status),
		Priority:  string(c.Priority),
		ChangedBy: by,
		ChangedAt: c.UpdatedAt,
	})
	return c, nil
}

// Reply emails the submitter, then records the reply. Nothing is recorded
// when the email cannot be sent.
func (s *contactService) Reply(ctx context.Context, id, by string, req *domain.ReplyRequest) (*domain.Contact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	if err := s.mailer.SendContactReply(ctx, mailer.Reply{
		ToEmail:         c.Email,
		ToName:          c.Name,
		OriginalSubject: c.Subject,
		Message:         req.Message,
		FromName:        s.replyFrom,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to send contact reply", "contact_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrMailFailed, err)
	}

	updated, err := s.contactRepo.AddReply(ctx, id, req.Message, by)
	if err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	publish(ctx, s.eventBus, events.ContactReplied, events.ContactRepliedEvent{
		ContactID: id,
		Email:     c.Email,
		RepliedBy: by,
		RepliedAt: time.Now(),
	})
	return updated, nil
}

// MarkSpam is idempotent: flagging an already flagged contact succeeds
// without publishing a second event.
func (s *contactService) MarkSpam(ctx context.Context, id, by string) error {
	changed, err := s.contactRepo.MarkSpam(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark contact as spam: %w", err)
	}
	if !changed {
		return nil
	}

	publish(ctx, s.eventBus, events.ContactSpam, events.ContactRemovedEvent{ContactID: id, By: by, At: time.Now()})
	return nil
}

func (s *contactService) Delete(ctx context.Context, id, by string) error {
	deleted, err := s.contactRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if !deleted {
		return domain.ErrNotFound
	}

	logger.InfoContext(ctx, "Contact deleted", "contact_id", id, "by", by)
	publish(ctx, s.eventBus, events.ContactDeleted, events.ContactRemovedEvent{ContactID: id, By: by, At: time.Now()})
	return nil
}
