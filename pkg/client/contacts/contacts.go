// Package contacts wraps the contact form and admin triage endpoints.
package contacts

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/diagnosis/portfolio/pkg/client"
)

// Form is the public contact form. Empty optional fields take the server's
// defaults.
type Form struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	ProjectType string `json:"projectType,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
}

type Contact struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Company     string     `json:"company,omitempty"`
	Subject     string     `json:"subject"`
	Message     string     `json:"message"`
	ProjectType string     `json:"projectType"`
	Budget      string     `json:"budget"`
	Timeline    string     `json:"timeline"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Notes       string     `json:"notes"`
	IsSpam      bool       `json:"isSpam"`
	IPAddress   string     `json:"ipAddress"`
	UserAgent   string     `json:"userAgent"`
	RepliedAt   *time.Time `json:"repliedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Replies     []Reply    `json:"replies,omitempty"`
}

type Reply struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	SentBy  string    `json:"sentBy,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// ListOptions filter and page the admin list. Zero values are omitted.
type ListOptions struct {
	Status      Status   `url:"status,omitempty"`
	Priority    Priority `url:"priority,omitempty"`
	ProjectType string   `url:"projectType,omitempty"`
	Search      string   `url:"search,omitempty"`
	IncludeSpam bool     `url:"includeSpam,omitempty"`
	Page        int      `url:"page,omitempty"`
	Limit       int      `url:"limit,omitempty"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Stats struct {
	Total    int            `json:"total"`
	Spam     int            `json:"spam"`
	ByStatus map[Status]int `json:"byStatus"`
}

type List struct {
	Contacts   []Contact  `json:"contacts"`
	Pagination Pagination `json:"pagination"`
	Stats      Stats      `json:"stats"`
}

// StatusUpdate is a partial update. Nil fields are left unchanged.
type StatusUpdate struct {
	Status   *Status   `json:"status,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	Notes    *string   `json:"notes,omitempty"`
}

type Service struct {
	client *client.Client
}

func New(c *client.Client) *Service {
	return &Service{client: c}
}

// Submit sends the form and returns the new contact's ID.
func (s *Service) Submit(ctx context.Context, f Form) (string, error) {
	var resp struct {
		Data struct {
			ContactID string `json:"contactId"`
		} `json:"data"`
	}
	if err := s.client.Do(ctx, http.MethodPost, "/contact", f, &resp); err != nil {
		return "", err
	}
	return resp.Data.ContactID, nil
}

func (s *Service) List(ctx context.Context, opts ListOptions) (*List, error) {
	if err := s.checkFilter(opts); err != nil {
		return nil, err
	}
	v, err := query.Values(opts)
	if err != nil {
		return nil, err
	}
	path := "/contact"
	if q := v.Encode(); q != "" {
		path += "?" + q
	}

	var out List
	if err := s.client.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one contact with its replies. The server marks a new contact
// as read.
func (s *Service) Get(ctx context.Context, id string) (*Contact, error) {
	var resp struct {
		Data *Contact `json:"data"`
	}
	if err := s.client.Do(ctx, http.MethodGet, "/contact/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateStatus returns the contact as the server stored it.
func (s *Service) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*Contact, error) {
	if err := s.checkUpdate(upd); err != nil {
		return nil, err
	}
	var resp struct {
		Data *Contact `json:"data"`
	}
	if err := s.client.Do(ctx, http.MethodPut, "/contact/"+url.PathEscape(id)+"/status", upd, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Reply emails message to the contact. Delivery is only known as far as the
// HTTP result.
func (s *Service) Reply(ctx context.Context, id, message string) error {
	if message == "" {
		err := &client.ValidationError{Message: "Reply message is required", Fields: map[string]string{"message": "Message is required"}}
		s.client.Notify(err)
		return err
	}
	return s.client.Do(ctx, http.MethodPost, "/contact/"+url.PathEscape(id)+"/reply",
		map[string]string{"message": message}, nil)
}

// MarkAsSpam is idempotent.
func (s *Service) MarkAsSpam(ctx context.Context, id string) error {
	return s.client.Do(ctx, http.MethodPut, "/contact/"+url.PathEscape(id)+"/spam", nil, nil)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.client.Do(ctx, http.MethodDelete, "/contact/"+url.PathEscape(id), nil, nil)
}

func (s *Service) checkFilter(opts ListOptions) error {
	fields := map[string]string{}
	if opts.Status != "" && opts.Status != "all" && !opts.Status.Valid() {
		fields["status"] = "Invalid status"
	}
	if opts.Priority != "" && opts.Priority != "all" && !opts.Priority.Valid() {
		fields["priority"] = "Invalid priority"
	}
	return s.invalid("Invalid filter", fields)
}

func (s *Service) checkUpdate(upd StatusUpdate) error {
	fields := map[string]string{}
	if upd.Status == nil && upd.Priority == nil && upd.Notes == nil {
		fields["status"] = "Nothing to update"
	}
	if upd.Status != nil && !upd.Status.Valid() {
		fields["status"] = "Invalid status"
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		fields["priority"] = "Invalid priority"
	}
	return s.invalid("Validation failed", fields)
}

func (s *Service) invalid(msg string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	err := &client.ValidationError{Message: msg, Fields: fields}
	s.client.Notify(err)
	return err
}
