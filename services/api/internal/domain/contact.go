package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusRead       Status = "read"
	StatusReplied    Status = "replied"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Statuses lists every contact status in workflow order.
var Statuses = []Status{StatusNew, StatusRead, StatusReplied, StatusInProgress, StatusCompleted, StatusArchived}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", ErrInvalidPriority
}

var (
	ProjectTypes = []string{"web-development", "mobile-app", "e-commerce", "consulting", "maintenance", "other"}
	Budgets      = []string{"under-5k", "5k-10k", "10k-25k", "25k-50k", "over-50k", "not-sure"}
	Timelines    = []string{"asap", "1-month", "2-3-months", "3-6-months", "flexible"}
)

type Contact struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	Company     string         `json:"company,omitempty"`
	Subject     string         `json:"subject"`
	Message     string         `json:"message"`
	ProjectType string         `json:"projectType"`
	Budget      string         `json:"budget"`
	Timeline    string         `json:"timeline"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Notes       string         `json:"notes"`
	IsSpam      bool           `json:"isSpam"`
	IPAddress   string         `json:"ipAddress"`
	UserAgent   string         `json:"userAgent"`
	RepliedAt   *time.Time     `json:"repliedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Replies     []ContactReply `json:"replies,omitempty"`
}

type ContactReply struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	SentBy  string    `json:"sentBy,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	ProjectType string `json:"projectType,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Timeline    string `json:"timeline,omitempty"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

func (r *ContactRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Company = strings.TrimSpace(r.Company)
	r.Subject = strings.TrimSpace(r.Subject)
	r.Message = strings.TrimSpace(r.Message)
	if r.ProjectType == "" {
		r.ProjectType = "other"
	}
	if r.Budget == "" {
		r.Budget = "not-sure"
	}
	if r.Timeline == "" {
		r.Timeline = "flexible"
	}
}

func (r *ContactRequest) Validate() error {
	errs := ValidationErrors{}
	validateName(errs, r.Name)
	validateEmail(errs, r.Email)
	checkLen(errs, "subject", "Subject", r.Subject, 5, 200)
	checkLen(errs, "message", "Message", r.Message, 10, 2000)
	if len(r.Phone) > 30 {
		errs["phone"] = "Phone cannot exceed 30 characters"
	}
	if len(r.Company) > 100 {
		errs["company"] = "Company cannot exceed 100 characters"
	}
	if !oneOf(r.ProjectType, ProjectTypes) {
		errs["projectType"] = "Invalid project type"
	}
	if !oneOf(r.Budget, Budgets) {
		errs["budget"] = "Invalid budget"
	}
	if !oneOf(r.Timeline, Timelines) {
		errs["timeline"] = "Invalid timeline"
	}
	return errs.OrNil()
}

// StatusUpdate is a partial triage update.
type StatusUpdate struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (u *StatusUpdate) Validate() error {
	errs := ValidationErrors{}
	if u.Status == nil && u.Priority == nil && u.Notes == nil {
		errs["status"] = "Nothing to update"
	}
	if u.Status != nil {
		if _, err := ParseStatus(*u.Status); err != nil {
			errs["status"] = "Invalid status"
		}
	}
	if u.Priority != nil {
		if _, err := ParsePriority(*u.Priority); err != nil {
			errs["priority"] = "Invalid priority"
		}
	}
	if u.Notes != nil && len(*u.Notes) > 5000 {
		errs["notes"] = "Notes cannot exceed 5000 characters"
	}
	return errs.OrNil()
}

type ReplyRequest struct {
	Message string `json:"message"`
}

func (r *ReplyRequest) Validate() error {
	errs := ValidationErrors{}
	checkLen(errs, "message", "Reply message", strings.TrimSpace(r.Message), 1, 5000)
	return errs.OrNil()
}

type ListFilter struct {
	Status      *Status
	Priority    *Priority
	ProjectType string
	Search      string
	IncludeSpam bool
	Limit       int
	Offset      int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Stats counts contacts per status. Spam is counted separately and excluded
// from the per-status totals.
type Stats struct {
	Total    int            `json:"total"`
	Spam     int            `json:"spam"`
	ByStatus map[Status]int `json:"byStatus"`
}

type ContactList struct {
	Contacts   []Contact  `json:"contacts"`
	Pagination Pagination `json:"pagination"`
	Stats      Stats      `json:"stats"`
}

func checkLen(errs ValidationErrors, field, label, v string, min, max int) {
	n := len([]rune(v))
	switch {
	case n == 0:
		errs[field] = label + " is required"
	case n < min:
		errs[field] = label + " is too short"
	case n > max:
		errs[field] = label + " is too long"
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
