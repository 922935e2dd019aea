package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/portfolio/pkg/mailer"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/diagnosis/portfolio/services/api/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*domain.User{}}
}

func (m *mockUserRepo) Create(_ context.Context, name, email, hash, role string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, repository.ErrDuplicate
		}
	}
	u := &domain.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, req *domain.UpdateProfileRequest, hash *string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Avatar != nil {
		u.Avatar = *req.Avatar
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) TouchLastLogin(_ context.Context, id string) error { return nil }

func (m *mockUserRepo) UpdateRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) HasAdmin(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == domain.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

type mockContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact
	replies  map[string][]domain.ContactReply
}

func newMockContactRepo() *mockContactRepo {
	return &mockContactRepo{contacts: map[string]*domain.Contact{}, replies: map[string][]domain.ContactReply{}}
}

func (m *mockContactRepo) Create(_ context.Context, req *domain.ContactRequest) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	c := &domain.Contact{
		ID: uuid.NewString(), Name: req.Name, Email: req.Email, Phone: req.Phone, Company: req.Company,
		Subject: req.Subject, Message: req.Message, ProjectType: req.ProjectType, Budget: req.Budget,
		Timeline: req.Timeline, Status: domain.StatusNew, Priority: domain.PriorityMedium,
		IPAddress: req.IPAddress, UserAgent: req.UserAgent, CreatedAt: now, UpdatedAt: now,
	}
	m.contacts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *mockContactRepo) GetByID(_ context.Context, id string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Replies = m.replies[id]
	return &cp, nil
}

func (m *mockContactRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.contacts {
		if c.IsSpam && !f.IncludeSpam {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Subject+c.Name+c.Email+c.Message), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset >= len(out) {
		return []domain.Contact{}, total, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *mockContactRepo) Stats(context.Context) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := domain.Stats{ByStatus: map[domain.Status]int{}}
	for _, c := range m.contacts {
		if c.IsSpam {
			stats.Spam++
			continue
		}
		stats.Total++
		stats.ByStatus[c.Status]++
	}
	return stats, nil
}

func (m *mockContactRepo) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contacts[id]; ok && c.Status == domain.StatusNew {
		c.Status = domain.StatusRead
	}
	return nil
}

func (m *mockContactRepo) UpdateStatus(_ context.Context, id string, st *domain.Status, p *domain.Priority, notes *string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, nil
	}
	if st != nil {
		c.Status = *st
	}
	if p != nil {
		c.Priority = *p
	}
	if notes != nil {
		c.Notes = *notes
	}
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (m *mockContactRepo) MarkSpam(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if c.IsSpam {
		return false, nil
	}
	c.IsSpam = true
	c.Status = domain.StatusArchived
	return true, nil
}

func (m *mockContactRepo) AddReply(_ context.Context, id, message, sentBy string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, errors.New("foreign key violation")
	}
	now := time.Now()
	m.replies[id] = append(m.replies[id], domain.ContactReply{ID: uuid.NewString(), Message: message, SentBy: sentBy, SentAt: now})
	c.Status = domain.StatusReplied
	c.RepliedAt = &now
	cp := *c
	return &cp, nil
}

func (m *mockContactRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[id]; !ok {
		return false, nil
	}
	delete(m.contacts, id)
	return true, nil
}

type mockMediaRepo struct {
	mu     sync.Mutex
	assets map[string]*domain.MediaAsset
}

func newMockMediaRepo() *mockMediaRepo {
	return &mockMediaRepo{assets: map[string]*domain.MediaAsset{}}
}

func (m *mockMediaRepo) Create(_ context.Context, a *domain.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.CreatedAt = time.Now()
	cp := *a
	m.assets[a.PublicID] = &cp
	return nil
}

func (m *mockMediaRepo) FindByPublicID(_ context.Context, id string) (*domain.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assets[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockMediaRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, id)
	return nil
}

func (m *mockMediaRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

type recordingBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *recordingBus) Publish(_ context.Context, subject string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type mockMailer struct {
	mu      sync.Mutex
	replies []mailer.Reply
	err     error
}

func (m *mockMailer) SendContactNotification(context.Context, string, mailer.ContactNotice) error {
	return nil
}

func (m *mockMailer) SendContactConfirmation(context.Context, mailer.ContactNotice) error {
	return nil
}

func (m *mockMailer) SendContactReply(_ context.Context, r mailer.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.replies = append(m.replies, r)
	return nil
}
