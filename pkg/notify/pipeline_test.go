package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu            sync.Mutex
	notifications []string
	confirmations []string
	notifyErr     error
}

func (f *fakeMailer) SendContactNotification(_ context.Context, to string, n mailer.ContactNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications = append(f.notifications, to+"|"+n.ContactID+"|"+n.AdminURL)
	return nil
}

func (f *fakeMailer) SendContactConfirmation(_ context.Context, n mailer.ContactNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, n.Email)
	return nil
}

func (f *fakeMailer) SendContactReply(context.Context, mailer.Reply) error { return nil }

func submitted() events.ContactSubmittedEvent {
	return events.ContactSubmittedEvent{
		ContactID: "c-1",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Subject:   "Project inquiry",
		Message:   "I would like to build an engine.",
		CreatedAt: time.Now(),
	}
}

func TestPipeline_DeliversThroughBus(t *testing.T) {
	m := &fakeMailer{}
	bus := events.NewLocalEventBus()
	defer bus.Close()

	require.NoError(t, NewPipeline(m, "owner@example.com", "https://site.dev/").Register(bus, "notify"))
	require.NoError(t, bus.Publish(context.Background(), events.ContactSubmitted, submitted()))
	bus.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"owner@example.com|c-1|https://site.dev/admin/contacts/c-1"}, m.notifications)
	assert.Equal(t, []string{"ada@example.com"}, m.confirmations)
}

func TestPipeline_ConfirmationSurvivesNotificationFailure(t *testing.T) {
	m := &fakeMailer{notifyErr: errors.New("smtp down")}
	NewPipeline(m, "owner@example.com", "").Handle(context.Background(), submitted())

	assert.Empty(t, m.notifications)
	assert.Equal(t, []string{"ada@example.com"}, m.confirmations)
}

func TestPipeline_NoInbox(t *testing.T) {
	m := &fakeMailer{}
	NewPipeline(m, "", "").Handle(context.Background(), submitted())

	assert.Empty(t, m.notifications)
	assert.Len(t, m.confirmations, 1)
}
