package inbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/apperror"
)

type mockNotificationRepo struct {
	mu    sync.Mutex
	items []*Notification
	err   error
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.items = append(m.items, n)
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, apperror.NotFoundf("notification not found")
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	return result, len(result), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return apperror.NotFoundf("notification not found")
}

func (m *mockNotificationRepo) CountByType(_ context.Context, recipientID uuid.UUID, t Type) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.RecipientID == recipientID && n.Type == t {
			count++
		}
	}
	return count, nil
}

type panicSMSSender struct{}

func (panicSMSSender) SendSMS(context.Context, string, string) error {
	panic("provider exploded")
}

var errBoom = errors.New("boom")
