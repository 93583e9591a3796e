package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	notifications NotificationRepository
}

func NewService(notifications NotificationRepository) *Service {
	return &Service{notifications: notifications}
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.notifications.ListByRecipient(ctx, userID, unreadOnly, limit, offset)
}

// MarkRead marks one of the user's own notifications as read. Notifications
// belonging to someone else are reported as not found.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.notifications.GetByID(ctx, id)
}
