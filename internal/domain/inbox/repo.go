package inbox

import (
	"context"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByRecipient returns the recipient's notifications newest first.
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error)
	// MarkRead only touches rows owned by recipientID.
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
	CountByType(ctx context.Context, recipientID uuid.UUID, t Type) (int, error)
}
