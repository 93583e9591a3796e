package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error)
}

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Bill, error)
	// MarkPaid flips an unpaid bill to paid. A bill that is already paid
	// reports a Conflict.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error)
}
