package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Transition moves the appointment from one status to another. It fails
	// with a conflict when the stored status is no longer from, so a
	// concurrent writer cannot be silently overwritten. A non-nil doctorID
	// is assigned in the same statement.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, doctorID *uuid.UUID) error
	// List returns appointments newest first.
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}
