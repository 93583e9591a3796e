package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByLogin matches the handle against username or email.
	GetByLogin(ctx context.Context, handle string) (*User, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
}

type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
	// FindByFirstName returns doctors whose first name contains fragment,
	// case-insensitively, oldest first.
	FindByFirstName(ctx context.Context, fragment string) ([]*Doctor, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool, from, to *string) error
}

type DepartmentRepository interface {
	// GetOrCreate returns the department with the exact name, creating it
	// when absent.
	GetOrCreate(ctx context.Context, name string) (*Department, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	List(ctx context.Context) ([]*Department, error)
}

type RatingRepository interface {
	Create(ctx context.Context, r *DoctorRating) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorRating, int, error)
}
