package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/apperror"
)

// DoctorFinder is the part of the identity service the matchers need.
type DoctorFinder interface {
	FindDoctorByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
	FindDoctorsByFirstName(ctx context.Context, fragment string) ([]*identity.Doctor, error)
}

// DoctorMatcher resolves the doctor to assign when approving.
type DoctorMatcher interface {
	Match(ctx context.Context, sel DoctorSelector) (*identity.Doctor, error)
}

// IDMatcher resolves an explicit doctor id.
type IDMatcher struct {
	Doctors DoctorFinder
}

func (m IDMatcher) Match(ctx context.Context, sel DoctorSelector) (*identity.Doctor, error) {
	if sel.DoctorID == nil {
		return nil, apperror.Validationf("doctor_id is required")
	}
	d, err := m.Doctors.FindDoctorByID(ctx, *sel.DoctorID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NotFoundf("Doctor not found")
		}
		return nil, err
	}
	return d, nil
}

// NameMatcher is the best-effort lookup kept for clients that send a free
// text name: the last word of the name is matched case-insensitively
// against doctors' first names and the oldest match wins. "Dr. Jane Smith"
// therefore matches a doctor whose first name contains "smith".
type NameMatcher struct {
	Doctors DoctorFinder
}

func (m NameMatcher) Match(ctx context.Context, sel DoctorSelector) (*identity.Doctor, error) {
	fields := strings.Fields(sel.Name)
	if len(fields) == 0 {
		return nil, apperror.Validationf("assigned_doctor is required")
	}
	found, err := m.Doctors.FindDoctorsByFirstName(ctx, fields[len(fields)-1])
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperror.NotFoundf("Doctor not found")
	}
	return found[0], nil
}

// SelectorMatcher uses the id when one is given and falls back to the name.
type SelectorMatcher struct {
	ByID   DoctorMatcher
	ByName DoctorMatcher
}

func NewSelectorMatcher(doctors DoctorFinder) SelectorMatcher {
	return SelectorMatcher{ByID: IDMatcher{Doctors: doctors}, ByName: NameMatcher{Doctors: doctors}}
}

func (m SelectorMatcher) Match(ctx context.Context, sel DoctorSelector) (*identity.Doctor, error) {
	if sel.DoctorID != nil {
		return m.ByID.Match(ctx, sel)
	}
	return m.ByName.Match(ctx, sel)
}
