package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/scheduling"
)

// listLimit caps every list embedded in a dashboard.
const listLimit = 100

type AppointmentLister interface {
	List(ctx context.Context, f scheduling.AppointmentFilter, limit, offset int) ([]*scheduling.Appointment, int, error)
}

type BillLister interface {
	ListBillsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*billing.Bill, int, error)
}

type Directory interface {
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

type Service struct {
	store        Store
	appointments AppointmentLister
	bills        BillLister
	directory    Directory
	now          func() time.Time
}

// NewService builds the aggregator. A nil clock means time.Now.
func NewService(store Store, appointments AppointmentLister, bills BillLister, directory Directory, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, appointments: appointments, bills: bills, directory: directory, now: clock}
}

func (s *Service) Admin(ctx context.Context) (*AdminView, error) {
	day := dayOf(s.now())
	pending := scheduling.StatusPending
	appts, _, err := s.appointments.List(ctx, scheduling.AppointmentFilter{Status: &pending}, listLimit, 0)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.AdminStats(ctx, day)
	if err != nil {
		return nil, err
	}
	return &AdminView{PendingAppointments: nonNil(appts), Stats: stats}, nil
}

// Doctor shows the caller's appointments for today.
func (s *Service) Doctor(ctx context.Context, userID uuid.UUID) (*DoctorView, error) {
	d, err := s.directory.GetDoctorByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	day := dayOf(s.now())
	appts, _, err := s.appointments.List(ctx, scheduling.AppointmentFilter{DoctorID: &d.ID, Date: &day.Date}, listLimit, 0)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.DoctorStats(ctx, d.ID, day)
	if err != nil {
		return nil, err
	}
	return &DoctorView{Appointments: nonNil(appts), Stats: stats}, nil
}

func (s *Service) Patient(ctx context.Context, userID uuid.UUID) (*PatientView, error) {
	p, err := s.directory.GetPatientByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	day := dayOf(s.now())
	appts, _, err := s.appointments.List(ctx, scheduling.AppointmentFilter{PatientID: &p.ID}, listLimit, 0)
	if err != nil {
		return nil, err
	}
	bills, _, err := s.bills.ListBillsForPatient(ctx, p.ID, listLimit, 0)
	if err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []*billing.Bill{}
	}
	stats, err := s.store.PatientStats(ctx, p.ID, day)
	if err != nil {
		return nil, err
	}
	return &PatientView{Appointments: nonNil(appts), Bills: bills, Stats: stats}, nil
}

func nonNil(a []*scheduling.Appointment) []*scheduling.Appointment {
	if a == nil {
		return []*scheduling.Appointment{}
	}
	return a
}
