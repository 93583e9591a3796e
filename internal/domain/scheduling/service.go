package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/metrics"
)

// Directory is the identity functionality the lifecycle depends on.
type Directory interface {
	DoctorFinder
	EnsurePatient(ctx context.Context, in identity.GuestInput) (*identity.Patient, *identity.User, bool, error)
	GetOrCreateDepartment(ctx context.Context, name string) (*identity.Department, error)
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

// Notifier sends best-effort notifications. It never fails.
type Notifier interface {
	NotifyEvent(ctx context.Context, r inbox.Recipient, t inbox.Type, data map[string]string) inbox.Delivery
}

type Service struct {
	appointments AppointmentRepository
	directory    Directory
	matcher      DoctorMatcher
	notifier     Notifier
	tx           db.Transactor
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewService(
	appointments AppointmentRepository,
	directory Directory,
	notifier Notifier,
	tx db.Transactor,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		directory:    directory,
		matcher:      NewSelectorMatcher(directory),
		notifier:     notifier,
		tx:           tx,
		metrics:      m,
		logger:       logger,
	}
}

// WithMatcher swaps the doctor matching strategy.
func (s *Service) WithMatcher(m DoctorMatcher) *Service {
	s.matcher = m
	return s
}

// BookingResult is the booked appointment plus whether a guest account was
// provisioned for it.
type BookingResult struct {
	Appointment  *Appointment
	GuestCreated bool
}

// Book creates a pending appointment. Patient provisioning, department
// resolution and the insert share one transaction. The booking notification
// goes out after commit.
func (s *Service) Book(ctx context.Context, in BookingInput) (*BookingResult, error) {
	if strings.TrimSpace(in.Symptoms) == "" {
		return nil, apperror.Validationf("symptoms are required")
	}
	if strings.TrimSpace(in.Department) == "" {
		return nil, apperror.Validationf("department is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperror.Validationf("name is required")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}
	clock, err := ParseClock(in.Time)
	if err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}

	var (
		user    *identity.User
		created bool
		appt    *Appointment
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		patient, u, isNew, err := s.directory.EnsurePatient(ctx, identity.GuestInput{
			Email:            in.Email,
			Name:             in.Name,
			Phone:            in.Phone,
			Address:          in.Address,
			EmergencyContact: in.EmergencyContact,
		})
		if err != nil {
			return err
		}
		dept, err := s.directory.GetOrCreateDepartment(ctx, in.Department)
		if err != nil {
			return err
		}

		a := &Appointment{
			PatientID:       patient.ID,
			DepartmentID:    dept.ID,
			PreferredDoctor: strings.TrimSpace(in.PreferredDoctor),
			Date:            date,
			Time:            clock,
			Symptoms:        strings.TrimSpace(in.Symptoms),
			Status:          StatusPending,
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			return err
		}
		a.PatientUserID = u.ID
		a.PatientName = u.FullName()
		a.PatientEmail = u.Email
		a.PatientPhone = u.Phone
		a.DepartmentName = dept.Name

		user, created, appt = u, isNew, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentTransitioned(string(StatusPending))
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_user_id", user.ID.String()).
		Bool("guest_created", created).
		Msg("appointment booked")

	s.notifier.NotifyEvent(ctx, recipientOf(appt), inbox.TypeAppointmentBooking, map[string]string{
		"date": appt.Date,
		"time": appt.TimeLabel(),
	})
	return &BookingResult{Appointment: appt, GuestCreated: created}, nil
}

// Approve assigns a doctor to a pending appointment.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, sel DoctorSelector) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(a.Status, StatusApproved); err != nil {
		return nil, err
	}
	doctor, err := s.matcher.Match(ctx, sel)
	if err != nil {
		return nil, err
	}

	a, err = s.transition(ctx, a, StatusApproved, &doctor.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyEvent(ctx, recipientOf(a), inbox.TypeAppointmentApproval, map[string]string{
		"doctor": doctor.DisplayName(),
		"date":   a.Date,
		"time":   a.TimeLabel(),
	})
	return a, nil
}

// Reject cancels a pending or approved appointment.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(a.Status, StatusCancelled); err != nil {
		return nil, err
	}

	a, err = s.transition(ctx, a, StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyEvent(ctx, recipientOf(a), inbox.TypeAppointmentRejection, map[string]string{
		"date": a.Date,
	})
	return a, nil
}

// Complete marks an approved appointment as completed. No notification is
// sent.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(a.Status, StatusCompleted); err != nil {
		return nil, err
	}
	return s.transition(ctx, a, StatusCompleted, nil)
}

func (s *Service) transition(ctx context.Context, a *Appointment, to Status, doctorID *uuid.UUID) (*Appointment, error) {
	if err := s.appointments.Transition(ctx, a.ID, a.Status, to, doctorID); err != nil {
		return nil, err
	}
	s.metrics.AppointmentTransitioned(string(to))
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(a.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")
	return s.appointments.GetByID(ctx, a.ID)
}

func checkTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return apperror.Conflictf("cannot move appointment from %s to %s", from, to)
	}
	return nil
}

func recipientOf(a *Appointment) inbox.Recipient {
	return inbox.Recipient{UserID: a.PatientUserID, Email: a.PatientEmail, Phone: a.PatientPhone}
}

// -- Reads --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// GetForCaller returns the appointment when the caller may see it. Patients
// see their own, doctors the ones assigned to them and admins everything.
// Anything else is reported as not found.
func (s *Service) GetForCaller(ctx context.Context, userID uuid.UUID, role identity.Role, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch role {
	case identity.RoleAdmin:
		return a, nil
	case identity.RolePatient:
		if a.PatientUserID == userID {
			return a, nil
		}
	case identity.RoleDoctor:
		d, err := s.directory.GetDoctorByUserID(ctx, userID)
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		if d != nil && a.DoctorID != nil && *a.DoctorID == d.ID {
			return a, nil
		}
	}
	return nil, apperror.NotFoundf("appointment not found")
}

func (s *Service) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, f, limit, offset)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, AppointmentFilter{PatientID: &patientID}, limit, offset)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, AppointmentFilter{DoctorID: &doctorID}, limit, offset)
}

// ListForCaller scopes the listing to the caller's role. The status filter
// is optional.
func (s *Service) ListForCaller(ctx context.Context, userID uuid.UUID, role identity.Role, status *Status, limit, offset int) ([]*Appointment, int, error) {
	f := AppointmentFilter{Status: status}
	switch role {
	case identity.RoleAdmin:
	case identity.RolePatient:
		p, err := s.directory.GetPatientByUserID(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		f.PatientID = &p.ID
	case identity.RoleDoctor:
		d, err := s.directory.GetDoctorByUserID(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		f.DoctorID = &d.ID
	default:
		return nil, 0, apperror.Forbiddenf("unknown role %s", role)
	}
	return s.appointments.List(ctx, f, limit, offset)
}
