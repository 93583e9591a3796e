package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/metrics"
)

// AppointmentReader is the lifecycle lookup billing needs.
type AppointmentReader interface {
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// Directory resolves doctors and callers.
type Directory interface {
	FindDoctorByID(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
	GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

type Notifier interface {
	NotifyEvent(ctx context.Context, r inbox.Recipient, t inbox.Type, data map[string]string) inbox.Delivery
}

type Service struct {
	records      RecordRepository
	bills        BillRepository
	appointments AppointmentReader
	directory    Directory
	notifier     Notifier
	tx           db.Transactor
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(
	records RecordRepository,
	bills BillRepository,
	appointments AppointmentReader,
	directory Directory,
	notifier Notifier,
	tx db.Transactor,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		records:      records,
		bills:        bills,
		appointments: appointments,
		directory:    directory,
		notifier:     notifier,
		tx:           tx,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// GenerateInput carries the clinical notes and itemised charges for a
// completed appointment. A nil ConsultationFee falls back to the assigned
// doctor's configured fee.
type GenerateInput struct {
	AppointmentID   uuid.UUID
	Diagnosis       string
	Treatment       string
	Prescription    string
	NextVisit       *string
	ConsultationFee *decimal.Decimal
	MedicationCost  decimal.Decimal
	TestCost        decimal.Decimal
	OtherCharges    decimal.Decimal
}

type GenerateResult struct {
	Record *MedicalRecord
	Bill   *Bill
}

// GenerateBill writes the medical record and its bill in one transaction
// and notifies the patient after commit.
func (s *Service) GenerateBill(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	diagnosis := strings.TrimSpace(in.Diagnosis)
	treatment := strings.TrimSpace(in.Treatment)
	if diagnosis == "" {
		return nil, apperror.Validationf("diagnosis is required")
	}
	if treatment == "" {
		return nil, apperror.Validationf("treatment is required")
	}
	nextVisit, err := ParseNextVisit(in.NextVisit)
	if err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}

	appt, err := s.appointments.Get(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != scheduling.StatusCompleted {
		return nil, apperror.Validationf("bills can only be generated for completed appointments, this one is %s", appt.Status)
	}
	if appt.DoctorID == nil {
		return nil, apperror.Validationf("appointment has no assigned doctor")
	}

	charges := Charges{
		MedicationCost: in.MedicationCost,
		TestCost:       in.TestCost,
		OtherCharges:   in.OtherCharges,
	}
	if in.ConsultationFee != nil {
		charges.ConsultationFee = *in.ConsultationFee
	} else {
		doctor, err := s.directory.FindDoctorByID(ctx, *appt.DoctorID)
		if err != nil {
			return nil, err
		}
		charges.ConsultationFee = doctor.ConsultationFee
	}
	if err := charges.Validate(); err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}

	if err := s.ensureUnbilled(ctx, appt.ID); err != nil {
		return nil, err
	}

	record := &MedicalRecord{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      *appt.DoctorID,
		Diagnosis:     diagnosis,
		Treatment:     treatment,
		Prescription:  strings.TrimSpace(in.Prescription),
		NextVisit:     nextVisit,
	}
	bill := &Bill{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      *appt.DoctorID,
		Charges:       charges,
		PaymentStatus: PaymentPending,
	}
	bill.Recompute()

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.records.Create(ctx, record); err != nil {
			return err
		}
		bill.MedicalRecordID = record.ID
		return s.bills.Create(ctx, bill)
	})
	if err != nil {
		return nil, err
	}

	record.PatientName = appt.PatientName
	record.DoctorName = appt.DoctorName
	bill.PatientUserID = appt.PatientUserID
	bill.PatientEmail = appt.PatientEmail
	bill.PatientPhone = appt.PatientPhone
	bill.PatientName = appt.PatientName
	bill.DoctorName = appt.DoctorName
	bill.AppointmentDate = appt.Date

	s.metrics.BillGenerated()
	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("appointment_id", appt.ID.String()).
		Str("total_amount", bill.TotalAmount.StringFixed(2)).
		Msg("bill generated")

	s.notifier.NotifyEvent(ctx, recipientOf(bill), inbox.TypeBillGenerated, map[string]string{
		"total": bill.TotalAmount.StringFixed(2),
	})
	return &GenerateResult{Record: record, Bill: bill}, nil
}

func (s *Service) ensureUnbilled(ctx context.Context, appointmentID uuid.UUID) error {
	if _, err := s.bills.GetByAppointment(ctx, appointmentID); err == nil {
		return apperror.Conflictf("a bill already exists for this appointment")
	} else if !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	if _, err := s.records.GetByAppointment(ctx, appointmentID); err == nil {
		return apperror.Conflictf("a medical record already exists for this appointment")
	} else if !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	return nil
}

// MarkPaid settles a pending or overdue bill.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == PaymentPaid {
		return nil, apperror.Conflictf("bill is already paid")
	}
	if err := s.bills.MarkPaid(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	b, err = s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("bill_id", b.ID.String()).Msg("bill paid")
	s.notifier.NotifyEvent(ctx, recipientOf(b), inbox.TypePaymentReceived, map[string]string{
		"total": b.TotalAmount.StringFixed(2),
	})
	return b, nil
}

func recipientOf(b *Bill) inbox.Recipient {
	return inbox.Recipient{UserID: b.PatientUserID, Email: b.PatientEmail, Phone: b.PatientPhone}
}

// -- Reads --

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) ListBillsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	return s.bills.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) GetMedicalRecordForAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByAppointment(ctx, appointmentID)
}

// GetBillForCaller hides bills that belong to other patients or doctors.
func (s *Service) GetBillForCaller(ctx context.Context, userID uuid.UUID, role identity.Role, id uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, role, b.PatientID, b.DoctorID); err != nil {
		return nil, apperror.NotFoundf("bill not found")
	}
	return b, nil
}

func (s *Service) GetRecordForCaller(ctx context.Context, userID uuid.UUID, role identity.Role, appointmentID uuid.UUID) (*MedicalRecord, error) {
	m, err := s.records.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, role, m.PatientID, m.DoctorID); err != nil {
		return nil, apperror.NotFoundf("medical record not found")
	}
	return m, nil
}

// ListBillsForCaller lists the calling patient's own bills.
func (s *Service) ListBillsForCaller(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	p, err := s.directory.GetPatientByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.bills.ListByPatient(ctx, p.ID, limit, offset)
}

func (s *Service) authorize(ctx context.Context, userID uuid.UUID, role identity.Role, patientID, doctorID uuid.UUID) error {
	switch role {
	case identity.RoleAdmin:
		return nil
	case identity.RolePatient:
		p, err := s.directory.GetPatientByUserID(ctx, userID)
		if err == nil && p.ID == patientID {
			return nil
		}
	case identity.RoleDoctor:
		d, err := s.directory.GetDoctorByUserID(ctx, userID)
		if err == nil && d.ID == doctorID {
			return nil
		}
	}
	return apperror.Forbiddenf("access denied")
}
