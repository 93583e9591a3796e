package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/apperror"
)

// -- Mock Record Repository --

type mockRecordRepo struct {
	items []*MedicalRecord
	err   error
}

func (m *mockRecordRepo) Create(_ context.Context, r *MedicalRecord) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.items {
		if existing.AppointmentID == r.AppointmentID {
			return apperror.Conflictf("a medical record already exists for this appointment")
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.items = append(m.items, r)
	return nil
}

func (m *mockRecordRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	for _, r := range m.items {
		if r.AppointmentID == appointmentID {
			c := *r
			return &c, nil
		}
	}
	return nil, apperror.NotFoundf("medical record not found")
}

// -- Mock Bill Repository --

type mockBillRepo struct {
	items []*Bill
	err   error
}

func (m *mockBillRepo) Create(_ context.Context, b *Bill) error {
	if m.err != nil {
		return m.err
	}
	b.ID = uuid.New()
	b.Recompute()
	b.CreatedAt = time.Now()
	m.items = append(m.items, b)
	return nil
}

func (m *mockBillRepo) find(id uuid.UUID) *Bill {
	for _, b := range m.items {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (m *mockBillRepo) GetByID(_ context.Context, id uuid.UUID) (*Bill, error) {
	b := m.find(id)
	if b == nil {
		return nil, apperror.NotFoundf("bill not found")
	}
	c := *b
	return &c, nil
}

func (m *mockBillRepo) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Bill, error) {
	for _, b := range m.items {
		if b.AppointmentID == appointmentID {
			c := *b
			return &c, nil
		}
	}
	return nil, apperror.NotFoundf("bill not found")
}

func (m *mockBillRepo) MarkPaid(_ context.Context, id uuid.UUID, at time.Time) error {
	b := m.find(id)
	if b == nil {
		return apperror.NotFoundf("bill not found")
	}
	if b.PaymentStatus == PaymentPaid {
		return apperror.Conflictf("bill is already paid")
	}
	b.PaymentStatus = PaymentPaid
	b.PaymentDate = &at
	return nil
}

func (m *mockBillRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	var result []*Bill
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].PatientID == patientID {
			result = append(result, m.items[i])
		}
	}
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

// -- Mock Appointments --

type mockAppointments struct {
	items map[uuid.UUID]*scheduling.Appointment
}

func (m *mockAppointments) Get(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, apperror.NotFoundf("appointment not found")
	}
	c := *a
	return &c, nil
}

// -- Mock Directory --

type mockDirectory struct {
	patients []*identity.Patient
	doctors  []*identity.Doctor
}

func (m *mockDirectory) FindDoctorByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperror.NotFoundf("doctor not found")
}

func (m *mockDirectory) GetPatientByUserID(_ context.Context, userID uuid.UUID) (*identity.Patient, error) {
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperror.NotFoundf("patient not found")
}

func (m *mockDirectory) GetDoctorByUserID(_ context.Context, userID uuid.UUID) (*identity.Doctor, error) {
	for _, d := range m.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, apperror.NotFoundf("doctor not found")
}

// -- Mock Notifier --

type sentNotification struct {
	Recipient inbox.Recipient
	Type      inbox.Type
	Data      map[string]string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (m *mockNotifier) NotifyEvent(_ context.Context, r inbox.Recipient, t inbox.Type, data map[string]string) inbox.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{Recipient: r, Type: t, Data: data})
	return inbox.Delivery{Persisted: true}
}

// -- Mock Transactor --

type mockTx struct {
	records *mockRecordRepo
	bills   *mockBillRepo
	calls   int
}

func (m *mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	records, bills := len(m.records.items), len(m.bills.items)
	if err := fn(ctx); err != nil {
		m.records.items = m.records.items[:records]
		m.bills.items = m.bills.items[:bills]
		return err
	}
	return nil
}
