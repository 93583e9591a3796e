package scheduling

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/platform/apperror"
)

// -- Mock Appointment Repository --

type mockAppointmentRepo struct {
	dir   *mockDirectory
	items []*Appointment
	// raceTo, when set, is written over the stored status just before the
	// next Transition to simulate a concurrent writer.
	raceTo Status
	err    error
}

func newMockAppointmentRepo(dir *mockDirectory) *mockAppointmentRepo {
	return &mockAppointmentRepo{dir: dir}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	if m.err != nil {
		return m.err
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	m.items = append(m.items, &stored)
	return nil
}

func (m *mockAppointmentRepo) find(id uuid.UUID) *Appointment {
	for _, a := range m.items {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// hydrate fills the joined fields the pg repository would read.
func (m *mockAppointmentRepo) hydrate(a *Appointment) *Appointment {
	out := *a
	for _, p := range m.dir.patients {
		if p.ID == a.PatientID {
			u := m.dir.users[p.UserID]
			out.PatientUserID = u.ID
			out.PatientName = u.FullName()
			out.PatientEmail = u.Email
			out.PatientPhone = u.Phone
		}
	}
	if a.DoctorID != nil {
		for _, d := range m.dir.doctors {
			if d.ID == *a.DoctorID {
				out.DoctorName = d.DisplayName()
			}
		}
	}
	for _, d := range m.dir.departments {
		if d.ID == a.DepartmentID {
			out.DepartmentName = d.Name
		}
	}
	return &out
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a := m.find(id)
	if a == nil {
		return nil, apperror.NotFoundf("appointment not found")
	}
	return m.hydrate(a), nil
}

func (m *mockAppointmentRepo) Transition(_ context.Context, id uuid.UUID, from, to Status, doctorID *uuid.UUID) error {
	a := m.find(id)
	if a == nil {
		return apperror.NotFoundf("appointment not found")
	}
	if m.raceTo != "" {
		a.Status = m.raceTo
		m.raceTo = ""
	}
	if a.Status != from {
		return apperror.Conflictf("appointment is no longer %s", from)
	}
	a.Status = to
	if doctorID != nil {
		a.DoctorID = doctorID
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for i := len(m.items) - 1; i >= 0; i-- {
		a := m.items[i]
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && (a.DoctorID == nil || *a.DoctorID != *f.DoctorID) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		result = append(result, m.hydrate(a))
	}
	return result, len(result), nil
}

// -- Mock Directory --

type mockDirectory struct {
	users        map[uuid.UUID]*identity.User
	patients     []*identity.Patient
	doctors      []*identity.Doctor
	departments  []*identity.Department
	guestEnabled bool
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{users: make(map[uuid.UUID]*identity.User), guestEnabled: true}
}

func (m *mockDirectory) addUser(email, first, last string, role identity.Role) *identity.User {
	u := &identity.User{ID: uuid.New(), Email: email, FirstName: first, LastName: last, Role: role, Phone: "+15550001111"}
	m.users[u.ID] = u
	return u
}

func (m *mockDirectory) addDoctor(first, last string) *identity.Doctor {
	u := m.addUser(strings.ToLower(first)+"@hospital.test", first, last, identity.RoleDoctor)
	d := &identity.Doctor{ID: uuid.New(), UserID: u.ID, FirstName: first, LastName: last, IsAvailable: true}
	m.doctors = append(m.doctors, d)
	return d
}

func (m *mockDirectory) addPatient(email string) (*identity.User, *identity.Patient) {
	u := m.addUser(email, "Pat", "Ient", identity.RolePatient)
	p := &identity.Patient{ID: uuid.New(), UserID: u.ID}
	m.patients = append(m.patients, p)
	return u, p
}

func (m *mockDirectory) EnsurePatient(_ context.Context, in identity.GuestInput) (*identity.Patient, *identity.User, bool, error) {
	if in.Email == "" {
		return nil, nil, false, apperror.Validationf("email is required")
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, in.Email) {
			if u.Role != identity.RolePatient {
				return nil, nil, false, apperror.Validationf("email belongs to a %s account", u.Role)
			}
			for _, p := range m.patients {
				if p.UserID == u.ID {
					return p, u, false, nil
				}
			}
		}
	}
	if !m.guestEnabled {
		return nil, nil, false, apperror.Validationf("no account exists for %s", in.Email)
	}
	first, last := identity.SplitName(in.Name)
	u := m.addUser(in.Email, first, last, identity.RolePatient)
	u.Phone = in.Phone
	p := &identity.Patient{ID: uuid.New(), UserID: u.ID, EmergencyContact: in.EmergencyContact}
	m.patients = append(m.patients, p)
	return p, u, true, nil
}

func (m *mockDirectory) GetOrCreateDepartment(_ context.Context, name string) (*identity.Department, error) {
	for _, d := range m.departments {
		if d.Name == name {
			return d, nil
		}
	}
	d := &identity.Department{ID: uuid.New(), Name: name}
	m.departments = append(m.departments, d)
	return d, nil
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

func (m *mockDirectory) FindDoctorByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	for _, d := range m.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperror.NotFoundf("doctor not found")
}

func (m *mockDirectory) FindDoctorsByFirstName(_ context.Context, fragment string) ([]*identity.Doctor, error) {
	var out []*identity.Doctor
	for _, d := range m.doctors {
		if strings.Contains(strings.ToLower(d.FirstName), strings.ToLower(fragment)) {
			out = append(out, d)
		}
	}
	return out, nil
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

func (m *mockNotifier) ofType(t inbox.Type) []sentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentNotification
	for _, s := range m.sent {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// -- Mock Transactor --

type mockTx struct {
	repo  *mockAppointmentRepo
	calls int
}

func (m *mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	before := len(m.repo.items)
	if err := fn(ctx); err != nil {
		m.repo.items = m.repo.items[:before]
		return err
	}
	return nil
}

// failingNotificationRepo makes every inbox insert fail.
type failingNotificationRepo struct{}

func (failingNotificationRepo) Create(context.Context, *inbox.Notification) error {
	return apperror.Wrap(apperror.KindInternal, nil, "database unavailable")
}
func (failingNotificationRepo) GetByID(context.Context, uuid.UUID) (*inbox.Notification, error) {
	return nil, apperror.NotFoundf("notification not found")
}
func (failingNotificationRepo) ListByRecipient(context.Context, uuid.UUID, bool, int, int) ([]*inbox.Notification, int, error) {
	return nil, 0, nil
}
func (failingNotificationRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (failingNotificationRepo) CountByType(context.Context, uuid.UUID, inbox.Type) (int, error) {
	return 0, nil
}
