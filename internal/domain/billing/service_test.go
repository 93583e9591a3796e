package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/inbox"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/metrics"
)

type testEnv struct {
	svc          *Service
	records      *mockRecordRepo
	bills        *mockBillRepo
	appointments *mockAppointments
	dir          *mockDirectory
	notifier     *mockNotifier
	tx           *mockTx
	metrics      *metrics.Metrics

	patientUserID uuid.UUID
	patient       *identity.Patient
	doctor        *identity.Doctor
}

func newTestEnv() *testEnv {
	env := &testEnv{
		records:      &mockRecordRepo{},
		bills:        &mockBillRepo{},
		appointments: &mockAppointments{items: make(map[uuid.UUID]*scheduling.Appointment)},
		dir:          &mockDirectory{},
		notifier:     &mockNotifier{},
		metrics:      metrics.New(),
	}
	env.tx = &mockTx{records: env.records, bills: env.bills}
	env.svc = NewService(env.records, env.bills, env.appointments, env.dir, env.notifier, env.tx, env.metrics, zerolog.Nop())
	env.svc.now = func() time.Time { return time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC) }

	env.patientUserID = uuid.New()
	env.patient = &identity.Patient{ID: uuid.New(), UserID: env.patientUserID}
	env.doctor = &identity.Doctor{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		FirstName:       "Jane",
		LastName:        "Smith",
		ConsultationFee: decimal.RequireFromString("150.00"),
	}
	env.dir.patients = append(env.dir.patients, env.patient)
	env.dir.doctors = append(env.dir.doctors, env.doctor)
	return env
}

func (env *testEnv) addAppointment(status scheduling.Status, withDoctor bool) *scheduling.Appointment {
	a := &scheduling.Appointment{
		ID:            uuid.New(),
		PatientID:     env.patient.ID,
		Date:          "2025-03-01",
		Time:          "10:00",
		Status:        status,
		PatientUserID: env.patientUserID,
		PatientName:   "Alice Smith",
		PatientEmail:  "a@x.com",
		PatientPhone:  "+15550002222",
	}
	if withDoctor {
		a.DoctorID = &env.doctor.ID
		a.DoctorName = env.doctor.DisplayName()
	}
	env.appointments.items[a.ID] = a
	return a
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func generateInput(appointmentID uuid.UUID) GenerateInput {
	return GenerateInput{
		AppointmentID:   appointmentID,
		Diagnosis:       "flu",
		Treatment:       "rest",
		ConsultationFee: money("100.00"),
		TestCost:        decimal.RequireFromString("25.50"),
	}
}

func TestService_GenerateBill(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)

	res, err := env.svc.GenerateBill(context.Background(), generateInput(a.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Bill.TotalAmount.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("expected total 125.50, got %s", res.Bill.TotalAmount)
	}
	if res.Bill.MedicalRecordID != res.Record.ID {
		t.Error("bill must reference the new medical record")
	}
	if res.Bill.PaymentStatus != PaymentPending {
		t.Errorf("expected pending, got %s", res.Bill.PaymentStatus)
	}
	if res.Record.DoctorID != env.doctor.ID || res.Record.PatientID != env.patient.ID {
		t.Error("record must carry the appointment's patient and doctor")
	}
	if env.tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", env.tx.calls)
	}

	if len(env.notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(env.notifier.sent))
	}
	n := env.notifier.sent[0]
	if n.Type != inbox.TypeBillGenerated || n.Data["total"] != "125.50" {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Recipient.UserID != env.patientUserID || n.Recipient.Email != "a@x.com" {
		t.Errorf("unexpected recipient %+v", n.Recipient)
	}
	if got := testutil.ToFloat64(env.metrics.BillsGenerated); got != 1 {
		t.Errorf("expected bills counter 1, got %v", got)
	}
}

func TestService_GenerateBill_DefaultsToDoctorFee(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)
	in := generateInput(a.ID)
	in.ConsultationFee = nil

	res, err := env.svc.GenerateBill(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Bill.ConsultationFee.Equal(env.doctor.ConsultationFee) {
		t.Errorf("expected doctor's fee, got %s", res.Bill.ConsultationFee)
	}
	if !res.Bill.TotalAmount.Equal(decimal.RequireFromString("175.50")) {
		t.Errorf("expected 175.50, got %s", res.Bill.TotalAmount)
	}
}

func TestService_GenerateBill_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		status   scheduling.Status
		doctor   bool
		mutate   func(in *GenerateInput)
		wantKind apperror.Kind
	}{
		{"pending appointment", scheduling.StatusPending, false, nil, apperror.KindValidation},
		{"approved appointment", scheduling.StatusApproved, true, nil, apperror.KindValidation},
		{"no doctor", scheduling.StatusCompleted, false, nil, apperror.KindValidation},
		{"missing diagnosis", scheduling.StatusCompleted, true, func(in *GenerateInput) { in.Diagnosis = "" }, apperror.KindValidation},
		{"missing treatment", scheduling.StatusCompleted, true, func(in *GenerateInput) { in.Treatment = " " }, apperror.KindValidation},
		{"negative charge", scheduling.StatusCompleted, true, func(in *GenerateInput) { in.OtherCharges = decimal.NewFromInt(-5) }, apperror.KindValidation},
		{"bad next visit", scheduling.StatusCompleted, true, func(in *GenerateInput) { v := "soon"; in.NextVisit = &v }, apperror.KindValidation},
		{"unknown appointment", scheduling.StatusCompleted, true, func(in *GenerateInput) { in.AppointmentID = uuid.New() }, apperror.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			a := env.addAppointment(tt.status, tt.doctor)
			in := generateInput(a.ID)
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := env.svc.GenerateBill(context.Background(), in)
			if !apperror.Is(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
			if len(env.bills.items) != 0 || len(env.records.items) != 0 || len(env.notifier.sent) != 0 {
				t.Error("nothing may be written or sent on failure")
			}
		})
	}
}

func TestService_GenerateBill_Duplicate(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)
	ctx := context.Background()

	if _, err := env.svc.GenerateBill(ctx, generateInput(a.ID)); err != nil {
		t.Fatalf("first bill: %v", err)
	}
	if _, err := env.svc.GenerateBill(ctx, generateInput(a.ID)); !apperror.Is(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if len(env.bills.items) != 1 || len(env.notifier.sent) != 1 {
		t.Error("duplicate must not write or notify")
	}
}

func TestService_GenerateBill_BillInsertFailureRollsBack(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)
	env.bills.err = apperror.Wrap(apperror.KindInternal, nil, "insert failed")

	if _, err := env.svc.GenerateBill(context.Background(), generateInput(a.ID)); err == nil {
		t.Fatal("expected error")
	}
	if len(env.records.items) != 0 {
		t.Error("medical record must roll back with the bill")
	}
	if len(env.notifier.sent) != 0 {
		t.Error("no notification expected")
	}
}

func TestService_MarkPaid(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)
	ctx := context.Background()
	res, err := env.svc.GenerateBill(ctx, generateInput(a.ID))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	b, err := env.svc.MarkPaid(ctx, res.Bill.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if b.PaymentStatus != PaymentPaid || b.PaymentDate == nil {
		t.Errorf("expected paid with a payment date, got %s", b.PaymentStatus)
	}
	if !b.PaymentDate.Equal(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected payment date %v", b.PaymentDate)
	}
	last := env.notifier.sent[len(env.notifier.sent)-1]
	if last.Type != inbox.TypePaymentReceived || last.Data["total"] != "125.50" {
		t.Errorf("unexpected notification %+v", last)
	}

	if _, err := env.svc.MarkPaid(ctx, res.Bill.ID); !apperror.Is(err, apperror.KindConflict) {
		t.Errorf("expected conflict paying twice, got %v", err)
	}
	if _, err := env.svc.MarkPaid(ctx, uuid.New()); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_CallerScoping(t *testing.T) {
	env := newTestEnv()
	a := env.addAppointment(scheduling.StatusCompleted, true)
	ctx := context.Background()
	res, err := env.svc.GenerateBill(ctx, generateInput(a.ID))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stranger := &identity.Patient{ID: uuid.New(), UserID: uuid.New()}
	env.dir.patients = append(env.dir.patients, stranger)

	tests := []struct {
		name    string
		userID  uuid.UUID
		role    identity.Role
		allowed bool
	}{
		{"owner", env.patientUserID, identity.RolePatient, true},
		{"other patient", stranger.UserID, identity.RolePatient, false},
		{"billing doctor", env.doctor.UserID, identity.RoleDoctor, true},
		{"other doctor", uuid.New(), identity.RoleDoctor, false},
		{"admin", uuid.New(), identity.RoleAdmin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.GetBillForCaller(ctx, tt.userID, tt.role, res.Bill.ID)
			if tt.allowed && err != nil {
				t.Errorf("bill: unexpected error %v", err)
			}
			if !tt.allowed && !apperror.Is(err, apperror.KindNotFound) {
				t.Errorf("bill: expected not found, got %v", err)
			}
			_, err = env.svc.GetRecordForCaller(ctx, tt.userID, tt.role, a.ID)
			if tt.allowed && err != nil {
				t.Errorf("record: unexpected error %v", err)
			}
			if !tt.allowed && !apperror.Is(err, apperror.KindNotFound) {
				t.Errorf("record: expected not found, got %v", err)
			}
		})
	}

	bills, total, err := env.svc.ListBillsForCaller(ctx, env.patientUserID, 20, 0)
	if err != nil || total != 1 || bills[0].ID != res.Bill.ID {
		t.Errorf("ListBillsForCaller() = %d, %v", total, err)
	}
	_, total, _ = env.svc.ListBillsForCaller(ctx, stranger.UserID, 20, 0)
	if total != 0 {
		t.Errorf("stranger should have no bills, got %d", total)
	}
}
