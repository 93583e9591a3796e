package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/db"
)

var conflictMessages = map[string]string{
	"medical_records_appointment_id_key": "a medical record already exists for this appointment",
	"bills_appointment_id_key":           "a bill already exists for this appointment",
	"bills_medical_record_id_key":        "a bill already exists for this medical record",
}

func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return apperror.NotFoundf("%s not found", what)
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		msg, known := conflictMessages[constraint]
		if !known {
			msg = fmt.Sprintf("%s already exists", what)
		}
		return apperror.Wrap(apperror.KindConflict, err, msg)
	}
	if constraint, ok := db.CheckViolation(err); ok {
		return apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("%s violates %s", what, constraint))
	}
	if _, ok := db.ValueTooLarge(err); ok {
		return apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("%s amount exceeds 99999999.99", what))
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperror.Wrap(apperror.KindNotFound, err, "referenced appointment, patient or doctor not found")
	}
	return fmt.Errorf("%s: %w", what, err)
}

// =========== Medical Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordSelect = `SELECT m.id, m.appointment_id, m.patient_id, m.doctor_id, m.diagnosis,
	m.treatment, m.prescription, to_char(m.next_visit, 'YYYY-MM-DD'), m.created_at,
	TRIM(pu.first_name || ' ' || pu.last_name), TRIM(du.first_name || ' ' || du.last_name)
	FROM medical_records m
	JOIN patients p ON p.id = m.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = m.doctor_id
	JOIN users du ON du.id = d.user_id`

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, appointment_id, patient_id, doctor_id, diagnosis,
			treatment, prescription, next_visit)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::date)
		RETURNING created_at`,
		m.ID, m.AppointmentID, m.PatientID, m.DoctorID, m.Diagnosis,
		m.Treatment, m.Prescription, m.NextVisit,
	).Scan(&m.CreatedAt)
	return mapErr(err, "medical record")
}

func (r *recordRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	var m MedicalRecord
	err := r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE m.appointment_id = $1`, appointmentID).Scan(
		&m.ID, &m.AppointmentID, &m.PatientID, &m.DoctorID, &m.Diagnosis,
		&m.Treatment, &m.Prescription, &m.NextVisit, &m.CreatedAt,
		&m.PatientName, &m.DoctorName)
	if err != nil {
		return nil, mapErr(err, "medical record")
	}
	return &m, nil
}

// =========== Bill Repository ===========

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

func (r *billRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const billSelect = `SELECT b.id, b.appointment_id, b.medical_record_id, b.patient_id, b.doctor_id,
	b.consultation_fee, b.medication_cost, b.test_cost, b.other_charges, b.total_amount,
	b.payment_status, b.payment_date, b.created_at,
	pu.id, pu.email, pu.phone, TRIM(pu.first_name || ' ' || pu.last_name),
	TRIM(du.first_name || ' ' || du.last_name), to_char(a.appointment_date, 'YYYY-MM-DD')
	FROM bills b
	JOIN patients p ON p.id = b.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = b.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN appointments a ON a.id = b.appointment_id`

func (r *billRepoPG) scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.AppointmentID, &b.MedicalRecordID, &b.PatientID, &b.DoctorID,
		&b.ConsultationFee, &b.MedicationCost, &b.TestCost, &b.OtherCharges, &b.TotalAmount,
		&b.PaymentStatus, &b.PaymentDate, &b.CreatedAt,
		&b.PatientUserID, &b.PatientEmail, &b.PatientPhone, &b.PatientName,
		&b.DoctorName, &b.AppointmentDate)
	if err != nil {
		return nil, mapErr(err, "bill")
	}
	return &b, nil
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	b.Recompute()
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentPending
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bills (id, appointment_id, medical_record_id, patient_id, doctor_id,
			consultation_fee, medication_cost, test_cost, other_charges, total_amount, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		b.ID, b.AppointmentID, b.MedicalRecordID, b.PatientID, b.DoctorID,
		b.ConsultationFee, b.MedicationCost, b.TestCost, b.OtherCharges, b.TotalAmount, b.PaymentStatus,
	).Scan(&b.CreatedAt)
	return mapErr(err, "bill")
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.scanBill(r.conn(ctx).QueryRow(ctx, billSelect+` WHERE b.id = $1`, id))
}

func (r *billRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Bill, error) {
	return r.scanBill(r.conn(ctx).QueryRow(ctx, billSelect+` WHERE b.appointment_id = $1`, appointmentID))
}

func (r *billRepoPG) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bills SET payment_status = $2, payment_date = $3
		WHERE id = $1 AND payment_status <> $2`,
		id, PaymentPaid, at)
	if err != nil {
		return mapErr(err, "bill")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bills WHERE id = $1)`, id).Scan(&exists); err != nil {
			return mapErr(err, "bill")
		}
		if !exists {
			return apperror.NotFoundf("bill not found")
		}
		return apperror.Conflictf("bill is already paid")
	}
	return nil
}

func (r *billRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bills WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, billSelect+` WHERE b.patient_id = $1
		ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var items []*Bill
	for rows.Next() {
		b, err := r.scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
