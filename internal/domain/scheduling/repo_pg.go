package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const appointmentSelect = `SELECT a.id, a.patient_id, a.doctor_id, a.department_id, a.preferred_doctor,
	to_char(a.appointment_date, 'YYYY-MM-DD'), to_char(a.appointment_time, 'HH24:MI'),
	a.symptoms, a.status, a.notes, a.created_at, a.updated_at,
	pu.id, TRIM(pu.first_name || ' ' || pu.last_name), pu.email, pu.phone,
	COALESCE('Dr. ' || NULLIF(TRIM(du.first_name || ' ' || du.last_name), ''), ''),
	dep.name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN departments dep ON dep.id = a.department_id
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN users du ON du.id = d.user_id`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.DepartmentID, &a.PreferredDoctor,
		&a.Date, &a.Time, &a.Symptoms, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientUserID, &a.PatientName, &a.PatientEmail, &a.PatientPhone,
		&a.DoctorName, &a.DepartmentName)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperror.NotFoundf("appointment not found")
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, department_id, preferred_doctor,
			appointment_date, appointment_time, symptoms, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7::time,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.DepartmentID, a.PreferredDoctor,
		a.Date, a.Time, a.Symptoms, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if fk, ok := db.ForeignKeyViolation(err); ok {
			return apperror.Wrap(apperror.KindNotFound, err, fmt.Sprintf("referenced record missing (%s)", fk))
		}
		if col, ok := db.ValueTooLarge(err); ok {
			return apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("appointment %s is too long", col))
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) Transition(ctx context.Context, id uuid.UUID, from, to Status, doctorID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET status = $3, doctor_id = COALESCE($4, doctor_id), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to, doctorID)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflictf("appointment is no longer %s", from)
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != nil {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, *f.Status)
		idx++
	}
	if f.Date != nil {
		where += fmt.Sprintf(` AND a.appointment_date = $%d::date`, idx)
		args = append(args, *f.Date)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := appointmentSelect + where + fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
