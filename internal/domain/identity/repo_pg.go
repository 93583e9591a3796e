package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperror"
	"github.com/hms/hms/internal/platform/db"
)

// conflictMessages maps unique constraints onto client-facing messages.
var conflictMessages = map[string]string{
	"users_username_key":         "a user with this username already exists",
	"users_email_key":            "a user with this email already exists",
	"doctors_license_number_key": "a doctor with this license number already exists",
	"doctors_user_id_key":        "user already has a doctor profile",
	"patients_user_id_key":       "user already has a patient profile",
	"admins_user_id_key":         "user already has an admin profile",
	"admins_employee_id_key":     "an admin with this employee id already exists",
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
	if col, ok := db.ValueTooLarge(err); ok {
		if col == "" {
			return apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("%s has a value that is too long", what))
		}
		return apperror.Wrap(apperror.KindValidation, err, fmt.Sprintf("%s %s is too long", what, col))
	}
	return fmt.Errorf("%s: %w", what, err)
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const userCols = `id, username, email, first_name, last_name, role, phone, address,
	password_hash, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Role,
		&u.Phone, &u.Address, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "user")
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, role, phone, address, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.Role, u.Phone, u.Address, u.PasswordHash,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err, "user")
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *userRepoPG) GetByLogin(ctx context.Context, handle string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `
		SELECT `+userCols+` FROM users
		WHERE username = $1 OR lower(email) = lower($1)
		ORDER BY (username = $1) DESC
		LIMIT 1`, handle))
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, user_id, emergency_contact, blood_group, medical_history, created_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.UserID, &p.EmergencyContact, &p.BloodGroup, &p.MedicalHistory, &p.CreatedAt); err != nil {
		return nil, mapErr(err, "patient")
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, emergency_contact, blood_group, medical_history)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		p.ID, p.UserID, p.EmergencyContact, p.BloodGroup, p.MedicalHistory,
	).Scan(&p.CreatedAt)
	return mapErr(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
}

// =========== Admin Repository ===========

type adminRepoPG struct{ pool *pgxpool.Pool }

func NewAdminRepoPG(pool *pgxpool.Pool) AdminRepository { return &adminRepoPG{pool: pool} }

func (r *adminRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admins (id, user_id, employee_id, department)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		a.ID, a.UserID, a.EmployeeID, a.Department,
	).Scan(&a.CreatedAt)
	return mapErr(err, "admin")
}

func (r *adminRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error) {
	var a Admin
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, employee_id, department, created_at FROM admins WHERE user_id = $1`, userID,
	).Scan(&a.ID, &a.UserID, &a.EmployeeID, &a.Department, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "admin")
	}
	return &a, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const doctorSelect = `SELECT d.id, d.user_id, d.specialization, d.license_number, d.experience_years,
	d.department_id, d.is_available, d.consultation_fee,
	to_char(d.available_from, 'HH24:MI'), to_char(d.available_to, 'HH24:MI'), d.created_at,
	u.first_name, u.last_name, u.email, u.phone, COALESCE(dep.name, ''),
	(SELECT AVG(dr.rating)::float8 FROM doctor_ratings dr WHERE dr.doctor_id = d.id),
	(SELECT COUNT(*) FROM doctor_ratings dr WHERE dr.doctor_id = d.id)
	FROM doctors d
	JOIN users u ON u.id = d.user_id
	LEFT JOIN departments dep ON dep.id = d.department_id`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Specialization, &d.LicenseNumber, &d.ExperienceYears,
		&d.DepartmentID, &d.IsAvailable, &d.ConsultationFee,
		&d.AvailableFrom, &d.AvailableTo, &d.CreatedAt,
		&d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.DepartmentName,
		&d.AverageRating, &d.RatingCount)
	if err != nil {
		return nil, mapErr(err, "doctor")
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, specialization, license_number, experience_years,
			department_id, is_available, consultation_fee, available_from, available_to)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::time,$10::time)
		RETURNING created_at`,
		d.ID, d.UserID, d.Specialization, d.LicenseNumber, d.ExperienceYears,
		d.DepartmentID, d.IsAvailable, d.ConsultationFee, d.AvailableFrom, d.AvailableTo,
	).Scan(&d.CreatedAt)
	return mapErr(err, "doctor")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, doctorSelect+` WHERE d.id = $1`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, doctorSelect+` WHERE d.user_id = $1`, userID))
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.DepartmentID != nil {
		where += fmt.Sprintf(` AND d.department_id = $%d`, idx)
		args = append(args, *f.DepartmentID)
		idx++
	}
	if f.Available != nil {
		where += fmt.Sprintf(` AND d.is_available = $%d`, idx)
		args = append(args, *f.Available)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors d`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count doctors")
	}

	query := doctorSelect + where + fmt.Sprintf(` ORDER BY u.last_name, u.first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.collect(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *doctorRepoPG) FindByFirstName(ctx context.Context, fragment string) ([]*Doctor, error) {
	return r.collect(ctx, doctorSelect+`
		WHERE u.first_name ILIKE '%' || $1 || '%'
		ORDER BY d.created_at ASC, d.id ASC`, escapeLike(fragment))
}

func (r *doctorRepoPG) collect(ctx context.Context, query string, args ...interface{}) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list doctors")
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) SetAvailability(ctx context.Context, id uuid.UUID, available bool, from, to *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET is_available = $2, available_from = $3::time, available_to = $4::time
		WHERE id = $1`, id, available, from, to)
	if err != nil {
		return mapErr(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFoundf("doctor not found")
	}
	return nil
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const departmentCols = `id, name, description, created_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
		return nil, mapErr(err, "department")
	}
	return &d, nil
}

// GetOrCreate upserts on the unique name. The no-op update makes RETURNING
// yield the existing row on conflict.
func (r *departmentRepoPG) GetOrCreate(ctx context.Context, name string) (*Department, error) {
	return scanDepartment(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO departments (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+departmentCols, uuid.New(), name))
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	return scanDepartment(r.conn(ctx).QueryRow(ctx, `SELECT `+departmentCols+` FROM departments WHERE id = $1`, id))
}

func (r *departmentRepoPG) List(ctx context.Context) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+departmentCols+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, mapErr(err, "list departments")
	}
	defer rows.Close()

	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// =========== Rating Repository ===========

type ratingRepoPG struct{ pool *pgxpool.Pool }

func NewRatingRepoPG(pool *pgxpool.Pool) RatingRepository { return &ratingRepoPG{pool: pool} }

func (r *ratingRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *ratingRepoPG) Create(ctx context.Context, dr *DoctorRating) error {
	dr.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_ratings (id, doctor_id, patient_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		dr.ID, dr.DoctorID, dr.PatientID, dr.Rating, dr.Comment,
	).Scan(&dr.CreatedAt)
	return mapErr(err, "rating")
}

func (r *ratingRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*DoctorRating, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_ratings WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count ratings")
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT dr.id, dr.doctor_id, dr.patient_id, COALESCE(u.first_name || ' ' || u.last_name, ''),
			dr.rating, dr.comment, dr.created_at
		FROM doctor_ratings dr
		LEFT JOIN patients p ON p.id = dr.patient_id
		LEFT JOIN users u ON u.id = p.user_id
		WHERE dr.doctor_id = $1
		ORDER BY dr.created_at DESC
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err, "list ratings")
	}
	defer rows.Close()

	var items []*DoctorRating
	for rows.Next() {
		var dr DoctorRating
		if err := rows.Scan(&dr.ID, &dr.DoctorID, &dr.PatientID, &dr.PatientName,
			&dr.Rating, &dr.Comment, &dr.CreatedAt); err != nil {
			return nil, 0, mapErr(err, "scan rating")
		}
		items = append(items, &dr)
	}
	return items, total, rows.Err()
}
