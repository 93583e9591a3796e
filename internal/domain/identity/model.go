package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the immutable account type. It decides which profile row exists.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("invalid user type %q", s)
	}
}

// User maps to the users table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Role         Role      `db:"role" json:"user_type"`
	Phone        string    `db:"phone" json:"phone"`
	Address      string    `db:"address" json:"address"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SplitName splits a free-text name on the first space into first and last
// name.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// Profile is the role-specific part of a registration. Only the three
// profile types in this package implement it.
type Profile interface {
	Role() Role
	isProfile()
}

type PatientProfile struct {
	EmergencyContact string
	BloodGroup       string
	MedicalHistory   string
}

func (PatientProfile) Role() Role { return RolePatient }
func (PatientProfile) isProfile() {}

type DoctorProfile struct {
	Specialization  string
	LicenseNumber   string
	ExperienceYears int
	// Department names the department to join. When empty the
	// specialization is used.
	Department      string
	ConsultationFee *decimal.Decimal
	AvailableFrom   *string
	AvailableTo     *string
}

func (DoctorProfile) Role() Role { return RoleDoctor }
func (DoctorProfile) isProfile() {}

func (p DoctorProfile) departmentName() string {
	if d := strings.TrimSpace(p.Department); d != "" {
		return d
	}
	return strings.TrimSpace(p.Specialization)
}

type AdminProfile struct {
	EmployeeID string
	Department string
}

func (AdminProfile) Role() Role { return RoleAdmin }
func (AdminProfile) isProfile() {}

// Department maps to the departments table. Name is unique.
type Department struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Patient maps to the patients table.
type Patient struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	EmergencyContact string    `db:"emergency_contact" json:"emergency_contact"`
	BloodGroup       string    `db:"blood_group" json:"blood_group"`
	MedicalHistory   string    `db:"medical_history" json:"medical_history"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Admin maps to the admins table.
type Admin struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Doctor maps to the doctors table. Name, contact and rating fields are
// joined in on reads.
type Doctor struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Specialization  string          `db:"specialization" json:"specialization"`
	LicenseNumber   string          `db:"license_number" json:"license_number"`
	ExperienceYears int             `db:"experience_years" json:"experience_years"`
	DepartmentID    *uuid.UUID      `db:"department_id" json:"department_id,omitempty"`
	IsAvailable     bool            `db:"is_available" json:"is_available"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	AvailableFrom   *string         `db:"available_from" json:"available_from,omitempty"`
	AvailableTo     *string         `db:"available_to" json:"available_to,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`

	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	DepartmentName string   `json:"department,omitempty"`
	AverageRating  *float64 `json:"average_rating,omitempty"`
	RatingCount    int      `json:"rating_count"`
}

// DisplayName is the "Dr. First Last" form used in patient messages.
func (d *Doctor) DisplayName() string {
	return strings.TrimSpace("Dr. " + d.FirstName + " " + d.LastName)
}

// DoctorRating maps to the doctor_ratings table.
type DoctorRating struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	PatientName string     `json:"patient_name,omitempty"`
	Rating      int        `db:"rating" json:"rating"`
	Comment     string     `db:"comment" json:"comment"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// DoctorFilter narrows ListDoctors.
type DoctorFilter struct {
	DepartmentID *uuid.UUID
	Available    *bool
}
