package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists every allowed move. Completed and cancelled are terminal
// and nothing re-enters pending.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusApproved: true, StatusCancelled: true},
	StatusApproved:  {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("invalid appointment status %q", s)
	}
	return st, nil
}

func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Appointment maps to the appointments table. The patient, doctor and
// department fields after CreatedAt are joined in on reads.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DepartmentID    uuid.UUID  `db:"department_id" json:"department_id"`
	PreferredDoctor string     `db:"preferred_doctor" json:"preferred_doctor"`
	Date            string     `db:"appointment_date" json:"appointment_date"`
	Time            string     `db:"appointment_time" json:"appointment_time"`
	Symptoms        string     `db:"symptoms" json:"symptoms"`
	Status          Status     `db:"status" json:"status"`
	Notes           string     `db:"notes" json:"notes"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	PatientUserID  uuid.UUID `json:"patient_user_id"`
	PatientName    string    `json:"patient_name"`
	PatientEmail   string    `json:"patient_email"`
	PatientPhone   string    `json:"patient_phone"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	DepartmentName string    `json:"department_name"`
}

// TimeLabel renders the stored HH:MM time as "3:04 PM".
func (a *Appointment) TimeLabel() string {
	t, err := time.Parse(timeLayout, a.Time)
	if err != nil {
		return a.Time
	}
	return t.Format("3:04 PM")
}

// AppointmentFilter narrows List. Zero values are ignored.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Date      *string
}

// BookingInput is the public booking request. An unknown email provisions a
// guest patient.
type BookingInput struct {
	Email            string
	Name             string
	Phone            string
	Address          string
	EmergencyContact string
	Department       string
	PreferredDoctor  string
	Date             string
	Time             string
	Symptoms         string
}

// DoctorSelector names the doctor to assign on approval. DoctorID wins over
// Name when both are set.
type DoctorSelector struct {
	DoctorID *uuid.UUID
	Name     string
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var clockLayouts = []string{"3:04 PM", "3:04PM", "03:04 PM", timeLayout, "15:04:05"}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return t.Format(dateLayout), nil
}

// ParseClock accepts "h:mm AM/PM" or 24-hour "HH:MM" and normalises to
// HH:MM.
func ParseClock(s string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(timeLayout), nil
		}
	}
	return "", fmt.Errorf("time must be h:mm AM/PM, got %q", s)
}
