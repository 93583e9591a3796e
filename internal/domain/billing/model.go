package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the closed set of bill payment states.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

// Charges are the itemised amounts of a bill.
type Charges struct {
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	MedicationCost  decimal.Decimal `json:"medication_cost"`
	TestCost        decimal.Decimal `json:"test_cost"`
	OtherCharges    decimal.Decimal `json:"other_charges"`
}

// Total is the exact sum of all charges.
func (c Charges) Total() decimal.Decimal {
	return c.ConsultationFee.Add(c.MedicationCost).Add(c.TestCost).Add(c.OtherCharges)
}

// MaxAmount is the largest value a NUMERIC(10,2) money column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Validate rejects negative amounts, anything finer than a cent, and any
// amount or total above MaxAmount.
func (c Charges) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"consultation_fee", c.ConsultationFee},
		{"medication_cost", c.MedicationCost},
		{"test_cost", c.TestCost},
		{"other_charges", c.OtherCharges},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		if !f.value.Equal(f.value.Round(2)) {
			return fmt.Errorf("%s must have at most two decimal places", f.name)
		}
		if f.value.GreaterThan(MaxAmount) {
			return fmt.Errorf("%s must not exceed %s", f.name, MaxAmount.StringFixed(2))
		}
	}
	if total := c.Total(); total.GreaterThan(MaxAmount) {
		return fmt.Errorf("total amount %s exceeds %s", total.StringFixed(2), MaxAmount.StringFixed(2))
	}
	return nil
}

// MedicalRecord maps to the medical_records table.
type MedicalRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Treatment     string    `db:"treatment" json:"treatment"`
	Prescription  string    `db:"prescription" json:"prescription"`
	NextVisit     *string   `db:"next_visit" json:"next_visit,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
}

// Bill maps to the bills table. TotalAmount is always Charges.Total().
type Bill struct {
	ID              uuid.UUID `db:"id" json:"id"`
	AppointmentID   uuid.UUID `db:"appointment_id" json:"appointment_id"`
	MedicalRecordID uuid.UUID `db:"medical_record_id" json:"medical_record_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Charges
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentDate   *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`

	PatientUserID   uuid.UUID `json:"-"`
	PatientEmail    string    `json:"-"`
	PatientPhone    string    `json:"-"`
	PatientName     string    `json:"patient_name"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate string    `json:"appointment_date"`
}

// Recompute derives TotalAmount from the charges.
func (b *Bill) Recompute() {
	b.TotalAmount = b.Charges.Total()
}

// ParseNextVisit validates an optional YYYY-MM-DD follow-up date.
func ParseNextVisit(s *string) (*string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, fmt.Errorf("next_visit must be YYYY-MM-DD, got %q", *s)
	}
	v := t.Format("2006-01-02")
	return &v, nil
}
