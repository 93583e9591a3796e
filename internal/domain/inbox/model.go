package inbox

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeAppointmentBooking   Type = "appointment_booking"
	TypeAppointmentApproval  Type = "appointment_approval"
	TypeAppointmentRejection Type = "appointment_rejection"
	TypeAppointmentReminder  Type = "appointment_reminder"
	TypeBillGenerated        Type = "bill_generated"
	TypePaymentReceived      Type = "payment_received"
)

var knownTypes = map[Type]bool{
	TypeAppointmentBooking:   true,
	TypeAppointmentApproval:  true,
	TypeAppointmentRejection: true,
	TypeAppointmentReminder:  true,
	TypeBillGenerated:        true,
	TypePaymentReceived:      true,
}

func (t Type) Valid() bool { return knownTypes[t] }

// Title turns the type into a readable fallback title, e.g.
// "Appointment Booking".
func (t Type) Title() string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Notification maps to the notifications table. EmailSent and SMSSent record
// that a channel was attempted, not that the provider delivered it.
type Notification struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Type        Type      `db:"notification_type" json:"notification_type"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	EmailSent   bool      `db:"email_sent" json:"email_sent"`
	SMSSent     bool      `db:"sms_sent" json:"sms_sent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Recipient is who a notification is for and how to reach them.
type Recipient struct {
	UserID uuid.UUID
	Email  string
	Phone  string
}

// Delivery reports what a dispatch attempted. It is informational only.
type Delivery struct {
	NotificationID uuid.UUID
	EmailAttempted bool
	SMSAttempted   bool
	EmailErr       error
	SMSErr         error
	Persisted      bool
}
