package dashboard

import (
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/scheduling"
)

type AdminStats struct {
	PendingCount     int `json:"pending_count"`
	ApprovedToday    int `json:"approved_today"`
	TotalDoctors     int `json:"total_doctors"`
	AvailableDoctors int `json:"available_doctors"`
}

type DoctorStats struct {
	TotalToday int `json:"total_today"`
	Completed  int `json:"completed"`
	Scheduled  int `json:"scheduled"`
}

type PatientStats struct {
	Upcoming    int `json:"upcoming"`
	Pending     int `json:"pending"`
	Completed   int `json:"completed"`
	UnpaidBills int `json:"unpaid_bills"`
}

type AdminView struct {
	PendingAppointments []*scheduling.Appointment `json:"pending_appointments"`
	Stats               AdminStats                `json:"stats"`
}

type DoctorView struct {
	Appointments []*scheduling.Appointment `json:"appointments"`
	Stats        DoctorStats               `json:"stats"`
}

type PatientView struct {
	Appointments []*scheduling.Appointment `json:"appointments"`
	Bills        []*billing.Bill           `json:"bills"`
	Stats        PatientStats              `json:"stats"`
}
