package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Day is the calendar day the dashboards are computed for. Start and End
// bound it as instants in the clock's location.
type Day struct {
	Date  string
	Start time.Time
	End   time.Time
}

func dayOf(t time.Time) Day {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Day{Date: start.Format("2006-01-02"), Start: start, End: start.AddDate(0, 0, 1)}
}

// Store computes the dashboard counters.
type Store interface {
	AdminStats(ctx context.Context, day Day) (AdminStats, error)
	DoctorStats(ctx context.Context, doctorID uuid.UUID, day Day) (DoctorStats, error)
	PatientStats(ctx context.Context, patientID uuid.UUID, day Day) (PatientStats, error)
}
