package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (s *storePG) AdminStats(ctx context.Context, day Day) (AdminStats, error) {
	var st AdminStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE status = 'pending'),
			(SELECT COUNT(*) FROM appointments WHERE status = 'approved'
				AND created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM doctors),
			(SELECT COUNT(*) FROM doctors WHERE is_available)`,
		day.Start, day.End,
	).Scan(&st.PendingCount, &st.ApprovedToday, &st.TotalDoctors, &st.AvailableDoctors)
	if err != nil {
		return AdminStats{}, fmt.Errorf("admin stats: %w", err)
	}
	return st, nil
}

func (s *storePG) DoctorStats(ctx context.Context, doctorID uuid.UUID, day Day) (DoctorStats, error) {
	var st DoctorStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'approved')
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2::date`,
		doctorID, day.Date,
	).Scan(&st.TotalToday, &st.Completed, &st.Scheduled)
	if err != nil {
		return DoctorStats{}, fmt.Errorf("doctor stats: %w", err)
	}
	return st, nil
}

func (s *storePG) PatientStats(ctx context.Context, patientID uuid.UUID, day Day) (PatientStats, error) {
	var st PatientStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'approved' AND appointment_date >= $2::date),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			(SELECT COUNT(*) FROM bills WHERE patient_id = $1 AND payment_status = 'pending')
		FROM appointments
		WHERE patient_id = $1`,
		patientID, day.Date,
	).Scan(&st.Upcoming, &st.Pending, &st.Completed, &st.UnpaidBills)
	if err != nil {
		return PatientStats{}, fmt.Errorf("patient stats: %w", err)
	}
	return st, nil
}
