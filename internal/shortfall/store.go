package shortfall

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate reports that a shortfall row already exists for the
// vehicle/month pair. The unique constraint backs up the pre-check, so a
// racing insert surfaces as this error instead of a second row.
var ErrDuplicate = errors.New("shortfall: row exists for vehicle and month")

// Loan is an active financing agreement on a fleet vehicle.
type Loan struct {
	ID                 uuid.UUID
	VehicleID          uuid.UUID
	LessorID           uuid.UUID
	MonthlyInstallment int64
}

// Shortfall is the gap between a vehicle's required installment and its
// rental earnings for one calendar month. Amounts are whole DKK.
type Shortfall struct {
	VehicleID       uuid.UUID
	LessorID        uuid.UUID
	Month           string
	RequiredAmount  int64
	EarnedAmount    int64
	ShortfallAmount int64
	Status          string
	Notes           string
}

// Store is the persistence surface the batch needs.
type Store interface {
	ListActiveLoans(ctx context.Context) ([]Loan, error)
	VehicleRegistration(ctx context.Context, vehicleID uuid.UUID) (string, error)
	ShortfallExists(ctx context.Context, vehicleID uuid.UUID, month string) (bool, error)
	DeleteShortfall(ctx context.Context, vehicleID uuid.UUID, month string) error
	CompletedEarnings(ctx context.Context, vehicleID uuid.UUID, monthStart, monthEnd time.Time) (int64, error)
	InsertShortfall(ctx context.Context, s Shortfall) error
}

// PGStore implements Store over a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (p PGStore) ListActiveLoans(ctx context.Context) ([]Loan, error) {
	rows, err := p.Pool.Query(ctx, `
		SELECT id, vehicle_id, lessor_id, monthly_installment
		FROM fleet_vehicle_loans
		WHERE status = 'active'
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.VehicleID, &l.LessorID, &l.MonthlyInstallment); err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (p PGStore) VehicleRegistration(ctx context.Context, vehicleID uuid.UUID) (string, error) {
	var registration string
	err := p.Pool.QueryRow(ctx,
		`SELECT registration FROM vehicles WHERE id = $1`, vehicleID).Scan(&registration)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return registration, err
}

func (p PGStore) ShortfallExists(ctx context.Context, vehicleID uuid.UUID, month string) (bool, error) {
	var exists bool
	err := p.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fleet_coverage_shortfalls
			WHERE vehicle_id = $1 AND month = $2
		)`, vehicleID, month).Scan(&exists)
	return exists, err
}

func (p PGStore) DeleteShortfall(ctx context.Context, vehicleID uuid.UUID, month string) error {
	_, err := p.Pool.Exec(ctx,
		`DELETE FROM fleet_coverage_shortfalls WHERE vehicle_id = $1 AND month = $2`,
		vehicleID, month)
	return err
}

func (p PGStore) CompletedEarnings(ctx context.Context, vehicleID uuid.UUID, monthStart, monthEnd time.Time) (int64, error) {
	var total int64
	err := p.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price), 0)
		FROM bookings
		WHERE vehicle_id = $1
		  AND status = 'completed'
		  AND end_date >= $2
		  AND end_date <= $3`,
		vehicleID, monthStart, monthEnd).Scan(&total)
	return total, err
}

func (p PGStore) InsertShortfall(ctx context.Context, s Shortfall) error {
	_, err := p.Pool.Exec(ctx, `
		INSERT INTO fleet_coverage_shortfalls
			(vehicle_id, lessor_id, month, required_amount, earned_amount, shortfall_amount, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.VehicleID, s.LessorID, s.Month, s.RequiredAmount, s.EarnedAmount, s.ShortfallAmount, s.Status, s.Notes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
