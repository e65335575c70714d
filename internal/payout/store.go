package payout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate signals the (lessor_id, settlement_month) row already exists.
var ErrDuplicate = errors.New("fleet settlement already exists")

// Lessor is a fleet account eligible for a monthly payout.
type Lessor struct {
	ID   uuid.UUID
	Plan string
}

// FleetSettlement is the persisted payout row for one lessor and month.
type FleetSettlement struct {
	LessorID        uuid.UUID
	SettlementMonth string
	GrossRevenue    int64
	CommissionRate  int64 // basis points
	Commission      int64
	NetPayout       int64
	BookingCount    int
	Status          string
}

// Store is the persistence surface the payout batch needs.
type Store interface {
	ListFleetLessors(ctx context.Context) ([]Lessor, error)
	SettlementExists(ctx context.Context, lessorID uuid.UUID, month string) (bool, error)
	CompletedRevenue(ctx context.Context, lessorID uuid.UUID, from, to time.Time) (int64, int, error)
	InsertSettlement(ctx context.Context, row FleetSettlement) error
}

// PGStore implements Store over a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s *PGStore) ListFleetLessors(ctx context.Context) ([]Lessor, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, subscription_plan
		FROM profiles
		WHERE subscription_plan IN ('fleet_private', 'fleet_basic', 'fleet_premium')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessors []Lessor
	for rows.Next() {
		var l Lessor
		if err := rows.Scan(&l.ID, &l.Plan); err != nil {
			return nil, err
		}
		lessors = append(lessors, l)
	}
	return lessors, rows.Err()
}

func (s *PGStore) SettlementExists(ctx context.Context, lessorID uuid.UUID, month string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fleet_settlements
			WHERE lessor_id = $1 AND settlement_month = $2
		)`, lessorID, month).Scan(&exists)
	return exists, err
}

func (s *PGStore) CompletedRevenue(ctx context.Context, lessorID uuid.UUID, from, to time.Time) (int64, int, error) {
	var revenue int64
	var count int
	err := s.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price), 0), COUNT(*)
		FROM bookings
		WHERE lessor_id = $1
		  AND status = 'completed'
		  AND end_date >= $2
		  AND end_date <= $3`, lessorID, from, to).Scan(&revenue, &count)
	return revenue, count, err
}

func (s *PGStore) InsertSettlement(ctx context.Context, row FleetSettlement) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO fleet_settlements (
			lessor_id, settlement_month, gross_revenue, commission_rate_bps,
			commission_amount, net_payout, booking_count, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.LessorID, row.SettlementMonth, row.GrossRevenue, row.CommissionRate,
		row.Commission, row.NetPayout, row.BookingCount, row.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
