package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lejio/backend-fleet/internal/lock"
	"github.com/lejio/backend-fleet/internal/obs"
)

const lockKey = "batch:fleet-settlements"

// Commission rates in basis points by subscription plan.
var commissionBps = map[string]int64{
	"fleet_private": 3000,
	"fleet_basic":   2000,
	"fleet_premium": 3500,
}

// Summary is the result of one payout batch run.
type Summary struct {
	SettlementMonth    string   `json:"settlementMonth"`
	Processed          int      `json:"processed"`
	SettlementsCreated int      `json:"settlementsCreated"`
	AlreadyProcessed   int      `json:"alreadyProcessed"`
	NoRevenue          int      `json:"noRevenue"`
	Errors             []string `json:"errors"`
}

// Service runs the monthly fleet settlement over all fleet-plan lessors.
type Service struct {
	Store Store
	Log   zerolog.Logger

	Locker  *lock.Locker
	LockTTL time.Duration
}

// Run settles the calendar month preceding now. Per-lessor failures are
// isolated in the summary's Errors.
func (s *Service) Run(ctx context.Context, now time.Time) (Summary, error) {
	if s.Locker != nil {
		var summary Summary
		err := s.Locker.WithLock(ctx, lockKey, s.LockTTL, func(ctx context.Context) error {
			var runErr error
			summary, runErr = s.run(ctx, now)
			return runErr
		})
		return summary, err
	}
	return s.run(ctx, now)
}

func (s *Service) run(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()
	monthStart, monthEnd, settlementMonth := settlementWindow(now)
	summary := Summary{SettlementMonth: settlementMonth, Errors: []string{}}

	s.Log.Info().
		Str("month", settlementMonth).
		Msg("fleet settlement batch starting")

	lessors, err := s.Store.ListFleetLessors(ctx)
	if err != nil {
		if obs.PayoutRunsTotal != nil {
			obs.PayoutRunsTotal.WithLabelValues("error").Inc()
		}
		return summary, fmt.Errorf("list fleet lessors: %w", err)
	}
	s.Log.Info().Int("count", len(lessors)).Msg("found fleet lessors")

	for _, lessor := range lessors {
		s.processLessor(ctx, lessor, monthStart, monthEnd, settlementMonth, &summary)
	}

	s.Log.Info().
		Int("processed", summary.Processed).
		Int("created", summary.SettlementsCreated).
		Int("already_processed", summary.AlreadyProcessed).
		Int("no_revenue", summary.NoRevenue).
		Int("errors", len(summary.Errors)).
		Msg("fleet settlement batch complete")

	if obs.PayoutRunsTotal != nil {
		obs.PayoutRunsTotal.WithLabelValues("ok").Inc()
	}
	if obs.BatchDuration != nil {
		obs.BatchDuration.WithLabelValues("fleet-settlements").Observe(obs.DurationMillis(time.Since(start)))
	}
	return summary, nil
}

func (s *Service) processLessor(ctx context.Context, lessor Lessor, monthStart, monthEnd time.Time, month string, summary *Summary) {
	rate, ok := commissionBps[lessor.Plan]
	if !ok {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Lessor %s: unknown plan %q", lessor.ID, lessor.Plan))
		return
	}

	exists, err := s.Store.SettlementExists(ctx, lessor.ID, month)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Lessor %s: %v", lessor.ID, err))
		return
	}
	if exists {
		s.Log.Debug().Str("lessor", lessor.ID.String()).Str("month", month).Msg("settlement already processed")
		summary.AlreadyProcessed++
		return
	}

	revenue, bookings, err := s.Store.CompletedRevenue(ctx, lessor.ID, monthStart, monthEnd)
	if err != nil {
		s.Log.Error().Err(err).Str("lessor", lessor.ID.String()).Msg("fetch revenue")
		summary.Errors = append(summary.Errors, fmt.Sprintf("Lessor %s: %v", lessor.ID, err))
		return
	}
	if revenue == 0 {
		summary.NoRevenue++
		summary.Processed++
		return
	}

	commission := revenue * rate / 10000
	row := FleetSettlement{
		LessorID:        lessor.ID,
		SettlementMonth: month,
		GrossRevenue:    revenue,
		CommissionRate:  rate,
		Commission:      commission,
		NetPayout:       revenue - commission,
		BookingCount:    bookings,
		Status:          "pending",
	}

	s.Log.Info().
		Str("lessor", lessor.ID.String()).
		Str("plan", lessor.Plan).
		Int64("revenue", revenue).
		Int64("commission", commission).
		Int64("net_payout", row.NetPayout).
		Msg("fleet settlement calculated")

	if err := s.Store.InsertSettlement(ctx, row); err != nil {
		if err == ErrDuplicate {
			summary.AlreadyProcessed++
		} else {
			s.Log.Error().Err(err).Str("lessor", lessor.ID.String()).Msg("create settlement")
			summary.Errors = append(summary.Errors, fmt.Sprintf("Lessor %s: %v", lessor.ID, err))
			return
		}
	} else {
		summary.SettlementsCreated++
		if obs.PayoutsCreatedTotal != nil {
			obs.PayoutsCreatedTotal.Inc()
		}
	}
	summary.Processed++
}

func settlementWindow(now time.Time) (time.Time, time.Time, string) {
	year, month, _ := now.Date()
	firstOfCurrent := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthStart := firstOfCurrent.AddDate(0, -1, 0)
	monthEnd := firstOfCurrent.AddDate(0, 0, -1)
	return monthStart, monthEnd, monthStart.Format("2006-01")
}
