package shortfall

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lejio/backend-fleet/internal/lock"
	"github.com/lejio/backend-fleet/internal/obs"
)

const lockKey = "batch:coverage-shortfalls"

// Summary is the result of one batch run.
type Summary struct {
	SettlementMonth   string   `json:"settlementMonth"`
	Processed         int      `json:"processed"`
	ShortfallsCreated int      `json:"shortfallsCreated"`
	ShortfallsUpdated int      `json:"shortfallsUpdated"`
	NoShortfall       int      `json:"noShortfall"`
	Errors            []string `json:"errors"`
}

// Service runs the monthly coverage shortfall calculation over all active
// vehicle loans.
type Service struct {
	Store Store
	Log   zerolog.Logger

	// AllowRecompute replaces an already-closed month instead of skipping it.
	AllowRecompute bool

	// Locker, when set, serialises concurrent batch runs.
	Locker  *lock.Locker
	LockTTL time.Duration
}

// Run computes shortfalls for the calendar month preceding now. Per-loan
// failures are isolated: they are reported in the summary's Errors and the
// batch moves on to the next loan.
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
		Time("month_start", monthStart).
		Time("month_end", monthEnd).
		Msg("coverage shortfall batch starting")

	loans, err := s.Store.ListActiveLoans(ctx)
	if err != nil {
		if obs.ShortfallRunsTotal != nil {
			obs.ShortfallRunsTotal.WithLabelValues("error").Inc()
		}
		return summary, fmt.Errorf("list active loans: %w", err)
	}
	s.Log.Info().Int("count", len(loans)).Msg("found active loans")

	for _, loan := range loans {
		s.processLoan(ctx, loan, monthStart, monthEnd, settlementMonth, &summary)
	}

	s.Log.Info().
		Int("processed", summary.Processed).
		Int("created", summary.ShortfallsCreated).
		Int("already_processed", summary.ShortfallsUpdated).
		Int("no_shortfall", summary.NoShortfall).
		Int("errors", len(summary.Errors)).
		Msg("coverage shortfall batch complete")

	if obs.ShortfallRunsTotal != nil {
		obs.ShortfallRunsTotal.WithLabelValues("ok").Inc()
	}
	if obs.BatchDuration != nil {
		obs.BatchDuration.WithLabelValues("coverage-shortfalls").Observe(obs.DurationMillis(time.Since(start)))
	}
	return summary, nil
}

func (s *Service) processLoan(ctx context.Context, loan Loan, monthStart, monthEnd time.Time, month string, summary *Summary) {
	// Registration is cosmetic; fall back to the vehicle id when missing.
	vehicleRef := loan.VehicleID.String()
	if reg, err := s.Store.VehicleRegistration(ctx, loan.VehicleID); err == nil && reg != "" {
		vehicleRef = reg
	}

	exists, err := s.Store.ShortfallExists(ctx, loan.VehicleID, month)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Vehicle %s: %v", loan.VehicleID, err))
		return
	}
	if exists {
		if !s.AllowRecompute {
			s.Log.Debug().Str("vehicle", vehicleRef).Str("month", month).Msg("shortfall already processed")
			summary.ShortfallsUpdated++
			return
		}
		if err := s.Store.DeleteShortfall(ctx, loan.VehicleID, month); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("Vehicle %s: %v", loan.VehicleID, err))
			return
		}
	}

	earnings, err := s.Store.CompletedEarnings(ctx, loan.VehicleID, monthStart, monthEnd)
	if err != nil {
		s.Log.Error().Err(err).Str("vehicle", vehicleRef).Msg("fetch bookings")
		summary.Errors = append(summary.Errors, fmt.Sprintf("Vehicle %s: %v", loan.VehicleID, err))
		return
	}

	required := loan.MonthlyInstallment
	amount := required - earnings
	if amount < 0 {
		amount = 0
	}

	s.Log.Info().
		Str("vehicle", vehicleRef).
		Int64("earnings", earnings).
		Int64("required", required).
		Int64("shortfall", amount).
		Msg("vehicle earnings calculated")

	switch {
	case amount > 0:
		row := Shortfall{
			VehicleID:       loan.VehicleID,
			LessorID:        loan.LessorID,
			Month:           month,
			RequiredAmount:  required,
			EarnedAmount:    earnings,
			ShortfallAmount: amount,
			Status:          "pending",
			Notes:           fmt.Sprintf("Automatisk beregnet: Bil %s tjente %d kr, men krævede %d kr til afdrag.", vehicleRef, earnings, required),
		}
		if err := s.Store.InsertShortfall(ctx, row); err != nil {
			if err == ErrDuplicate {
				// Lost a race with another run; same outcome as the pre-check.
				summary.ShortfallsUpdated++
				break
			}
			s.Log.Error().Err(err).Str("vehicle", vehicleRef).Msg("create shortfall")
			summary.Errors = append(summary.Errors, fmt.Sprintf("Vehicle %s: %v", loan.VehicleID, err))
		} else if exists {
			summary.ShortfallsUpdated++
			if obs.ShortfallsCreatedTotal != nil {
				obs.ShortfallsCreatedTotal.Inc()
			}
		} else {
			summary.ShortfallsCreated++
			if obs.ShortfallsCreatedTotal != nil {
				obs.ShortfallsCreatedTotal.Inc()
			}
		}
	default:
		summary.NoShortfall++
	}

	summary.Processed++
}

// settlementWindow returns the first day, last day, and YYYY-MM key of the
// calendar month preceding now.
func settlementWindow(now time.Time) (time.Time, time.Time, string) {
	year, month, _ := now.Date()
	firstOfCurrent := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthStart := firstOfCurrent.AddDate(0, -1, 0)
	monthEnd := firstOfCurrent.AddDate(0, 0, -1)
	return monthStart, monthEnd, monthStart.Format("2006-01")
}
