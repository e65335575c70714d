package insurance

import (
	"fmt"

	"github.com/lejio/backend-fleet/internal/common"
)

// PeriodType enumerates the rental period units a booking can be priced in.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// Pricing constants for the zero-deductible add-on, in whole DKK.
const (
	DailyRate  int64 = 49
	MonthlyCap int64 = 400
)

// Quote is the priced deductible-insurance selection for a rental period.
type Quote struct {
	TotalDays   int     `json:"totalDays"`
	Months      int     `json:"months"`
	DailyRate   int64   `json:"dailyRate"`
	RawPrice    int64   `json:"rawPrice"`
	FinalPrice  int64   `json:"finalPrice"`
	Savings     int64   `json:"savings"`
	PricePerDay float64 `json:"pricePerDay"`
}

// ComputeQuote converts a rental period into a day count and applies the
// capped linear price: rawPrice is the day count at the daily rate, capped at
// the monthly price for the number of started months the period spans.
func ComputeQuote(periodType PeriodType, periodCount int) (Quote, error) {
	if periodCount <= 0 {
		return Quote{}, common.ErrValidation("period_count must be positive", nil)
	}

	var totalDays int
	switch periodType {
	case PeriodDaily:
		totalDays = periodCount
	case PeriodWeekly:
		totalDays = periodCount * 7
	case PeriodMonthly:
		totalDays = periodCount * 30
	default:
		return Quote{}, common.ErrValidation(fmt.Sprintf("unknown period_type %q", periodType), nil)
	}

	months := (totalDays + 29) / 30
	rawPrice := int64(totalDays) * DailyRate
	finalPrice := rawPrice
	if capped := int64(months) * MonthlyCap; capped < finalPrice {
		finalPrice = capped
	}

	return Quote{
		TotalDays:   totalDays,
		Months:      months,
		DailyRate:   DailyRate,
		RawPrice:    rawPrice,
		FinalPrice:  finalPrice,
		Savings:     rawPrice - finalPrice,
		PricePerDay: float64(finalPrice) / float64(totalDays),
	}, nil
}
