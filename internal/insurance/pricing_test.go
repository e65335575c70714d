package insurance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeQuoteMonthlyCap(t *testing.T) {
	q, err := ComputeQuote(PeriodMonthly, 1)
	require.NoError(t, err)
	require.Equal(t, 30, q.TotalDays)
	require.Equal(t, 1, q.Months)
	require.Equal(t, int64(1470), q.RawPrice)
	require.Equal(t, int64(400), q.FinalPrice)
	require.Equal(t, int64(1070), q.Savings)
}

func TestComputeQuoteDailyUncapped(t *testing.T) {
	q, err := ComputeQuote(PeriodDaily, 3)
	require.NoError(t, err)
	require.Equal(t, 3, q.TotalDays)
	require.Equal(t, 1, q.Months)
	require.Equal(t, int64(147), q.RawPrice)
	require.Equal(t, int64(147), q.FinalPrice)
	require.Equal(t, int64(0), q.Savings)
	require.InDelta(t, 49.0, q.PricePerDay, 1e-9)
}

func TestComputeQuoteWeeklySpansMonths(t *testing.T) {
	// 6 weeks = 42 days: two started months, so the cap is 800.
	q, err := ComputeQuote(PeriodWeekly, 6)
	require.NoError(t, err)
	require.Equal(t, 42, q.TotalDays)
	require.Equal(t, 2, q.Months)
	require.Equal(t, int64(42*49), q.RawPrice)
	require.Equal(t, int64(800), q.FinalPrice)
}

func TestComputeQuoteCapNeverExceedsMonthlyPrice(t *testing.T) {
	for count := 1; count <= 24; count++ {
		q, err := ComputeQuote(PeriodMonthly, count)
		require.NoError(t, err)
		require.LessOrEqual(t, q.FinalPrice, int64(count)*MonthlyCap)
		require.GreaterOrEqual(t, q.Savings, int64(0))
	}
}

func TestComputeQuoteRejectsBadInput(t *testing.T) {
	_, err := ComputeQuote(PeriodDaily, 0)
	require.Error(t, err)
	_, err = ComputeQuote(PeriodType("hourly"), 2)
	require.Error(t, err)
}

func TestQuoteHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/insurance/deductible/quote?period_type=monthly&period_count=1", nil)
	rec := httptest.NewRecorder()
	Handler{}.Quote(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(400), resp.Data.FinalPrice)

	rec = httptest.NewRecorder()
	Handler{}.Quote(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insurance/deductible/quote?period_type=daily&period_count=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	Handler{}.Quote(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insurance/deductible/quote?period_type=hourly&period_count=2", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
