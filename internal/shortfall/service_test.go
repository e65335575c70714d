package shortfall_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lejio/backend-fleet/internal/auth"
	"github.com/lejio/backend-fleet/internal/shortfall"
)

type fakeStore struct {
	loans         []shortfall.Loan
	registrations map[uuid.UUID]string
	earnings      map[uuid.UUID]int64
	earningsErr   map[uuid.UUID]error
	existing      map[string]bool
	insertErr     error

	inserted []shortfall.Shortfall
	deleted  []string
	calls    int
}

func key(vehicleID uuid.UUID, month string) string { return vehicleID.String() + "|" + month }

func (f *fakeStore) ListActiveLoans(context.Context) ([]shortfall.Loan, error) {
	f.calls++
	return f.loans, nil
}

func (f *fakeStore) VehicleRegistration(_ context.Context, vehicleID uuid.UUID) (string, error) {
	f.calls++
	return f.registrations[vehicleID], nil
}

func (f *fakeStore) ShortfallExists(_ context.Context, vehicleID uuid.UUID, month string) (bool, error) {
	f.calls++
	return f.existing[key(vehicleID, month)], nil
}

func (f *fakeStore) DeleteShortfall(_ context.Context, vehicleID uuid.UUID, month string) error {
	f.calls++
	f.deleted = append(f.deleted, key(vehicleID, month))
	delete(f.existing, key(vehicleID, month))
	return nil
}

func (f *fakeStore) CompletedEarnings(_ context.Context, vehicleID uuid.UUID, _, _ time.Time) (int64, error) {
	f.calls++
	if err := f.earningsErr[vehicleID]; err != nil {
		return 0, err
	}
	return f.earnings[vehicleID], nil
}

func (f *fakeStore) InsertShortfall(_ context.Context, s shortfall.Shortfall) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.existing[key(s.VehicleID, s.Month)] {
		return shortfall.ErrDuplicate
	}
	f.inserted = append(f.inserted, s)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[key(s.VehicleID, s.Month)] = true
	return nil
}

func newService(store shortfall.Store) *shortfall.Service {
	return &shortfall.Service{Store: store, Log: zerolog.Nop()}
}

// Invoked mid-January, the batch settles December of the previous year.
var januaryRun = time.Date(2024, time.January, 15, 4, 30, 0, 0, time.UTC)

func TestRunCreatesShortfallsForPreviousMonth(t *testing.T) {
	short := uuid.New()
	covered := uuid.New()
	store := &fakeStore{
		loans: []shortfall.Loan{
			{ID: uuid.New(), VehicleID: short, LessorID: uuid.New(), MonthlyInstallment: 5000},
			{ID: uuid.New(), VehicleID: covered, LessorID: uuid.New(), MonthlyInstallment: 3000},
		},
		registrations: map[uuid.UUID]string{short: "AB 12 345"},
		earnings:      map[uuid.UUID]int64{short: 3200, covered: 4500},
	}

	summary, err := newService(store).Run(context.Background(), januaryRun)
	require.NoError(t, err)

	require.Equal(t, "2023-12", summary.SettlementMonth)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.ShortfallsCreated)
	require.Equal(t, 1, summary.NoShortfall)
	require.Empty(t, summary.Errors)

	require.Len(t, store.inserted, 1)
	row := store.inserted[0]
	require.Equal(t, short, row.VehicleID)
	require.Equal(t, int64(1800), row.ShortfallAmount)
	require.Equal(t, int64(5000), row.RequiredAmount)
	require.Equal(t, int64(3200), row.EarnedAmount)
	require.Equal(t, "pending", row.Status)
	require.Contains(t, row.Notes, "AB 12 345")
	require.Contains(t, row.Notes, "3200 kr")
	require.Contains(t, row.Notes, "5000 kr")
}

func TestRunShortfallNeverNegative(t *testing.T) {
	vehicle := uuid.New()
	store := &fakeStore{
		loans:    []shortfall.Loan{{ID: uuid.New(), VehicleID: vehicle, MonthlyInstallment: 1000}},
		earnings: map[uuid.UUID]int64{vehicle: 25000},
	}
	summary, err := newService(store).Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Equal(t, 1, summary.NoShortfall)
	require.Zero(t, summary.ShortfallsCreated)
	require.Empty(t, store.inserted)
}

func TestRunIsIdempotentByAbsence(t *testing.T) {
	vehicle := uuid.New()
	store := &fakeStore{
		loans:    []shortfall.Loan{{ID: uuid.New(), VehicleID: vehicle, MonthlyInstallment: 9000}},
		earnings: map[uuid.UUID]int64{vehicle: 100},
	}
	svc := newService(store)

	first, err := svc.Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Equal(t, 1, first.ShortfallsCreated)

	// Earnings change between runs; the closed month stays frozen anyway.
	store.earnings[vehicle] = 20000
	second, err := svc.Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Zero(t, second.ShortfallsCreated)
	require.Equal(t, 1, second.ShortfallsUpdated)
	require.Len(t, store.inserted, 1)
}

func TestRunRecomputeReplacesClosedMonth(t *testing.T) {
	vehicle := uuid.New()
	store := &fakeStore{
		loans:    []shortfall.Loan{{ID: uuid.New(), VehicleID: vehicle, MonthlyInstallment: 9000}},
		earnings: map[uuid.UUID]int64{vehicle: 100},
	}
	svc := newService(store)
	svc.AllowRecompute = true

	_, err := svc.Run(context.Background(), januaryRun)
	require.NoError(t, err)

	store.earnings[vehicle] = 4000
	second, err := svc.Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Equal(t, 1, second.ShortfallsUpdated)
	require.Len(t, store.deleted, 1)
	require.Len(t, store.inserted, 2)
	require.Equal(t, int64(5000), store.inserted[1].ShortfallAmount)
}

func TestRunIsolatesPerVehicleFailures(t *testing.T) {
	broken := uuid.New()
	healthy := uuid.New()
	store := &fakeStore{
		loans: []shortfall.Loan{
			{ID: uuid.New(), VehicleID: broken, MonthlyInstallment: 4000},
			{ID: uuid.New(), VehicleID: healthy, MonthlyInstallment: 4000},
		},
		earnings:    map[uuid.UUID]int64{healthy: 1000},
		earningsErr: map[uuid.UUID]error{broken: errors.New("query timeout")},
	}

	summary, err := newService(store).Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	require.Contains(t, summary.Errors[0], broken.String())
	require.Contains(t, summary.Errors[0], "query timeout")
	require.Equal(t, 1, summary.ShortfallsCreated)
	require.Len(t, store.inserted, 1)
	require.Equal(t, healthy, store.inserted[0].VehicleID)
}

func TestRunCountsDuplicateInsertAsProcessed(t *testing.T) {
	vehicle := uuid.New()
	store := &fakeStore{
		loans:     []shortfall.Loan{{ID: uuid.New(), VehicleID: vehicle, MonthlyInstallment: 4000}},
		earnings:  map[uuid.UUID]int64{vehicle: 0},
		insertErr: shortfall.ErrDuplicate,
	}
	summary, err := newService(store).Run(context.Background(), januaryRun)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ShortfallsUpdated)
	require.Empty(t, summary.Errors)
}

func TestSettlementWindowAcrossYearBoundary(t *testing.T) {
	store := &fakeStore{}
	summary, err := newService(store).Run(context.Background(), time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2025-02", summary.SettlementMonth)
}

func TestCronEndpointRejectsWithoutTouchingStore(t *testing.T) {
	store := &fakeStore{loans: []shortfall.Loan{{ID: uuid.New(), VehicleID: uuid.New(), MonthlyInstallment: 100}}}
	handler := auth.RequireCronSecret("top-secret")(http.HandlerFunc(shortfall.Handler{Svc: newService(store)}.Run))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/coverage-shortfalls", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	require.Zero(t, store.calls)
}

func TestCronEndpointSuccessShape(t *testing.T) {
	vehicle := uuid.New()
	store := &fakeStore{
		loans:    []shortfall.Loan{{ID: uuid.New(), VehicleID: vehicle, MonthlyInstallment: 700}},
		earnings: map[uuid.UUID]int64{vehicle: 150},
	}
	handler := auth.RequireCronSecret("top-secret")(http.HandlerFunc(shortfall.Handler{Svc: newService(store)}.Run))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/coverage-shortfalls", nil)
	req.Header.Set("Authorization", "Bearer top-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success           bool     `json:"success"`
		SettlementMonth   string   `json:"settlementMonth"`
		Processed         int      `json:"processed"`
		ShortfallsCreated int      `json:"shortfallsCreated"`
		Errors            []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Processed)
	require.Equal(t, 1, resp.ShortfallsCreated)
	require.NotNil(t, resp.Errors)
	require.Empty(t, resp.Errors)
}
