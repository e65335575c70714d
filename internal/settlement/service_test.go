package settlement_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lejio/backend-fleet/internal/common"
	"github.com/lejio/backend-fleet/internal/settlement"
)

type fakeStore struct {
	booking    settlement.Booking
	bookingErr error
	nextSeq    int

	inserted []settlement.Invoice
}

func (f *fakeStore) GetBooking(_ context.Context, id uuid.UUID) (settlement.Booking, error) {
	if f.bookingErr != nil {
		return settlement.Booking{}, f.bookingErr
	}
	if id != f.booking.ID {
		return settlement.Booking{}, settlement.ErrBookingNotFound
	}
	return f.booking, nil
}

func (f *fakeStore) NextInvoiceNumber(_ context.Context, issuedAt time.Time) (string, error) {
	f.nextSeq++
	return fmt.Sprintf("LEJ-%d-%06d", issuedAt.Year(), f.nextSeq), nil
}

func (f *fakeStore) InsertInvoice(_ context.Context, inv settlement.Invoice) (settlement.Invoice, error) {
	inv.ID = uuid.New()
	f.inserted = append(f.inserted, inv)
	return inv, nil
}

func newService(store *fakeStore, now time.Time) *settlement.Service {
	return &settlement.Service{
		Store: store,
		Log:   zerolog.Nop(),
		Now:   func() time.Time { return now },
	}
}

func strptr(s string) *string { return &s }

func TestBuildInvoiceFullSettlement(t *testing.T) {
	lessorID := uuid.New()
	bookingID := uuid.New()
	now := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{booking: settlement.Booking{
		ID:          bookingID,
		LessorID:    lessorID,
		RenterEmail: "jens@example.dk",
		RenterName:  "Jens Hansen",
	}}
	svc := newService(store, now)

	stl := settlement.Settlement{
		RentalPrice:         3000,
		KmOverageFee:        250,
		FuelFee:             100,
		FinesTotal:          300,
		TotalCharges:        650,
		DepositAmount:       200,
		DepositRefund:       200,
		AmountDueFromRenter: 450,
		Fines: []settlement.Fine{{
			Type:        "parking",
			Amount:      250,
			AdminFee:    50,
			Total:       300,
			Date:        "2025-01-10",
			Description: strptr("Vesterbrogade"),
		}},
	}

	inv, err := svc.BuildInvoice(context.Background(), lessorID, bookingID, stl)
	require.NoError(t, err)

	require.Len(t, inv.LineItems, 4)
	require.Equal(t, "Km-overskridelse", inv.LineItems[0].Description)
	require.Equal(t, int64(250), inv.LineItems[0].Total)
	require.Equal(t, "Brændstofgebyr", inv.LineItems[1].Description)
	require.Equal(t, int64(100), inv.LineItems[1].Total)
	require.Equal(t, "P-afgift (2025-01-10) - Vesterbrogade", inv.LineItems[2].Description)
	require.Equal(t, int64(300), inv.LineItems[2].Total)
	require.Equal(t, "Depositum refunderet", inv.LineItems[3].Description)
	require.Equal(t, int64(-200), inv.LineItems[3].Total)
	for _, item := range inv.LineItems {
		require.Equal(t, 1, item.Quantity)
		require.Equal(t, "stk", item.Unit)
		require.Equal(t, item.UnitPrice, item.Total)
	}

	require.Equal(t, int64(650), inv.Subtotal)
	require.Zero(t, inv.VATAmount)
	require.Equal(t, int64(450), inv.TotalAmount)
	require.Equal(t, "issued", inv.Status)
	require.NotNil(t, inv.DueDate)
	require.Equal(t, now.Add(14*24*time.Hour), *inv.DueDate)
	require.Equal(t, "LEJ-2025-000001-AFR", inv.InvoiceNumber)
	require.Equal(t, lessorID, inv.LessorID)
	require.Equal(t, bookingID, inv.BookingID)
	require.Len(t, store.inserted, 1)
}

func TestBuildInvoiceNothingDue(t *testing.T) {
	lessorID := uuid.New()
	bookingID := uuid.New()
	store := &fakeStore{booking: settlement.Booking{ID: bookingID, LessorID: lessorID}}
	svc := newService(store, time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC))

	inv, err := svc.BuildInvoice(context.Background(), lessorID, bookingID, settlement.Settlement{
		TotalCharges:        150,
		DepositAmount:       200,
		DepositRefund:       50,
		AmountDueFromRenter: 0,
		KmOverageFee:        150,
	})
	require.NoError(t, err)

	require.Equal(t, "paid", inv.Status)
	require.Nil(t, inv.DueDate)
	require.Zero(t, inv.TotalAmount)
}

func TestBuildInvoiceFineLabels(t *testing.T) {
	lessorID := uuid.New()
	bookingID := uuid.New()
	store := &fakeStore{booking: settlement.Booking{ID: bookingID, LessorID: lessorID}}
	svc := newService(store, time.Now())

	stl := settlement.Settlement{
		TotalCharges:        1200,
		AmountDueFromRenter: 1200,
		Fines: []settlement.Fine{
			{Type: "speed", Total: 600, Date: "2025-01-02"},
			{Type: "toll", Total: 100, Date: "2025-01-03"},
			{Type: "other", Total: 500, Date: "2025-01-04"},
		},
	}
	inv, err := svc.BuildInvoice(context.Background(), lessorID, bookingID, stl)
	require.NoError(t, err)

	require.Len(t, inv.LineItems, 3)
	require.Equal(t, "Fartbøde (2025-01-02)", inv.LineItems[0].Description)
	require.Equal(t, "Vejafgift (2025-01-03)", inv.LineItems[1].Description)
	require.Equal(t, "Bøde (2025-01-04)", inv.LineItems[2].Description)
}

func TestBuildInvoiceForbidden(t *testing.T) {
	bookingID := uuid.New()
	store := &fakeStore{booking: settlement.Booking{ID: bookingID, LessorID: uuid.New()}}
	svc := newService(store, time.Now())

	_, err := svc.BuildInvoice(context.Background(), uuid.New(), bookingID, settlement.Settlement{})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusForbidden, appErr.HTTPStatus)
	require.Empty(t, store.inserted)
}

func TestBuildInvoiceBookingNotFound(t *testing.T) {
	store := &fakeStore{booking: settlement.Booking{ID: uuid.New()}}
	svc := newService(store, time.Now())

	_, err := svc.BuildInvoice(context.Background(), uuid.New(), uuid.New(), settlement.Settlement{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestCreateInvoiceHandler(t *testing.T) {
	lessorID := uuid.New()
	bookingID := uuid.New()
	store := &fakeStore{booking: settlement.Booking{ID: bookingID, LessorID: lessorID}}
	h := &settlement.Handler{
		Svc:      newService(store, time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)),
		Validate: validator.New(),
	}

	body, err := json.Marshal(map[string]any{
		"bookingId": bookingID.String(),
		"settlement": settlement.Settlement{
			TotalCharges:        100,
			AmountDueFromRenter: 100,
			FuelFee:             100,
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/invoice", bytes.NewReader(body))
	req = req.WithContext(common.WithUserID(req.Context(), lessorID.String()))
	rec := httptest.NewRecorder()
	h.CreateInvoice(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool               `json:"success"`
		Invoice settlement.Invoice `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "issued", resp.Invoice.Status)
	require.Len(t, resp.Invoice.LineItems, 1)
}

func TestCreateInvoiceHandlerRequiresAuth(t *testing.T) {
	h := &settlement.Handler{
		Svc:      newService(&fakeStore{}, time.Now()),
		Validate: validator.New(),
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/invoice", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.CreateInvoice(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
