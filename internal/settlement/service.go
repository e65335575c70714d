package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lejio/backend-fleet/internal/common"
	"github.com/lejio/backend-fleet/internal/obs"
)

// Invoices issued for an outstanding balance fall due two weeks after issue.
const dueAfter = 14 * 24 * time.Hour

var fineTypeLabels = map[string]string{
	"parking": "P-afgift",
	"speed":   "Fartbøde",
	"toll":    "Vejafgift",
	"other":   "Bøde",
}

// Service builds and persists settlement invoices.
type Service struct {
	Store Store
	Log   zerolog.Logger

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// BuildInvoice assembles the close-out invoice for a finished booking. Only
// the lessor who owns the booking may settle it. The settlement figures are
// taken as entered; the invoice reproduces them rather than re-deriving them.
func (s *Service) BuildInvoice(ctx context.Context, lessorID uuid.UUID, bookingID uuid.UUID, stl Settlement) (Invoice, error) {
	booking, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return Invoice{}, common.ErrNotFound("booking not found")
		}
		return Invoice{}, err
	}
	if booking.LessorID != lessorID {
		return Invoice{}, common.ErrForbidden("booking belongs to another lessor")
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	number, err := s.Store.NextInvoiceNumber(ctx, now)
	if err != nil {
		return Invoice{}, fmt.Errorf("generate invoice number: %w", err)
	}

	inv := Invoice{
		// -AFR marks the invoice as an afregning (settlement).
		InvoiceNumber: number + "-AFR",
		LessorID:      booking.LessorID,
		BookingID:     booking.ID,
		RenterEmail:   booking.RenterEmail,
		RenterName:    booking.RenterName,
		RenterAddress: booking.RenterAddress,
		Subtotal:      stl.TotalCharges,
		VATAmount:     0,
		TotalAmount:   stl.AmountDueFromRenter,
		IssuedAt:      now,
		LineItems:     buildLineItems(stl),
	}
	if inv.TotalAmount > 0 {
		inv.Status = "issued"
		due := now.Add(dueAfter)
		inv.DueDate = &due
	} else {
		// Deposit covered everything; nothing further is owed.
		inv.Status = "paid"
	}

	saved, err := s.Store.InsertInvoice(ctx, inv)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	s.Log.Info().
		Str("invoice_number", saved.InvoiceNumber).
		Str("booking_id", bookingID.String()).
		Int64("total_amount", saved.TotalAmount).
		Str("status", saved.Status).
		Msg("settlement invoice created")
	if obs.InvoicesIssuedTotal != nil {
		obs.InvoicesIssuedTotal.WithLabelValues(saved.Status).Inc()
	}
	return saved, nil
}

// buildLineItems lays the invoice out in a fixed order: km overage, fuel,
// fines, then the deposit refund as a negative line.
func buildLineItems(stl Settlement) []LineItem {
	items := []LineItem{}

	if stl.KmOverageFee > 0 {
		items = append(items, chargeLine("Km-overskridelse", stl.KmOverageFee))
	}
	if stl.FuelFee > 0 {
		items = append(items, chargeLine("Brændstofgebyr", stl.FuelFee))
	}
	for _, fine := range stl.Fines {
		label, ok := fineTypeLabels[fine.Type]
		if !ok {
			label = "Bøde"
		}
		desc := fmt.Sprintf("%s (%s)", label, fine.Date)
		if fine.Description != nil && *fine.Description != "" {
			desc += " - " + *fine.Description
		}
		items = append(items, chargeLine(desc, fine.Total))
	}
	if stl.DepositRefund > 0 {
		items = append(items, chargeLine("Depositum refunderet", -stl.DepositRefund))
	}
	return items
}

func chargeLine(description string, amount int64) LineItem {
	return LineItem{
		Description: description,
		Quantity:    1,
		Unit:        "stk",
		UnitPrice:   amount,
		Total:       amount,
	}
}
