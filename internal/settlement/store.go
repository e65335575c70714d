package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBookingNotFound reports an unknown booking id.
var ErrBookingNotFound = errors.New("settlement: booking not found")

// Store is the persistence surface the invoice builder needs.
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	NextInvoiceNumber(ctx context.Context, issuedAt time.Time) (string, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
}

// PGStore implements Store over a pgx pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (p PGStore) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	var b Booking
	err := p.Pool.QueryRow(ctx, `
		SELECT b.id, b.lessor_id,
		       COALESCE(b.renter_email, ''), COALESCE(b.renter_name, ''), COALESCE(b.renter_address, ''),
		       COALESCE(v.make, ''), COALESCE(v.model, ''), COALESCE(v.registration, '')
		FROM bookings b
		JOIN vehicles v ON v.id = b.vehicle_id
		WHERE b.id = $1`, id).Scan(
		&b.ID, &b.LessorID,
		&b.RenterEmail, &b.RenterName, &b.RenterAddress,
		&b.VehicleMake, &b.VehicleModel, &b.VehicleRegistration,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrBookingNotFound
	}
	return b, err
}

// NextInvoiceNumber draws from a database sequence so numbers stay unique
// across concurrent issuers.
func (p PGStore) NextInvoiceNumber(ctx context.Context, issuedAt time.Time) (string, error) {
	var seq int64
	if err := p.Pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("LEJ-%d-%06d", issuedAt.Year(), seq), nil
}

func (p PGStore) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return Invoice{}, err
	}
	err = p.Pool.QueryRow(ctx, `
		INSERT INTO invoices
			(invoice_number, lessor_id, booking_id, renter_email, renter_name, renter_address,
			 subtotal, vat_amount, total_amount, status, issued_at, due_date, line_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		inv.InvoiceNumber, inv.LessorID, inv.BookingID, inv.RenterEmail, inv.RenterName, inv.RenterAddress,
		inv.Subtotal, inv.VATAmount, inv.TotalAmount, inv.Status, inv.IssuedAt, inv.DueDate, items,
	).Scan(&inv.ID)
	return inv, err
}
