package settlement

import (
	"time"

	"github.com/google/uuid"
)

// Fine is a single traffic or parking charge passed through to the renter.
// Amounts are whole DKK; Total includes the administration fee.
type Fine struct {
	Type        string  `json:"type" validate:"required,oneof=parking speed toll other"`
	Amount      int64   `json:"amount" validate:"gte=0"`
	AdminFee    int64   `json:"adminFee" validate:"gte=0"`
	Total       int64   `json:"total" validate:"gte=0"`
	Date        string  `json:"date" validate:"required"`
	Description *string `json:"description"`
}

// Settlement is the reconciliation a lessor enters after a rental ends.
type Settlement struct {
	RentalPrice         int64  `json:"rentalPrice" validate:"gte=0"`
	KmOverageFee        int64  `json:"kmOverageFee" validate:"gte=0"`
	FuelFee             int64  `json:"fuelFee" validate:"gte=0"`
	FinesTotal          int64  `json:"finesTotal" validate:"gte=0"`
	TotalCharges        int64  `json:"totalCharges" validate:"gte=0"`
	DepositAmount       int64  `json:"depositAmount" validate:"gte=0"`
	DepositRefund       int64  `json:"depositRefund" validate:"gte=0"`
	AmountDueFromRenter int64  `json:"amountDueFromRenter" validate:"gte=0"`
	Fines               []Fine `json:"fines" validate:"dive"`
}

// LineItem is one row on a settlement invoice. Deposit refunds appear as
// negative amounts.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
	UnitPrice   int64  `json:"unit_price"`
	Total       int64  `json:"total"`
}

// Invoice is the persisted close-out document for a booking.
type Invoice struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	LessorID      uuid.UUID  `json:"lessor_id"`
	BookingID     uuid.UUID  `json:"booking_id"`
	RenterEmail   string     `json:"renter_email"`
	RenterName    string     `json:"renter_name"`
	RenterAddress string     `json:"renter_address"`
	Subtotal      int64      `json:"subtotal"`
	VATAmount     int64      `json:"vat_amount"`
	TotalAmount   int64      `json:"total_amount"`
	Status        string     `json:"status"`
	IssuedAt      time.Time  `json:"issued_at"`
	DueDate       *time.Time `json:"due_date"`
	LineItems     []LineItem `json:"line_items"`
}

// Booking carries the fields the invoice builder needs from a rental.
type Booking struct {
	ID                  uuid.UUID
	LessorID            uuid.UUID
	RenterEmail         string
	RenterName          string
	RenterAddress       string
	VehicleMake         string
	VehicleModel        string
	VehicleRegistration string
}
