package entity

import "time"

const (
	StatusWaitingPayment = "waiting_payment"
	StatusPaid           = "paid"
	StatusFailed         = "failed"
	StatusCanceled       = "canceled"
)

type PixData struct {
	QRCodeImage string
	PixCode     string
	ExpiresAt   time.Time
	AmountCents int64
}

type Customer struct {
	Name     string
	Email    string
	Phone    string
	Document string
}

type Item struct {
	Title          string
	Quantity       int32
	UnitPriceCents int64
	Tangible       bool
}

type ShippingAddress struct {
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	ZipCode    string
}

// Payment is the durable record of one gateway transaction. PaymentID is the
// gateway-assigned transaction id and the primary key; Pix, Customer and Items
// are snapshots taken at creation time and never re-fetched.
type Payment struct {
	PaymentID string

	Status string

	Pix      PixData
	Customer Customer
	Items    []Item

	TotalCents int64

	UTM map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(status string) bool {
	switch status {
	case StatusPaid, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// ValidStatus reports whether status is one of the lifecycle states.
func ValidStatus(status string) bool {
	switch status {
	case StatusWaitingPayment, StatusPaid, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}
