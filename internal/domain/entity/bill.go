package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill represents a patient bill with its frozen total
type Bill struct {
	ID            int64           `json:"id"`
	PatientID     int64           `json:"patient_id"`
	AppointmentID *int64          `json:"appointment_id"`
	CreatedAt     time.Time       `json:"created_at"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        BillStatus      `json:"status"`
	Currency      string          `json:"currency"`
	Notes         *string         `json:"notes"`

	// PatientName is populated by listing queries that join patients
	PatientName string `json:"-"`
}

// BillItem represents a single line on a bill
type BillItem struct {
	ID          int64           `json:"id"`
	BillID      int64           `json:"bill_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity × unit price. It is never persisted.
func (i BillItem) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Payment represents money received against a bill. Payments are append-only.
type Payment struct {
	ID        int64           `json:"id"`
	BillID    int64           `json:"bill_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidAt    time.Time       `json:"paid_at"`
	Reference *string         `json:"reference"`
}

// Patient is the minimal view of a patient the billing ledger needs
type Patient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
