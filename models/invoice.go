package models

import (
	"time"

	"bizops-backend/utils"
)

// Invoice status values. Paid/Partial are derived from amounts; Credit marks a
// negative-total credit memo invoice that never carries an outstanding balance.
const (
	InvoiceStatusUnpaid  = "unpaid"
	InvoiceStatusPartial = "partial"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusCredit  = "credit"
)

// Invoice is issued by the invoicing workflow; this service only ever moves
// PaidAmount and Status, via settlement commits.
type Invoice struct {
	ID            uint     `json:"id" gorm:"primaryKey"`
	InvoiceNumber string   `json:"invoice_number" gorm:"unique"`
	CustomerID    uint     `json:"customer_id" gorm:"index;not null"`
	Customer      Customer `json:"-" gorm:"foreignKey:CustomerID;references:Id"`

	InvoiceDate time.Time `json:"invoice_date" gorm:"index;not null"`
	DueDate     time.Time `json:"due_date"`

	// TotalAmount is fixed at issuance. PaidAmount is the running total applied
	// by settlement commits; invariant 0 <= PaidAmount <= TotalAmount (±0.01).
	TotalAmount float64 `json:"total_amount" gorm:"type:numeric(12,2)"`
	PaidAmount  float64 `json:"paid_amount" gorm:"type:numeric(12,2)"`

	Status string `json:"status" gorm:"type:varchar(10);default:unpaid"`

	CreatedAt time.Time `json:"created_at"`
}

// Balance is the amount still owed on the invoice.
func (i *Invoice) Balance() float64 {
	return utils.Round2(i.TotalAmount - i.PaidAmount)
}

// NextStatus derives the status after paid has been applied against total.
// Anything that is neither fully paid nor partially paid keeps its current
// status (so credit memos stay "credit").
func NextStatus(current string, total, paid float64) string {
	switch {
	case utils.ApproxEqual(total, paid):
		return InvoiceStatusPaid
	case paid > 0 && paid < total:
		return InvoiceStatusPartial
	default:
		return current
	}
}
