package models

import "time"

// Payment categories. The first four are operator-selectable receipt methods;
// CategoryCreditMemo marks payments manufactured by the credit memo generator.
const (
	CategoryBankTransfer = "Bank Transfer"
	CategoryCash         = "Cash"
	CategoryCheque       = "Cheque"
	CategoryCreditCard   = "Credit Card"
	CategoryCreditMemo   = "Credit Memo"
)

// Payment records money received from (or credited to) a customer. Amount is
// immutable once created; UnallocatedAmount starts equal to Amount and only
// ever decreases as settlements draw on it. While UnallocatedAmount > 0 the
// row doubles as stored customer credit.
type Payment struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	CustomerID uint     `json:"customer_id" gorm:"index:idx_payments_customer_date,priority:1;not null"`
	Customer   Customer `json:"-" gorm:"foreignKey:CustomerID;references:Id"`

	PaymentDate time.Time `json:"payment_date" gorm:"index:idx_payments_customer_date,priority:2;not null"`

	Amount            float64 `json:"amount" gorm:"type:numeric(12,2)"`
	UnallocatedAmount float64 `json:"unallocated_amount" gorm:"type:numeric(12,2)"`

	Category string `json:"category" gorm:"type:varchar(20)"`
	Reason   string `json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}

// Allocation is an append-only ledger entry: a slice of one Payment applied to
// one Invoice. For any Payment, sum(allocations) + unallocated = amount; for
// any settled Invoice, sum(allocations) = paid_amount.
type Allocation struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	PaymentID uint    `json:"payment_id" gorm:"index;not null"`
	InvoiceID uint    `json:"invoice_id" gorm:"index;not null"`
	Amount    float64 `json:"amount" gorm:"type:numeric(12,2)"`

	CreatedAt time.Time `json:"created_at"`
}

// ReceiptMethods lists the operator-selectable payment methods.
func ReceiptMethods() []string {
	return []string{CategoryBankTransfer, CategoryCash, CategoryCheque, CategoryCreditCard}
}
