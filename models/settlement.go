package models

import (
	"time"

	"gorm.io/datatypes"
)

// SettlementRecord is an immutable audit snapshot written after every
// successful commit: which funding sources were drawn, the allocations made,
// and the invoice states afterwards.
type SettlementRecord struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	CustomerID uint           `json:"customer_id" gorm:"index;not null"`
	PaymentID  *uint          `json:"payment_id"` // nil when the commit spent stored credit only
	Snapshot   datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CreditMemoSequence backs credit memo numbering. One row per tenant schema,
// incremented atomically inside the generator's transaction.
type CreditMemoSequence struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	LastValue int  `json:"last_value" gorm:"not null;default:0"`
}
