package settlement

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bizops-backend/models"
	"bizops-backend/utils"
)

// Credit memo numbers: CM-000001, CM-000002, ...
const (
	creditMemoPrefix = "CM-"
	creditMemoWidth  = 6
)

// ErrNotACreditTotal rejects credit memo requests whose total is not negative.
var ErrNotACreditTotal = errors.New("credit memo total must be negative")

// CreditMemoResult is the pair of rows a generated memo writes.
type CreditMemoResult struct {
	Invoice models.Invoice `json:"invoice"`
	Payment models.Payment `json:"payment"`
}

// GenerateCreditMemo is the sibling entry point to the committer: instead of
// consuming funding it manufactures a new source. Triggered when the invoicing
// workflow produces a negative grand total (a return or adjustment), it writes
// a self-settled Credit invoice (paid = total, no outstanding balance) and a
// companion Payment with category "Credit Memo" whose full amount is
// immediately spendable by future settlements for the same customer.
func GenerateCreditMemo(db *gorm.DB, customerID uint, total float64, memoDate time.Time, reason string) (*CreditMemoResult, error) {
	total = utils.Round2(total)
	if total >= 0 {
		return nil, ErrNotACreditTotal
	}

	var res *CreditMemoResult
	err := db.Transaction(func(tx *gorm.DB) error {
		number, err := nextCreditMemoNumber(tx)
		if err != nil {
			return err
		}

		invoice := models.Invoice{
			InvoiceNumber: number,
			CustomerID:    customerID,
			InvoiceDate:   memoDate,
			DueDate:       memoDate,
			TotalAmount:   total,
			PaidAmount:    total,
			Status:        models.InvoiceStatusCredit,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return fmt.Errorf("create credit invoice: %w", err)
		}

		payment := models.Payment{
			CustomerID:        customerID,
			PaymentDate:       memoDate,
			Amount:            utils.Round2(-total),
			UnallocatedAmount: utils.Round2(-total),
			Category:          models.CategoryCreditMemo,
			Reason:            reason,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create credit memo payment: %w", err)
		}

		res = &CreditMemoResult{Invoice: invoice, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// nextCreditMemoNumber increments the per-tenant sequence row atomically and
// formats the new value. The in-database increment keeps numbering monotonic
// under concurrent memo creation.
func nextCreditMemoNumber(tx *gorm.DB) (string, error) {
	seq := models.CreditMemoSequence{ID: 1}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", fmt.Errorf("ensure credit memo sequence: %w", err)
	}
	if err := tx.Model(&models.CreditMemoSequence{}).
		Where("id = ?", 1).
		UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return "", fmt.Errorf("advance credit memo sequence: %w", err)
	}
	if err := tx.First(&seq, 1).Error; err != nil {
		return "", fmt.Errorf("read credit memo sequence: %w", err)
	}
	return fmt.Sprintf("%s%0*d", creditMemoPrefix, creditMemoWidth, seq.LastValue), nil
}
