package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizops-backend/models"
)

func TestGenerateCreditMemo(t *testing.T) {
	db := newTestDB(t)

	res, err := GenerateCreditMemo(db, 1, -25.50, day(4), "returned goods")
	require.NoError(t, err)

	// Self-settled Credit invoice: no outstanding balance.
	assert.Equal(t, "CM-000001", res.Invoice.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusCredit, res.Invoice.Status)
	assert.InDelta(t, -25.50, res.Invoice.TotalAmount, 1e-9)
	assert.InDelta(t, -25.50, res.Invoice.PaidAmount, 1e-9)
	assert.InDelta(t, 0.0, res.Invoice.Balance(), 1e-9)

	// Companion payment is a brand-new, fully spendable funding source.
	assert.Equal(t, models.CategoryCreditMemo, res.Payment.Category)
	assert.InDelta(t, 25.50, res.Payment.Amount, 1e-9)
	assert.InDelta(t, 25.50, res.Payment.UnallocatedAmount, 1e-9)
	assert.Equal(t, "returned goods", res.Payment.Reason)
}

func TestCreditMemoNumbersAreMonotonic(t *testing.T) {
	db := newTestDB(t)

	first, err := GenerateCreditMemo(db, 1, -10, day(4), "")
	require.NoError(t, err)
	second, err := GenerateCreditMemo(db, 1, -20, day(5), "")
	require.NoError(t, err)

	assert.Equal(t, "CM-000001", first.Invoice.InvoiceNumber)
	assert.Equal(t, "CM-000002", second.Invoice.InvoiceNumber)
}

func TestGenerateCreditMemoRejectsNonNegativeTotal(t *testing.T) {
	db := newTestDB(t)

	_, err := GenerateCreditMemo(db, 1, 25, day(4), "")
	assert.ErrorIs(t, err, ErrNotACreditTotal)

	_, err = GenerateCreditMemo(db, 1, 0, day(4), "")
	assert.ErrorIs(t, err, ErrNotACreditTotal)
}

func TestCreditMemoFundsLaterSettlement(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 20, 0, day(1))

	memo, err := GenerateCreditMemo(db, 1, -30, day(2), "adjustment")
	require.NoError(t, err)

	res, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		Credit:      CreditPolicy{Use: true},
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 20}},
	})
	require.NoError(t, err)

	require.Len(t, res.Allocations, 1)
	assert.Equal(t, memo.Payment.ID, res.Allocations[0].PaymentID)

	var memoAfter models.Payment
	require.NoError(t, db.First(&memoAfter, memo.Payment.ID).Error)
	assert.InDelta(t, 10.0, memoAfter.UnallocatedAmount, 1e-9)

	var invAfter models.Invoice
	require.NoError(t, db.First(&invAfter, inv.ID).Error)
	assert.Equal(t, models.InvoiceStatusPaid, invAfter.Status)
}
