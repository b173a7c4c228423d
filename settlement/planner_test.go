package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoAllocateOldestFirst(t *testing.T) {
	// Invoice A issued day 1 (balance 50), B issued day 2 (balance 80),
	// funds 100: A is fully paid, B gets the remaining 50.
	lines := []InvoiceLine{
		{ID: 1, Balance: 50},
		{ID: 2, Balance: 80},
	}

	d := NewDraft(lines, 100, true)

	assert.InDelta(t, 50.0, d.Amount(1), 1e-9)
	assert.InDelta(t, 50.0, d.Amount(2), 1e-9)
	assert.InDelta(t, 100.0, d.TotalAllocated(), 1e-9)
	assert.True(t, d.Auto())
}

func TestAutoAllocateStopsWhenFundsRunOut(t *testing.T) {
	lines := []InvoiceLine{
		{ID: 1, Balance: 30},
		{ID: 2, Balance: 30},
		{ID: 3, Balance: 30},
	}

	d := NewDraft(lines, 45, true)

	assert.InDelta(t, 30.0, d.Amount(1), 1e-9)
	assert.InDelta(t, 15.0, d.Amount(2), 1e-9)
	assert.Zero(t, d.Amount(3))
	assert.False(t, d.Selected(3))
}

func TestRecalculateRedistributesInAutoMode(t *testing.T) {
	lines := []InvoiceLine{
		{ID: 1, Balance: 50},
		{ID: 2, Balance: 80},
	}
	d := NewDraft(lines, 40, true)
	assert.InDelta(t, 40.0, d.Amount(1), 1e-9)

	d.Recalculate(120)

	assert.InDelta(t, 50.0, d.Amount(1), 1e-9)
	assert.InDelta(t, 70.0, d.Amount(2), 1e-9)
}

func TestEnterAmountClampsToInvoiceBalance(t *testing.T) {
	lines := []InvoiceLine{{ID: 1, Balance: 40}}
	d := NewDraft(lines, 500, false)

	d.EnterAmount(1, 100)

	assert.InDelta(t, 40.0, d.Amount(1), 1e-9, "entry never exceeds the invoice's own balance")
}

func TestManualEditDisablesAuto(t *testing.T) {
	lines := []InvoiceLine{
		{ID: 1, Balance: 50},
		{ID: 2, Balance: 80},
	}
	d := NewDraft(lines, 100, true)
	assert.True(t, d.Auto())

	d.EnterAmount(2, 10)
	assert.False(t, d.Auto())

	// Changing funds no longer redistributes.
	d.Recalculate(200)
	assert.InDelta(t, 10.0, d.Amount(2), 1e-9)
}

func TestToggleCappedByRemainingFunds(t *testing.T) {
	// X balance 40, Y balance 60, funds 50. Enabling Y first takes 50 (capped
	// by funds, not its own balance); enabling X then gets 0 but stays selected.
	lines := []InvoiceLine{
		{ID: 1, Balance: 40},
		{ID: 2, Balance: 60},
	}
	d := NewDraft(lines, 50, false)

	d.Toggle(2, true)
	assert.InDelta(t, 50.0, d.Amount(2), 1e-9)
	assert.True(t, d.Selected(2))

	d.Toggle(1, true)
	assert.Zero(t, d.Amount(1))
	assert.True(t, d.Selected(1), "zero-amount toggle still shows as selected")
}

func TestToggleOffClearsAllocation(t *testing.T) {
	lines := []InvoiceLine{{ID: 1, Balance: 40}}
	d := NewDraft(lines, 100, false)

	d.Toggle(1, true)
	assert.InDelta(t, 40.0, d.Amount(1), 1e-9)

	d.Toggle(1, false)
	assert.Zero(t, d.Amount(1))
	assert.False(t, d.Selected(1))
}

func TestAllocationsInPresentedOrder(t *testing.T) {
	lines := []InvoiceLine{
		{ID: 7, Balance: 10},
		{ID: 3, Balance: 20},
		{ID: 9, Balance: 30},
	}
	d := NewDraft(lines, 60, true)

	allocs := d.Allocations()

	assert.Equal(t, []PlannedAllocation{
		{InvoiceID: 7, Amount: 10},
		{InvoiceID: 3, Amount: 20},
		{InvoiceID: 9, Amount: 30},
	}, allocs)
}

func TestValidate(t *testing.T) {
	lines := []InvoiceLine{{ID: 1, Balance: 40}}

	t.Run("no funds", func(t *testing.T) {
		d := NewDraft(lines, 0, false)
		assert.ErrorIs(t, d.Validate(), ErrNoFunds)
	})

	t.Run("nothing allocated", func(t *testing.T) {
		d := NewDraft(lines, 100, false)
		assert.ErrorIs(t, d.Validate(), ErrNothingAllocated)
	})

	t.Run("over-allocated", func(t *testing.T) {
		d := NewDraft(lines, 10, false)
		d.EnterAmount(1, 40) // within the invoice balance but above total funds
		assert.ErrorIs(t, d.Validate(), ErrOverAllocated)
	})

	t.Run("valid", func(t *testing.T) {
		d := NewDraft(lines, 100, false)
		d.EnterAmount(1, 40)
		assert.NoError(t, d.Validate())
	})
}
