package settlement

import (
	"bizops-backend/utils"
)

// InvoiceLine is the planner's view of one outstanding invoice, in the order
// the invoices are presented to the operator (oldest issue date first).
type InvoiceLine struct {
	ID      uint    `json:"id"`
	Balance float64 `json:"balance"`
}

// PlannedAllocation pairs an invoice with the amount the draft assigns to it.
type PlannedAllocation struct {
	InvoiceID uint    `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}

// Draft is the in-progress allocation for one settlement: a proposed amount
// per invoice plus the auto flag. While auto is on, any change to the
// available funds redistributes them greedily oldest-invoice-first; the first
// manual edit turns auto off for the rest of the draft.
type Draft struct {
	lines     []InvoiceLine
	amounts   map[uint]float64
	selected  map[uint]bool
	available float64
	auto      bool
}

// NewDraft builds a draft over the presented invoice lines. With auto on the
// available funds are allocated immediately.
func NewDraft(lines []InvoiceLine, available float64, auto bool) *Draft {
	d := &Draft{
		lines:     lines,
		amounts:   make(map[uint]float64, len(lines)),
		selected:  make(map[uint]bool, len(lines)),
		available: utils.Round2(available),
		auto:      auto,
	}
	if d.auto {
		d.autoAllocate()
	}
	return d
}

// autoAllocate performs the greedy oldest-first settlement: walk the lines in
// presented order, pay min(remaining, balance) to each, stop at zero funds.
func (d *Draft) autoAllocate() {
	d.amounts = make(map[uint]float64, len(d.lines))
	d.selected = make(map[uint]bool, len(d.lines))
	remaining := d.available
	for _, line := range d.lines {
		if remaining <= 0 {
			break
		}
		pay := utils.Round2(remaining)
		if line.Balance < pay {
			pay = utils.Round2(line.Balance)
		}
		if pay > 0 {
			d.amounts[line.ID] = pay
			d.selected[line.ID] = true
			remaining = utils.Round2(remaining - pay)
		}
	}
}

// Recalculate replaces the available funds. In auto mode the whole draft is
// redistributed; in manual mode existing entries are left alone (validation
// catches any resulting over-allocation at save time).
func (d *Draft) Recalculate(available float64) {
	d.available = utils.Round2(available)
	if d.auto {
		d.autoAllocate()
	}
}

// EnterAmount records a direct operator entry for one invoice, clamped to that
// invoice's own balance regardless of total funds. Disables auto mode.
func (d *Draft) EnterAmount(invoiceID uint, amount float64) {
	d.auto = false
	line, ok := d.line(invoiceID)
	if !ok {
		return
	}
	amount = utils.Round2(amount)
	if amount < 0 {
		amount = 0
	}
	if amount > line.Balance {
		amount = utils.Round2(line.Balance)
	}
	d.amounts[invoiceID] = amount
	d.selected[invoiceID] = amount > 0
}

// Toggle marks an invoice for payment (on) or clears it (off). Turning it on
// assigns min(funds not already allocated elsewhere, invoice balance), which
// may be zero when funds are exhausted; the invoice still counts as selected.
// Disables auto mode.
func (d *Draft) Toggle(invoiceID uint, on bool) {
	d.auto = false
	line, ok := d.line(invoiceID)
	if !ok {
		return
	}
	if !on {
		delete(d.amounts, invoiceID)
		delete(d.selected, invoiceID)
		return
	}
	others := 0.0
	for id, amt := range d.amounts {
		if id != invoiceID {
			others = utils.Round2(others + amt)
		}
	}
	free := utils.Round2(d.available - others)
	if free < 0 {
		free = 0
	}
	pay := free
	if line.Balance < pay {
		pay = utils.Round2(line.Balance)
	}
	d.amounts[invoiceID] = pay
	d.selected[invoiceID] = true
}

// Auto reports whether the draft is still in automatic mode.
func (d *Draft) Auto() bool { return d.auto }

// Amount returns the draft allocation for one invoice.
func (d *Draft) Amount(invoiceID uint) float64 { return d.amounts[invoiceID] }

// Selected reports whether the invoice is marked for payment, even when its
// allocation is zero.
func (d *Draft) Selected(invoiceID uint) bool { return d.selected[invoiceID] }

// TotalAllocated sums the draft's allocations.
func (d *Draft) TotalAllocated() float64 {
	total := 0.0
	for _, amt := range d.amounts {
		total = utils.Round2(total + amt)
	}
	return total
}

// Allocations returns the positive allocations in presented invoice order,
// ready for the committer.
func (d *Draft) Allocations() []PlannedAllocation {
	var out []PlannedAllocation
	for _, line := range d.lines {
		if amt := d.amounts[line.ID]; amt > 0 {
			out = append(out, PlannedAllocation{InvoiceID: line.ID, Amount: amt})
		}
	}
	return out
}

// Validate runs the pre-commit checks: funds must be positive, something must
// be allocated, and the allocated total must not exceed the available funds.
func (d *Draft) Validate() error {
	if d.available <= 0 {
		return ErrNoFunds
	}
	total := d.TotalAllocated()
	if total <= 0 {
		return ErrNothingAllocated
	}
	if total > d.available+utils.CentTolerance {
		return ErrOverAllocated
	}
	return nil
}

func (d *Draft) line(invoiceID uint) (InvoiceLine, bool) {
	for _, l := range d.lines {
		if l.ID == invoiceID {
			return l, true
		}
	}
	return InvoiceLine{}, false
}
