package settlement

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bizops-backend/models"
	"bizops-backend/utils"
)

// CommitInput carries everything a validated draft needs to be executed.
// Allocations must be in the order the invoices were presented to the
// operator and contain positive amounts only.
type CommitInput struct {
	CustomerID  uint
	PaymentDate time.Time
	CashAmount  float64
	Method      string
	Reason      string
	Credit      CreditPolicy
	Allocations []PlannedAllocation
}

// CommitResult reports what a successful commit wrote.
type CommitResult struct {
	Payment      *models.Payment         `json:"payment"` // nil when the commit spent stored credit only
	Allocations  []models.Allocation     `json:"allocations"`
	Invoices     []models.Invoice        `json:"invoices"`
	Record       models.SettlementRecord `json:"record"`
	TotalApplied float64                 `json:"total_applied"`
}

// snapshot is the shape persisted into SettlementRecord.Snapshot.
type snapshot struct {
	CustomerID     uint                `json:"customer_id"`
	PaymentID      *uint               `json:"payment_id,omitempty"`
	TotalAvailable float64             `json:"total_available"`
	TotalApplied   float64             `json:"total_applied"`
	Sources        []FundingSource     `json:"sources"` // balances as resolved, before draw-down
	Allocations    []models.Allocation `json:"allocations"`
	Invoices       []invoiceState      `json:"invoices"`
}

type invoiceState struct {
	ID         uint    `json:"id"`
	PaidAmount float64 `json:"paid_amount"`
	Status     string  `json:"status"`
}

// Commit executes a planned allocation inside a single transaction:
//
//  1. create the new cash Payment (if any), the last funding source
//  2. resolve funding sources: stored credit oldest first, then the cash
//  3. per invoice in presented order, draw from the sources sequentially
//  4. roll each invoice's paid amount forward and derive its status
//  5. write the audit snapshot
//
// Funding and invoice rows are written with conditional updates guarded by
// the balance read in this transaction; a concurrent settlement touching the
// same rows makes the guard miss and the whole commit rolls back with
// ErrConcurrentSettlement. No source balance can go negative and the total
// drawn always equals the total allocated, within rounding tolerance.
func Commit(db *gorm.DB, in CommitInput) (*CommitResult, error) {
	var res *CommitResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = commit(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func commit(tx *gorm.DB, in CommitInput) (*CommitResult, error) {
	cash := utils.Round2(in.CashAmount)

	var credits []models.Payment
	if in.Credit.Use {
		if err := tx.
			Where("customer_id = ? AND unallocated_amount > 0", in.CustomerID).
			Order("payment_date asc, id asc").
			Find(&credits).Error; err != nil {
			return nil, fmt.Errorf("load credit payments: %w", err)
		}
	}

	var cashPayment *models.Payment
	if cash > 0 {
		cashPayment = &models.Payment{
			CustomerID:        in.CustomerID,
			PaymentDate:       in.PaymentDate,
			Amount:            cash,
			UnallocatedAmount: cash,
			Category:          in.Method,
			Reason:            in.Reason,
		}
		if err := tx.Create(cashPayment).Error; err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	sources, available := ResolveFunding(credits, cash, in.Credit)
	for i := range sources {
		if sources[i].Cash {
			sources[i].PaymentID = cashPayment.ID
		}
	}
	resolved := make([]FundingSource, len(sources))
	copy(resolved, sources)

	total := 0.0
	for _, a := range in.Allocations {
		total = utils.Round2(total + a.Amount)
	}
	switch {
	case available <= 0:
		return nil, ErrNoFunds
	case total <= 0:
		return nil, ErrNothingAllocated
	case total > available+utils.CentTolerance:
		return nil, ErrOverAllocated
	}

	// Last unallocated value seen per payment; every write is guarded on it.
	current := make(map[uint]float64, len(credits)+1)
	for _, p := range credits {
		current[p.ID] = utils.Round2(p.UnallocatedAmount)
	}
	if cashPayment != nil {
		current[cashPayment.ID] = cash
	}

	var (
		allocations []models.Allocation
		invoices    []models.Invoice
	)
	for _, planned := range in.Allocations {
		var invoice models.Invoice
		if err := tx.First(&invoice, planned.InvoiceID).Error; err != nil {
			return nil, fmt.Errorf("load invoice %d: %w", planned.InvoiceID, err)
		}
		if invoice.CustomerID != in.CustomerID {
			return nil, fmt.Errorf("invoice %d does not belong to customer %d", invoice.ID, in.CustomerID)
		}

		remaining := utils.Round2(planned.Amount)
		for i := range sources {
			src := &sources[i]
			if remaining <= 0 {
				break
			}
			if src.Balance <= 0 {
				continue
			}
			t := remaining
			if src.Balance < t {
				t = src.Balance
			}
			t = utils.Round2(t)
			if t <= 0 {
				continue
			}

			alloc := models.Allocation{
				PaymentID: src.PaymentID,
				InvoiceID: invoice.ID,
				Amount:    t,
			}
			if err := tx.Create(&alloc).Error; err != nil {
				return nil, fmt.Errorf("create allocation: %w", err)
			}
			allocations = append(allocations, alloc)

			observed := current[src.PaymentID]
			next := utils.Round2(observed - t)
			upd := tx.Model(&models.Payment{}).
				Where("id = ? AND unallocated_amount = ?", src.PaymentID, observed).
				Update("unallocated_amount", next)
			if upd.Error != nil {
				return nil, fmt.Errorf("update payment %d: %w", src.PaymentID, upd.Error)
			}
			if upd.RowsAffected != 1 {
				return nil, ErrConcurrentSettlement
			}
			current[src.PaymentID] = next
			src.Balance = utils.Round2(src.Balance - t)
			remaining = utils.Round2(remaining - t)
		}
		if remaining > utils.CentTolerance {
			// Funding ran dry mid-invoice; validation should have caught this.
			return nil, ErrOverAllocated
		}

		newPaid := utils.Round2(invoice.PaidAmount + planned.Amount)
		status := models.NextStatus(invoice.Status, invoice.TotalAmount, newPaid)
		upd := tx.Model(&models.Invoice{}).
			Where("id = ? AND paid_amount = ?", invoice.ID, invoice.PaidAmount).
			Updates(map[string]any{"paid_amount": newPaid, "status": status})
		if upd.Error != nil {
			return nil, fmt.Errorf("update invoice %d: %w", invoice.ID, upd.Error)
		}
		if upd.RowsAffected != 1 {
			return nil, ErrConcurrentSettlement
		}
		invoice.PaidAmount = newPaid
		invoice.Status = status
		invoices = append(invoices, invoice)
	}

	record, err := writeRecord(tx, in.CustomerID, cashPayment, available, total, resolved, allocations, invoices)
	if err != nil {
		return nil, err
	}

	return &CommitResult{
		Payment:      cashPayment,
		Allocations:  allocations,
		Invoices:     invoices,
		Record:       record,
		TotalApplied: total,
	}, nil
}

func writeRecord(
	tx *gorm.DB,
	customerID uint,
	cashPayment *models.Payment,
	available, total float64,
	sources []FundingSource,
	allocations []models.Allocation,
	invoices []models.Invoice,
) (models.SettlementRecord, error) {
	snap := snapshot{
		CustomerID:     customerID,
		TotalAvailable: available,
		TotalApplied:   total,
		Sources:        sources,
		Allocations:    allocations,
	}
	var paymentID *uint
	if cashPayment != nil {
		paymentID = &cashPayment.ID
		snap.PaymentID = paymentID
	}
	for _, inv := range invoices {
		snap.Invoices = append(snap.Invoices, invoiceState{
			ID:         inv.ID,
			PaidAmount: inv.PaidAmount,
			Status:     inv.Status,
		})
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return models.SettlementRecord{}, fmt.Errorf("marshal settlement snapshot: %w", err)
	}
	record := models.SettlementRecord{
		CustomerID: customerID,
		PaymentID:  paymentID,
		Snapshot:   datatypes.JSON(raw),
	}
	if err := tx.Create(&record).Error; err != nil {
		return models.SettlementRecord{}, fmt.Errorf("create settlement record: %w", err)
	}
	return record, nil
}
