package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bizops-backend/database"
	"bizops-backend/middlewares"
	"bizops-backend/models"
	"bizops-backend/settlement"
	"bizops-backend/utils"
)

const dateLayout = "2006-01-02"

// GetSettlementContext loads everything the payment screen needs for one
// customer: outstanding invoices (balance > 0.01, oldest issue date first) and
// the unspent credit payments with their total.
func GetSettlementContext(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var customer models.Customer
	if err := tenantDB.First(&customer, c.Params("customerId")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "customer not found")
	}

	invoices, err := loadOutstandingInvoices(tenantDB, customer.Id)
	if err != nil {
		return err
	}
	credits, creditTotal, err := loadUnspentCredit(tenantDB, customer.Id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"customer":     customer,
		"invoices":     invoices,
		"credits":      credits,
		"credit_total": creditTotal,
		"methods":      models.ReceiptMethods(),
	})
}

type planAction struct {
	InvoiceID uint    `json:"invoice_id" validate:"required"`
	Action    string  `json:"action" validate:"required,oneof=amount select deselect"`
	Amount    float64 `json:"amount" validate:"gte=0"`
}

type planRequest struct {
	CustomerID  uint         `json:"customer_id" validate:"required"`
	CashAmount  float64      `json:"cash_amount" validate:"gte=0"`
	UseCredit   bool         `json:"use_credit"`
	CreditLimit float64      `json:"credit_limit" validate:"gte=0"`
	Auto        bool         `json:"auto"`
	Actions     []planAction `json:"actions" validate:"dive"`
}

type planLine struct {
	InvoiceID     uint    `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	Balance       float64 `json:"balance"`
	Amount        float64 `json:"amount"`
	Selected      bool    `json:"selected"`
}

// PlanSettlement evaluates a draft statelessly: resolve the funding, run the
// planner (auto or replaying the operator's manual actions in order) and
// return the per-invoice amounts plus totals. Nothing is written.
func PlanSettlement(c *fiber.Ctx) error {
	var req planRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	utils.NormalizeDTO(&req)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	invoices, err := loadOutstandingInvoices(tenantDB, req.CustomerID)
	if err != nil {
		return err
	}
	credits, _, err := loadUnspentCredit(tenantDB, req.CustomerID)
	if err != nil {
		return err
	}

	policy := settlement.CreditPolicy{Use: req.UseCredit, Limit: req.CreditLimit}
	_, available := settlement.ResolveFunding(credits, req.CashAmount, policy)

	lines := invoiceLines(invoices)
	draft := settlement.NewDraft(lines, available, req.Auto)
	for _, a := range req.Actions {
		switch a.Action {
		case "amount":
			draft.EnterAmount(a.InvoiceID, a.Amount)
		case "select":
			draft.Toggle(a.InvoiceID, true)
		case "deselect":
			draft.Toggle(a.InvoiceID, false)
		}
	}

	out := make([]planLine, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, planLine{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Balance:       inv.Balance(),
			Amount:        draft.Amount(inv.ID),
			Selected:      draft.Selected(inv.ID),
		})
	}

	return c.JSON(fiber.Map{
		"auto":            draft.Auto(),
		"total_available": available,
		"total_allocated": draft.TotalAllocated(),
		"lines":           out,
	})
}

type allocationInput struct {
	InvoiceID uint    `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
}

type commitRequest struct {
	CustomerID  uint              `json:"customer_id" validate:"required"`
	PaymentDate string            `json:"payment_date"`
	CashAmount  float64           `json:"cash_amount" validate:"gte=0"`
	Method      string            `json:"method" validate:"omitempty,oneof='Bank Transfer' Cash Cheque 'Credit Card'"`
	Reference   string            `json:"reference"`
	UseCredit   bool              `json:"use_credit"`
	CreditLimit float64           `json:"credit_limit" validate:"gte=0"`
	Allocations []allocationInput `json:"allocations" validate:"dive"`
}

// CommitSettlement validates the operator's draft against current balances
// and executes it. Both save actions of the payment screen (save-and-leave,
// save-and-next-customer) post here; only client-side navigation differs.
func CommitSettlement(c *fiber.Ctx) error {
	var req commitRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	utils.NormalizeDTO(&req)

	if req.CashAmount > 0 && req.Method == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "payment method is required")
	}

	paymentDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.PaymentDate != "" {
		d, err := time.Parse(dateLayout, req.PaymentDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payment date")
		}
		paymentDate = d
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var customer models.Customer
	if err := tenantDB.First(&customer, req.CustomerID).Error; err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "customer not found")
	}

	invoices, err := loadOutstandingInvoices(tenantDB, req.CustomerID)
	if err != nil {
		return err
	}
	credits, _, err := loadUnspentCredit(tenantDB, req.CustomerID)
	if err != nil {
		return err
	}

	policy := settlement.CreditPolicy{Use: req.UseCredit, Limit: req.CreditLimit}
	_, available := settlement.ResolveFunding(credits, req.CashAmount, policy)

	// Re-clamp the submitted amounts against current balances, then validate.
	draft := settlement.NewDraft(invoiceLines(invoices), available, false)
	for _, a := range req.Allocations {
		draft.EnterAmount(a.InvoiceID, a.Amount)
	}
	if err := draft.Validate(); err != nil {
		return settlementError(err)
	}

	result, err := settlement.Commit(tenantDB, settlement.CommitInput{
		CustomerID:  req.CustomerID,
		PaymentDate: paymentDate,
		CashAmount:  req.CashAmount,
		Method:      req.Method,
		Reason:      req.Reference,
		Credit:      policy,
		Allocations: draft.Allocations(),
	})
	if err != nil {
		return settlementError(err)
	}

	return c.JSON(result)
}

// GetSettlementRecord returns the audit snapshot of one committed settlement.
func GetSettlementRecord(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var record models.SettlementRecord
	if err := tenantDB.First(&record, c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "settlement record not found")
	}
	return c.JSON(record)
}

// settlementError maps engine errors to operator-facing responses: validation
// errors to 422 with their message, concurrency conflicts to 409.
func settlementError(err error) error {
	switch {
	case errors.Is(err, settlement.ErrNoFunds),
		errors.Is(err, settlement.ErrNothingAllocated),
		errors.Is(err, settlement.ErrOverAllocated):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, settlement.ErrConcurrentSettlement):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

func loadOutstandingInvoices(db *gorm.DB, customerID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := db.
		Where("customer_id = ? AND total_amount - paid_amount > ?", customerID, utils.CentTolerance).
		Order("invoice_date asc, id asc").
		Find(&invoices).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not load invoices")
	}
	return invoices, nil
}

func loadUnspentCredit(db *gorm.DB, customerID uint) ([]models.Payment, float64, error) {
	var credits []models.Payment
	if err := db.
		Where("customer_id = ? AND unallocated_amount > 0", customerID).
		Order("payment_date asc, id asc").
		Find(&credits).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "could not load credit")
	}
	total := 0.0
	for _, p := range credits {
		total = utils.Round2(total + p.UnallocatedAmount)
	}
	return credits, total, nil
}

func invoiceLines(invoices []models.Invoice) []settlement.InvoiceLine {
	lines := make([]settlement.InvoiceLine, 0, len(invoices))
	for _, inv := range invoices {
		lines = append(lines, settlement.InvoiceLine{ID: inv.ID, Balance: inv.Balance()})
	}
	return lines
}
