package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"bizops-backend/database"
	"bizops-backend/middlewares"
	"bizops-backend/models"
	"bizops-backend/settlement"
	"bizops-backend/utils"
)

type creditMemoRequest struct {
	CustomerID uint    `json:"customer_id" validate:"required"`
	Total      float64 `json:"total" validate:"required,lt=0"`
	MemoDate   string  `json:"memo_date"`
	Reason     string  `json:"reason"`
}

// CreateCreditMemo is called by the invoicing workflow when a return or
// adjustment produces a negative grand total. It writes the self-settled
// Credit invoice plus the spendable Credit Memo payment.
func CreateCreditMemo(c *fiber.Ctx) error {
	var req creditMemoRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	utils.NormalizeDTO(&req)

	memoDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.MemoDate != "" {
		d, err := time.Parse(dateLayout, req.MemoDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid memo date")
		}
		memoDate = d
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var customer models.Customer
	if err := tenantDB.First(&customer, req.CustomerID).Error; err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "customer not found")
	}

	result, err := settlement.GenerateCreditMemo(tenantDB, req.CustomerID, req.Total, memoDate, req.Reason)
	if err != nil {
		if errors.Is(err, settlement.ErrNotACreditTotal) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}
