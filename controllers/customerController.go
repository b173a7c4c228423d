package controllers

import (
	"github.com/gofiber/fiber/v2"

	"bizops-backend/database"
	"bizops-backend/models"
)

// Customer records are maintained by the surrounding dashboard; this service
// only exposes the read-only directory used for settlement selection.

func GetCustomers(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var customers []models.Customer
	if err := tenantDB.Order("name asc").Find(&customers).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load customers")
	}

	return c.JSON(fiber.Map{
		"customers": customers,
		"message":   "success",
	})
}

func GetCustomer(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var customer models.Customer
	if err := tenantDB.First(&customer, c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "customer not found")
	}

	return c.JSON(customer)
}
