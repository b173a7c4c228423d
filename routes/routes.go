package routes

import (
	"github.com/gofiber/fiber/v2"

	"bizops-backend/controllers"
	"bizops-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Customer directory (read-only)
	protected.Get("/customers", controllers.GetCustomers)
	protected.Get("/customer/:id", controllers.GetCustomer)

	// Settlement engine
	protected.Get("/settlements/context/:customerId", controllers.GetSettlementContext)
	protected.Post("/settlements/plan", controllers.PlanSettlement)
	protected.Post("/settlements", controllers.CommitSettlement)
	protected.Get("/settlements/:id", controllers.GetSettlementRecord)

	// Credit memos (invoicing workflow entry point)
	protected.Post("/credit-memos", controllers.CreateCreditMemo)
}
