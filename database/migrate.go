package database

import (
	"fmt"

	"gorm.io/gorm"

	"bizops-backend/models"
)

// MigrateTenantSchema applies (idempotent) schema migrations for one tenant:
// - AutoMigrate (tables/columns)
// - Money column types (NUMERIC(12,2))
// - Indexes (payments by customer/date, allocations by payment and invoice)
// - Basic CHECK constraints guarding the ledger invariants
// - Idempotency keys table + unique index
func MigrateTenantSchema(schema string) error {
	if schema == "" {
		return fmt.Errorf("schema name is empty")
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		if err := tx.AutoMigrate(
			&models.Customer{},
			&models.Invoice{},
			&models.Payment{},
			&models.Allocation{},
			&models.SettlementRecord{},
			&models.CreditMemoSequence{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE invoices    ALTER COLUMN total_amount       TYPE numeric(12,2)`,
			`ALTER TABLE invoices    ALTER COLUMN paid_amount        TYPE numeric(12,2)`,
			`ALTER TABLE payments    ALTER COLUMN amount             TYPE numeric(12,2)`,
			`ALTER TABLE payments    ALTER COLUMN unallocated_amount TYPE numeric(12,2)`,
			`ALTER TABLE allocations ALTER COLUMN amount             TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_payments_customer_date ON payments (customer_id, payment_date)`,
			`CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations (payment_id)`,
			`CREATE INDEX IF NOT EXISTS idx_allocations_invoice ON allocations (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_invoices_customer_date ON invoices (customer_id, invoice_date)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- CHECK constraints guarding ledger invariants (idempotent) ---
		checks := []string{
			// A payment can never be drawn below zero, nor above its amount.
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payments'::regclass
					  AND conname  = 'chk_payments_unallocated_range'
				) THEN
					ALTER TABLE payments
					ADD CONSTRAINT chk_payments_unallocated_range
					CHECK (unallocated_amount >= 0 AND unallocated_amount <= amount + 0.01);
				END IF;
			END $$;`,
			// Payment amounts are non-negative (credit memos store the absolute value).
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payments'::regclass
					  AND conname  = 'chk_payments_amount_nonneg'
				) THEN
					ALTER TABLE payments
					ADD CONSTRAINT chk_payments_amount_nonneg
					CHECK (amount >= 0);
				END IF;
			END $$;`,
			// Allocation ledger entries are strictly positive.
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'allocations'::regclass
					  AND conname  = 'chk_allocations_amount_positive'
				) THEN
					ALTER TABLE allocations
					ADD CONSTRAINT chk_allocations_amount_positive
					CHECK (amount > 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
