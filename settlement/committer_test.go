package settlement

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bizops-backend/models"
	"bizops-backend/utils"
)

var testDBCounter atomic.Int64

// newTestDB opens a fresh in-memory database per test. The named shared-cache
// DSN keeps the schema visible across pooled connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settlement_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Invoice{},
		&models.Payment{},
		&models.Allocation{},
		&models.SettlementRecord{},
		&models.CreditMemoSequence{},
	))

	require.NoError(t, db.Create(&models.Customer{Id: 1, Name: "Acme Foods", Active: true}).Error)
	return db
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func seedInvoice(t *testing.T, db *gorm.DB, id uint, total, paid float64, issued time.Time) models.Invoice {
	t.Helper()
	inv := models.Invoice{
		ID:            id,
		InvoiceNumber: fmt.Sprintf("INV-%04d", id),
		CustomerID:    1,
		InvoiceDate:   issued,
		DueDate:       issued.AddDate(0, 1, 0),
		TotalAmount:   total,
		PaidAmount:    paid,
		Status:        models.InvoiceStatusUnpaid,
	}
	require.NoError(t, db.Create(&inv).Error)
	return inv
}

func seedCredit(t *testing.T, db *gorm.DB, id uint, unallocated float64, received time.Time) models.Payment {
	t.Helper()
	p := models.Payment{
		ID:                id,
		CustomerID:        1,
		PaymentDate:       received,
		Amount:            unallocated,
		UnallocatedAmount: unallocated,
		Category:          models.CategoryCash,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestCommitDrainsCreditBeforeCash(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 100, 0, day(1))
	credit := seedCredit(t, db, 10, 30, day(1))

	res, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(5),
		CashAmount:  70,
		Method:      models.CategoryBankTransfer,
		Credit:      CreditPolicy{Use: true},
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 90}},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payment)

	// Credit went first and was fully drained; cash covered the rest.
	require.Len(t, res.Allocations, 2)
	assert.Equal(t, credit.ID, res.Allocations[0].PaymentID)
	assert.InDelta(t, 30.0, res.Allocations[0].Amount, 1e-9)
	assert.Equal(t, res.Payment.ID, res.Allocations[1].PaymentID)
	assert.InDelta(t, 60.0, res.Allocations[1].Amount, 1e-9)

	var creditAfter, cashAfter models.Payment
	require.NoError(t, db.First(&creditAfter, credit.ID).Error)
	require.NoError(t, db.First(&cashAfter, res.Payment.ID).Error)
	assert.InDelta(t, 0.0, creditAfter.UnallocatedAmount, 1e-9)
	assert.InDelta(t, 10.0, cashAfter.UnallocatedAmount, 1e-9, "unspent cash remains as stored credit")

	var invAfter models.Invoice
	require.NoError(t, db.First(&invAfter, inv.ID).Error)
	assert.InDelta(t, 90.0, invAfter.PaidAmount, 1e-9)
	assert.Equal(t, models.InvoiceStatusPartial, invAfter.Status)
}

func TestCommitConservationAndNonNegativity(t *testing.T) {
	db := newTestDB(t)
	invA := seedInvoice(t, db, 1, 45.55, 0, day(1))
	invB := seedInvoice(t, db, 2, 80.45, 0, day(2))
	seedCredit(t, db, 10, 25.10, day(1))
	seedCredit(t, db, 11, 14.90, day(2))

	res, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(9),
		CashAmount:  60,
		Method:      models.CategoryCheque,
		Credit:      CreditPolicy{Use: true},
		Allocations: []PlannedAllocation{
			{InvoiceID: invA.ID, Amount: 45.55},
			{InvoiceID: invB.ID, Amount: 54.45},
		},
	})
	require.NoError(t, err)

	// Conservation: allocations written == funds drawn == total applied.
	allocated := 0.0
	for _, a := range res.Allocations {
		allocated = utils.Round2(allocated + a.Amount)
	}
	assert.InDelta(t, 100.0, allocated, utils.CentTolerance)
	assert.InDelta(t, res.TotalApplied, allocated, utils.CentTolerance)

	var drawnFrom []models.Payment
	require.NoError(t, db.Find(&drawnFrom).Error)
	drawn := 0.0
	for _, p := range drawnFrom {
		assert.GreaterOrEqual(t, p.UnallocatedAmount, 0.0, "payment %d overdrawn", p.ID)
		drawn = utils.Round2(drawn + p.Amount - p.UnallocatedAmount)
	}
	assert.InDelta(t, allocated, drawn, utils.CentTolerance)

	var invoices []models.Invoice
	require.NoError(t, db.Find(&invoices).Error)
	for _, inv := range invoices {
		assert.LessOrEqual(t, inv.PaidAmount, inv.TotalAmount+utils.CentTolerance)
	}
}

func TestCommitDerivesStatuses(t *testing.T) {
	db := newTestDB(t)
	invA := seedInvoice(t, db, 1, 50, 0, day(1))
	invB := seedInvoice(t, db, 2, 80, 0, day(2))

	_, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		CashAmount:  100,
		Method:      models.CategoryCash,
		Allocations: []PlannedAllocation{
			{InvoiceID: invA.ID, Amount: 50},
			{InvoiceID: invB.ID, Amount: 50},
		},
	})
	require.NoError(t, err)

	var a, b models.Invoice
	require.NoError(t, db.First(&a, invA.ID).Error)
	require.NoError(t, db.First(&b, invB.ID).Error)
	assert.Equal(t, models.InvoiceStatusPaid, a.Status)
	assert.Equal(t, models.InvoiceStatusPartial, b.Status)
}

func TestCommitOverAllocationWritesNothing(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 100, 0, day(1))

	_, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		CashAmount:  50,
		Method:      models.CategoryCash,
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 80}},
	})
	require.ErrorIs(t, err, ErrOverAllocated)

	// The rolled-back transaction must leave no trace, including the new
	// cash payment created before validation.
	var paymentCount, allocationCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.NoError(t, db.Model(&models.Allocation{}).Count(&allocationCount).Error)
	assert.Zero(t, paymentCount)
	assert.Zero(t, allocationCount)

	var invAfter models.Invoice
	require.NoError(t, db.First(&invAfter, inv.ID).Error)
	assert.Zero(t, invAfter.PaidAmount)
	assert.Equal(t, models.InvoiceStatusUnpaid, invAfter.Status)
}

func TestCommitRejectsZeroFunds(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 100, 0, day(1))

	_, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 10}},
	})
	assert.ErrorIs(t, err, ErrNoFunds)
}

func TestCommitCreditOnly(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 40, 0, day(1))
	credit := seedCredit(t, db, 10, 55, day(1))

	res, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		Credit:      CreditPolicy{Use: true},
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 40}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Payment, "no cash received, no payment row created")
	assert.Nil(t, res.Record.PaymentID)

	var creditAfter models.Payment
	require.NoError(t, db.First(&creditAfter, credit.ID).Error)
	assert.InDelta(t, 15.0, creditAfter.UnallocatedAmount, 1e-9)
}

func TestCommitWritesAuditSnapshot(t *testing.T) {
	db := newTestDB(t)
	inv := seedInvoice(t, db, 1, 25, 0, day(1))

	res, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		CashAmount:  25,
		Method:      models.CategoryCreditCard,
		Allocations: []PlannedAllocation{{InvoiceID: inv.ID, Amount: 25}},
	})
	require.NoError(t, err)
	require.NotZero(t, res.Record.ID)

	var record models.SettlementRecord
	require.NoError(t, db.First(&record, res.Record.ID).Error)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(record.Snapshot, &snap))
	assert.InDelta(t, 25.0, snap["total_applied"].(float64), 1e-9)
	assert.InDelta(t, 25.0, snap["total_available"].(float64), 1e-9)
}

func TestCommitRejectsForeignInvoice(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Customer{Id: 2, Name: "Other"}).Error)
	other := models.Invoice{
		ID: 9, InvoiceNumber: "INV-0009", CustomerID: 2,
		InvoiceDate: day(1), TotalAmount: 10, Status: models.InvoiceStatusUnpaid,
	}
	require.NoError(t, db.Create(&other).Error)

	_, err := Commit(db, CommitInput{
		CustomerID:  1,
		PaymentDate: day(3),
		CashAmount:  10,
		Method:      models.CategoryCash,
		Allocations: []PlannedAllocation{{InvoiceID: other.ID, Amount: 10}},
	})
	assert.Error(t, err)
}
