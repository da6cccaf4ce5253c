// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"strings"
	"testing"

	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the schema applied.
// A single connection keeps every statement on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)

	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// SeedStudent inserts a student with the given fee totals.
func SeedStudent(t *testing.T, db *gorm.DB, roll string, total, paid int64) *models.Student {
	t.Helper()

	s := &models.Student{
		ID:            uuid.New(),
		Name:          "Student " + roll,
		RollNumber:    roll,
		Category:      "General",
		AcademicYear:  "2024-25",
		Branch:        "CSE",
		FeeType:       "Tuition",
		TotalFees:     decimal.NewFromInt(total),
		PaidAmount:    decimal.NewFromInt(paid),
		PendingAmount: decimal.NewFromInt(total - paid),
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// SeedEmployee inserts an active reviewer account.
func SeedEmployee(t *testing.T, db *gorm.DB, email, role string) *models.Employee {
	t.Helper()

	e := &models.Employee{
		ID:           uuid.New(),
		Username:     strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: "unused",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// SeedTransaction inserts a transaction in the given state.
func SeedTransaction(t *testing.T, db *gorm.DB, student *models.Student, ref string, amount int64, year string, status models.TransactionStatus) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		ID:             uuid.New(),
		TransactionRef: ref,
		StudentID:      student.ID,
		Amount:         decimal.NewFromInt(amount),
		FeeType:        "Tuition",
		AcademicYear:   year,
		UTRNumber:      "UTR" + ref,
		Status:         status,
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

// ReloadStudent reads the student row back from the database.
func ReloadStudent(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Student {
	t.Helper()

	var s models.Student
	require.NoError(t, db.First(&s, "id = ?", id).Error)
	return &s
}

// ReloadTransaction reads the transaction row back from the database.
func ReloadTransaction(t *testing.T, db *gorm.DB, ref string) *models.Transaction {
	t.Helper()

	var tx models.Transaction
	require.NoError(t, db.First(&tx, "transaction_ref = ?", ref).Error)
	return &tx
}

// AssertMoney checks a stored decimal against a whole-unit amount.
func AssertMoney(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got.String())
}
