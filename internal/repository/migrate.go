package repository

import (
	"fee-management-backend/internal/models"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Employee{},
		&models.Student{},
		&models.Transaction{},
		&models.Complaint{},
		&models.VerificationAuditLog{},
	)
}
