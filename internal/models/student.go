package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Student struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	RollNumber    string          `gorm:"size:20;uniqueIndex;not null" json:"rollNumber"`
	Gender        string          `gorm:"size:10" json:"gender"`
	Category      string          `gorm:"size:50;index;not null" json:"category"`
	AcademicYear  string          `gorm:"size:20;index;not null" json:"academicYear"`
	Branch        string          `gorm:"size:50;index;not null" json:"branch"`
	FeeType       string          `gorm:"size:50" json:"feeType"`
	BillNumber    string          `gorm:"size:50" json:"billNumber"`
	TotalFees     decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"totalFees"`
	PaidAmount    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"paidAmount"`
	PendingAmount decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0;index" json:"pendingAmount"`
	PasswordHash  string          `gorm:"size:100" json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsPaid reports whether nothing is left to pay.
func (s *Student) IsPaid() bool {
	return s.PendingAmount.LessThanOrEqual(decimal.Zero)
}
