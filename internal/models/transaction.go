package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionVerified TransactionStatus = "verified"
	TransactionRejected TransactionStatus = "rejected"
)

// Transaction is a fee payment claimed by a student. It starts pending and
// is decided exactly once.
type Transaction struct {
	ID                  uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	TransactionRef      string            `gorm:"size:50;uniqueIndex;not null" json:"transactionRef"`
	StudentID           uuid.UUID         `gorm:"type:char(36);index;not null" json:"studentId"`
	Student             *Student          `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Amount              decimal.Decimal   `gorm:"type:numeric(10,2);not null" json:"amount"`
	FeeType             string            `gorm:"size:50;not null" json:"feeType"`
	AcademicYear        string            `gorm:"size:20;index;not null" json:"academicYear"`
	UTRNumber           string            `gorm:"column:utr_number;size:50" json:"utrNumber"`
	MobileNumber        string            `gorm:"size:15" json:"mobileNumber,omitempty"`
	BillNumber          string            `gorm:"size:50" json:"billNumber,omitempty"`
	Status              TransactionStatus `gorm:"size:20;index;not null;default:pending" json:"status"`
	VerificationComment string            `json:"verificationComment,omitempty"`
	VerifiedBy          *uuid.UUID        `gorm:"type:char(36)" json:"verifiedBy,omitempty"`
	Verifier            *Employee         `gorm:"foreignKey:VerifiedBy" json:"-"`
	VerifiedAt          *time.Time        `json:"verifiedAt,omitempty"`
	PaymentDate         time.Time         `json:"date"`
	CreatedAt           time.Time         `json:"createdAt"`
}

func (t *Transaction) IsPending() bool {
	return t.Status == TransactionPending
}
