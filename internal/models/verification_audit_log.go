package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// VerificationAuditLog records one decision on a transaction. It is written
// in the same database transaction as the decision itself.
type VerificationAuditLog struct {
	ID             uuid.UUID         `gorm:"type:char(36);primaryKey"`
	TransactionID  uuid.UUID         `gorm:"type:char(36);index"`
	Action         string            `gorm:"size:20"`
	PreviousStatus TransactionStatus `gorm:"size:20"`
	NewStatus      TransactionStatus `gorm:"size:20"`
	Amount         decimal.Decimal   `gorm:"type:numeric(10,2)"`
	PerformedBy    uuid.UUID         `gorm:"type:char(36);index"`
	Details        datatypes.JSON
	CreatedAt      time.Time
}
