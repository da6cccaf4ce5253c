package models

import (
	"time"

	"github.com/google/uuid"
)

type ComplaintStatus string

const (
	ComplaintPending   ComplaintStatus = "pending"
	ComplaintResponded ComplaintStatus = "responded"
)

type Complaint struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	ComplaintRef string          `gorm:"size:50;uniqueIndex;not null" json:"complaintRef"`
	StudentID    uuid.UUID       `gorm:"type:char(36);index;not null" json:"studentId"`
	Student      *Student        `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Subject      string          `gorm:"size:200;not null" json:"subject"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	Status       ComplaintStatus `gorm:"size:20;index;not null;default:pending" json:"status"`
	Response     string          `gorm:"type:text" json:"response,omitempty"`
	RespondedBy  *uuid.UUID      `gorm:"type:char(36)" json:"respondedBy,omitempty"`
	Responder    *Employee       `gorm:"foreignKey:RespondedBy" json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
