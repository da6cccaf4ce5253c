package reporting

import (
	"time"

	"fee-management-backend/internal/models"
)

// Amounts in views are plain JSON numbers, the shape the dashboards read.

type StudentSummary struct {
	Name          string  `json:"name"`
	RollNumber    string  `json:"rollNumber"`
	Branch        string  `json:"branch"`
	AcademicYear  string  `json:"academicYear"`
	Category      string  `json:"category"`
	TotalFees     float64 `json:"totalFees"`
	PaidAmount    float64 `json:"paidAmount"`
	PendingAmount float64 `json:"pendingAmount"`
}

type PaymentLine struct {
	TransactionID string  `json:"transactionId"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
	FeeType       string  `json:"feeType"`
	Status        string  `json:"status"`
	BillNumber    string  `json:"billNumber"`
}

type YearSummary struct {
	TotalAmount   float64       `json:"total_amount"`
	PaidAmount    float64       `json:"paid_amount"`
	PendingAmount float64       `json:"pending_amount"`
	Transactions  []PaymentLine `json:"transactions"`
}

type PaymentDetails struct {
	Student  StudentSummary         `json:"student"`
	YearWise map[string]YearSummary `json:"yearWiseData"`
}

type StudentRow struct {
	Name          string  `json:"name"`
	RollNumber    string  `json:"rollNumber"`
	Branch        string  `json:"branch"`
	AcademicYear  string  `json:"academicYear"`
	Category      string  `json:"category"`
	TotalAmount   float64 `json:"totalAmount"`
	PaidAmount    float64 `json:"paidAmount"`
	PendingAmount float64 `json:"pendingAmount"`
}

type TransactionRow struct {
	ID           string    `json:"id"`
	Amount       float64   `json:"amount"`
	FeeType      string    `json:"feeType"`
	AcademicYear string    `json:"academicYear"`
	Status       string    `json:"status"`
	BillNumber   string    `json:"billNumber,omitempty"`
	Date         time.Time `json:"date"`
}

type ComplaintRow struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Response    string    `json:"response"`
	Date        time.Time `json:"date"`
}

func summaryOf(s *models.Student) StudentSummary {
	return StudentSummary{
		Name:          s.Name,
		RollNumber:    s.RollNumber,
		Branch:        s.Branch,
		AcademicYear:  s.AcademicYear,
		Category:      s.Category,
		TotalFees:     s.TotalFees.InexactFloat64(),
		PaidAmount:    s.PaidAmount.InexactFloat64(),
		PendingAmount: s.PendingAmount.InexactFloat64(),
	}
}

func rowOf(s *models.Student) StudentRow {
	return StudentRow{
		Name:          s.Name,
		RollNumber:    s.RollNumber,
		Branch:        s.Branch,
		AcademicYear:  s.AcademicYear,
		Category:      s.Category,
		TotalAmount:   s.TotalFees.InexactFloat64(),
		PaidAmount:    s.PaidAmount.InexactFloat64(),
		PendingAmount: s.PendingAmount.InexactFloat64(),
	}
}

func rowsOf(students []models.Student) []StudentRow {
	rows := make([]StudentRow, 0, len(students))
	for i := range students {
		rows = append(rows, rowOf(&students[i]))
	}
	return rows
}
