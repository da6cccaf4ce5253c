package handler

import (
	"net/http"
	"strconv"

	"fee-management-backend/internal/services/fees"
	"fee-management-backend/internal/services/matching"
	"fee-management-backend/internal/services/reporting"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	fees      *fees.Service
	reporting *reporting.Service
	matching  *matching.Engine
}

func NewTransactionHandler(f *fees.Service, r *reporting.Service, m *matching.Engine) *TransactionHandler {
	return &TransactionHandler{fees: f, reporting: r, matching: m}
}

func (h *TransactionHandler) Submit(c *gin.Context) {
	var payload struct {
		RollNumber string `json:"rollNumber"`
		// paidAmount is the dashboard's name; amount is accepted as well.
		PaidAmount   *decimal.Decimal `json:"paidAmount"`
		Amount       *decimal.Decimal `json:"amount"`
		FeeType      string           `json:"feeType"`
		AcademicYear string           `json:"academicYear"`
		UTRNumber    string           `json:"utrNumber"`
		MobileNumber string           `json:"mobileNumber"`
		TransDate    string           `json:"transDate"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	var amount decimal.Decimal
	switch {
	case payload.PaidAmount != nil && payload.Amount != nil && !payload.PaidAmount.Equal(*payload.Amount):
		badRequest(c, "amount and paidAmount disagree")
		return
	case payload.PaidAmount != nil:
		amount = *payload.PaidAmount
	case payload.Amount != nil:
		amount = *payload.Amount
	}

	tx, err := h.fees.Submit(c.Request.Context(), caller(c), fees.SubmitRequest{
		RollNumber:   payload.RollNumber,
		Amount:       amount,
		FeeType:      payload.FeeType,
		AcademicYear: payload.AcademicYear,
		UTRNumber:    payload.UTRNumber,
		MobileNumber: payload.MobileNumber,
		TransDate:    payload.TransDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Transaction submitted successfully",
		"transaction": gin.H{
			"transactionRef": tx.TransactionRef,
			"amount":         tx.Amount.InexactFloat64(),
			"status":         tx.Status,
		},
	})
}

func (h *TransactionHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	page, err := h.reporting.ListTransactions(c.Request.Context(), caller(c), c.Query("status"), c.Query("cursor"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"items":       page.Items,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
		"stats":       page.Stats,
	})
}

// Get returns one transaction together with its review assessment.
func (h *TransactionHandler) Get(c *gin.Context) {
	ref := c.Param("ref")
	tx, err := h.reporting.Transaction(c.Request.Context(), caller(c), ref)
	if err != nil {
		respondError(c, err)
		return
	}

	review, err := h.matching.Assess(c.Request.Context(), caller(c), ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": tx, "review": review})
}

func (h *TransactionHandler) Decide(c *gin.Context) {
	var payload struct {
		Action     string `json:"action"`
		Comment    string `json:"comment"`
		BillNumber string `json:"billNumber"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	action, err := fees.ParseAction(payload.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.fees.Decide(c.Request.Context(), caller(c), fees.DecideRequest{
		TransactionRef: c.Param("ref"),
		Action:         action,
		Comment:        payload.Comment,
		BillNumber:     payload.BillNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"success": true,
		"message": "Transaction " + string(res.Transaction.Status),
		"transaction": gin.H{
			"transactionRef": res.Transaction.TransactionRef,
			"status":         res.Transaction.Status,
			"amount":         res.Transaction.Amount.InexactFloat64(),
		},
	}
	if res.Balance != nil {
		body["balance"] = gin.H{
			"rollNumber":    res.Balance.RollNumber,
			"totalFees":     res.Balance.TotalFees.InexactFloat64(),
			"paidAmount":    res.Balance.PaidAmount.InexactFloat64(),
			"pendingAmount": res.Balance.PendingAmount.InexactFloat64(),
		}
	}
	c.JSON(http.StatusOK, body)
}
