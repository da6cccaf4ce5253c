package handler

import (
	"net/http"

	"fee-management-backend/internal/services/complaints"

	"github.com/gin-gonic/gin"
)

type ComplaintHandler struct {
	complaints *complaints.Service
}

func NewComplaintHandler(s *complaints.Service) *ComplaintHandler {
	return &ComplaintHandler{complaints: s}
}

func (h *ComplaintHandler) Submit(c *gin.Context) {
	var payload struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	complaint, err := h.complaints.Submit(c.Request.Context(), caller(c), complaints.SubmitRequest{
		Subject:     payload.Subject,
		Description: payload.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Complaint submitted successfully",
		"complaint": gin.H{
			"id":      complaint.ComplaintRef,
			"subject": complaint.Subject,
			"status":  complaint.Status,
			"date":    complaint.CreatedAt,
		},
	})
}

func (h *ComplaintHandler) List(c *gin.Context) {
	list, err := h.complaints.List(c.Request.Context(), caller(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "complaints": list})
}

func (h *ComplaintHandler) Respond(c *gin.Context) {
	var payload struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	complaint, err := h.complaints.Respond(c.Request.Context(), caller(c), c.Param("ref"), payload.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Response recorded", "complaint": complaint})
}
