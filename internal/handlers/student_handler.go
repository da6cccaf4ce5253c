package handler

import (
	"net/http"

	"fee-management-backend/internal/services/reporting"
	"fee-management-backend/internal/services/students"

	"github.com/gin-gonic/gin"
)

type StudentHandler struct {
	students  *students.Service
	reporting *reporting.Service
}

func NewStudentHandler(s *students.Service, r *reporting.Service) *StudentHandler {
	return &StudentHandler{students: s, reporting: r}
}

func (h *StudentHandler) List(c *gin.Context) {
	roster, err := h.reporting.ListStudents(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": roster.Students, "statistics": roster.Statistics})
}

func (h *StudentHandler) Register(c *gin.Context) {
	var req students.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	s, err := h.students.Register(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Student added successfully", "student": s})
}

// Update applies a partial edit; fields absent from the body keep their
// stored values.
func (h *StudentHandler) Update(c *gin.Context) {
	var req students.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	s, err := h.students.UpdateProfile(c.Request.Context(), caller(c), c.Param("roll"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Student saved successfully", "student": s})
}

func (h *StudentHandler) Filter(c *gin.Context) {
	var req reporting.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	rows, err := h.reporting.FilterStudents(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": rows})
}

// Upload imports a roster CSV sent as the multipart field "file".
func (h *StudentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	defer file.Close()

	res, err := h.students.Import(c.Request.Context(), caller(c), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": header.Filename, "result": res})
}

func (h *StudentHandler) PaymentDetails(c *gin.Context) {
	details, err := h.reporting.PaymentDetails(c.Request.Context(), caller(c), c.Param("roll"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": details.Student, "yearWiseData": details.YearWise})
}

func (h *StudentHandler) Transactions(c *gin.Context) {
	rows, err := h.reporting.StudentTransactions(c.Request.Context(), caller(c), c.Param("roll"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": rows})
}

func (h *StudentHandler) Complaints(c *gin.Context) {
	rows, err := h.reporting.StudentComplaints(c.Request.Context(), caller(c), c.Param("roll"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "complaints": rows})
}
