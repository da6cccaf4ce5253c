package handler

import (
	"net/http"
	"time"

	"fee-management-backend/internal/services/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	students  auth.Authenticator
	employees auth.Authenticator
	tokens    *auth.TokenIssuer
	accounts  *auth.Accounts
}

func NewAuthHandler(students, employees auth.Authenticator, tokens *auth.TokenIssuer, accounts *auth.Accounts) *AuthHandler {
	return &AuthHandler{students: students, employees: employees, tokens: tokens, accounts: accounts}
}

func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var payload struct {
		RollNumber string `json:"rollNumber"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	h.login(c, h.students, auth.Credentials{Login: payload.RollNumber, Password: payload.Password})
}

func (h *AuthHandler) EmployeeLogin(c *gin.Context) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	h.login(c, h.employees, auth.Credentials{Login: payload.Email, Password: payload.Password})
}

func (h *AuthHandler) login(c *gin.Context, authn auth.Authenticator, creds auth.Credentials) {
	id, err := authn.Authenticate(c.Request.Context(), creds)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Authentication successful",
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		"user":      id,
	})
}

func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": caller(c)})
}

func (h *AuthHandler) RegisterEmployee(c *gin.Context) {
	var req auth.RegisterEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	emp, err := h.accounts.RegisterEmployee(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  "Registration successful",
		"employee": emp,
	})
}
