package handler

import (
	"errors"
	"net/http"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/services/auth"

	"github.com/gin-gonic/gin"
)

// respondError maps an application error onto its HTTP status. Server
// errors never carry the underlying cause to the client.
func respondError(c *gin.Context, err error) {
	err = apperr.Wrap(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "message": apperr.Message(err)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func caller(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c.Request.Context())
	return id
}
