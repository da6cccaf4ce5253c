package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fee-management-backend/internal/middleware"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/services/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Metrics(), middleware.RequestLogger(zap.NewNop()))

	protected := r.Group("/", middleware.AuthRequired(issuer))
	protected.GET("/me", func(c *gin.Context) {
		id, _ := auth.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"role": id.Role})
	})
	protected.GET("/staff", middleware.RoleRequired(models.RoleEmployee, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 30*time.Minute)
	r := newRouter(issuer)

	token, _, err := issuer.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleStudent, RollNumber: "A1"})
	require.NoError(t, err)

	w := do(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"student"}`, w.Body.String())

	w = do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not authenticated"}`, w.Body.String())

	w = do(r, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid token")

	other := auth.NewTokenIssuer("other-secret", time.Minute)
	forged, _, err := other.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", forged).Code)
}

func TestRoleRequired(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 30*time.Minute)
	r := newRouter(issuer)

	student, _, err := issuer.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleStudent, RollNumber: "A1"})
	require.NoError(t, err)
	staff, _, err := issuer.Issue(auth.Identity{ID: uuid.New(), Role: models.RoleEmployee})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, "/staff", student).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/staff", staff).Code)
}
