package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/events"
	handler "fee-management-backend/internal/handlers"
	"fee-management-backend/internal/middleware"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/services/complaints"
	"fee-management-backend/internal/services/fees"
	"fee-management-backend/internal/services/matching"
	"fee-management-backend/internal/services/reporting"
	"fee-management-backend/internal/services/students"
)

// Deps are the process-wide collaborators shared by every handler.
type Deps struct {
	Tokens *auth.TokenIssuer
	Cache  cache.Store
	Events events.Publisher
	Log    *zap.Logger
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	studentRepo := repository.NewStudentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	ledger := repository.NewLedger(db)

	feeService := fees.NewService(ledger, studentRepo, transactionRepo, deps.Cache, deps.Events, deps.Log)
	reportingService := reporting.NewService(studentRepo, transactionRepo, complaintRepo, deps.Cache, deps.Log)
	complaintService := complaints.NewService(complaintRepo, studentRepo, deps.Events, deps.Log,
		func() string { return fees.NewRef("COMP") })
	studentService := students.NewService(studentRepo, deps.Cache, deps.Log)
	reviewEngine := matching.NewEngine(transactionRepo, studentRepo, deps.Log)
	accounts := auth.NewAccounts(employeeRepo, deps.Log)

	authHandler := handler.NewAuthHandler(
		auth.NewStudentAuthenticator(studentRepo),
		auth.NewEmployeeAuthenticator(employeeRepo),
		deps.Tokens,
		accounts,
	)
	txHandler := handler.NewTransactionHandler(feeService, reportingService, reviewEngine)
	studentHandler := handler.NewStudentHandler(studentService, reportingService)
	complaintHandler := handler.NewComplaintHandler(complaintService)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/auth/student/login", authHandler.StudentLogin)
	api.POST("/auth/employee/login", authHandler.EmployeeLogin)

	authed := api.Group("", middleware.AuthRequired(deps.Tokens))
	staff := middleware.RoleRequired(models.RoleEmployee, models.RoleAdmin)

	authed.GET("/auth/session", authHandler.Session)
	authed.POST("/employees", middleware.RoleRequired(models.RoleAdmin), authHandler.RegisterEmployee)

	// Transaction routes
	tx := authed.Group("/transactions")
	tx.POST("", txHandler.Submit)
	tx.GET("", staff, txHandler.List)
	tx.GET("/:ref", staff, txHandler.Get)
	tx.POST("/:ref/decide", staff, txHandler.Decide)

	// Student routes; the per-student reads are open to the student themself
	st := authed.Group("/students")
	st.GET("", staff, studentHandler.List)
	st.POST("", staff, studentHandler.Register)
	st.POST("/filter", staff, studentHandler.Filter)
	st.POST("/upload", staff, studentHandler.Upload)
	st.PUT("/:roll", staff, studentHandler.Update)
	st.GET("/:roll/payment-details", studentHandler.PaymentDetails)
	st.GET("/:roll/transactions", studentHandler.Transactions)
	st.GET("/:roll/complaints", studentHandler.Complaints)

	// Complaint routes
	cp := authed.Group("/complaints")
	cp.POST("", middleware.RoleRequired(models.RoleStudent), complaintHandler.Submit)
	cp.GET("", staff, complaintHandler.List)
	cp.POST("/:ref/respond", staff, complaintHandler.Respond)
}
