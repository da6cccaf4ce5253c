package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/config"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/services/students"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type demoStudent struct {
	roll, name, gender, category, branch string
	total, paid                          int64
}

var demoStudents = []demoStudent{
	{"21A91A0501", "Ravi Kumar", "M", "General", "CSE", 85000, 85000},
	{"21A91A0502", "Sita Devi", "F", "OBC", "CSE", 85000, 40000},
	{"21A91A0401", "Anil Reddy", "M", "SC", "ECE", 78000, 0},
	{"21A91A0201", "Priya Sharma", "F", "General", "EEE", 78000, 20000},
}

func main() {
	demo := flag.Bool("demo", false, "also create the demo employee and demo students")
	demoPassword := flag.String("demo-password", "demo-password", "password for demo accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	ctx := context.Background()
	logger.Info("--- Seeding Database ---")

	employees := repository.NewEmployeeRepository(db)
	accounts := auth.NewAccounts(employees, logger)
	created, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Fatal("admin seed failed", zap.Error(err))
	}
	if !created {
		logger.Info("admin already present or ADMIN_EMAIL unset, skipping")
	}

	if !*demo {
		return
	}

	seeder := auth.Identity{ID: uuid.New(), Role: models.RoleAdmin, Name: "seeder"}

	_, err = accounts.RegisterEmployee(ctx, seeder, auth.RegisterEmployeeRequest{
		Username: "Demo Employee",
		Email:    "demo.employee@example.com",
		Password: *demoPassword,
		Role:     models.RoleEmployee,
	})
	switch {
	case err == nil:
		logger.Info("demo employee created")
	case errors.Is(err, apperr.ErrValidation):
		logger.Info("demo employee skipped", zap.String("reason", apperr.Message(err)))
	default:
		logger.Fatal("demo employee seed failed", zap.Error(err))
	}

	roster := students.NewService(repository.NewStudentRepository(db), cache.NopStore{}, logger)
	for _, d := range demoStudents {
		_, err := roster.Register(ctx, seeder, students.RegisterRequest{
			Name:         d.name,
			RollNumber:   d.roll,
			Gender:       d.gender,
			Category:     d.category,
			AcademicYear: "2024-25",
			Branch:       d.branch,
			FeeType:      "Tuition",
			TotalAmount:  decimal.NewFromInt(d.total),
			PaidAmount:   decimal.NewFromInt(d.paid),
			Password:     *demoPassword,
		})
		if err != nil && !errors.Is(err, apperr.ErrValidation) {
			logger.Fatal("demo student seed failed", zap.String("roll_number", d.roll), zap.Error(err))
		}
	}

	logger.Info("seeding finished", zap.Int("demo_students", len(demoStudents)))
}
