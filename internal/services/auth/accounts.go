package auth

import (
	"context"
	"errors"
	"strings"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EmployeeStore interface {
	Create(ctx context.Context, e *models.Employee) error
	GetByEmail(ctx context.Context, email string) (*models.Employee, error)
}

type RegisterEmployeeRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	// Role defaults to employee.
	Role string `json:"role" validate:"omitempty,oneof=employee admin"`
}

// Accounts manages reviewer accounts.
type Accounts struct {
	employees EmployeeStore
	log       *zap.Logger
}

func NewAccounts(employees EmployeeStore, log *zap.Logger) *Accounts {
	return &Accounts{employees: employees, log: log}
}

func (a *Accounts) RegisterEmployee(ctx context.Context, caller Identity, req RegisterEmployeeRequest) (*models.Employee, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("Only administrators can register employees")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	email, username := req.Email, req.Username

	role := req.Role
	if role == "" {
		role = models.RoleEmployee
	}

	if _, err := a.employees.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("Email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Server(err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Server(err)
	}

	emp := &models.Employee{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := a.employees.Create(ctx, emp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Validation("Email or username already registered")
		}
		a.log.Error("employee registration failed", zap.String("email", email), zap.Error(err))
		return nil, apperr.Server(err)
	}

	a.log.Info("employee registered",
		zap.String("employee_id", emp.ID.String()),
		zap.String("role", emp.Role),
		zap.String("registered_by", caller.ID.String()),
	)
	return emp, nil
}

// EnsureAdmin creates the administrator account when it does not exist yet.
// It reports whether an account was created.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}
	if err := validate.Email(email); err != nil {
		return false, err
	}

	if _, err := a.employees.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := &models.Employee{
		ID:           uuid.New(),
		Username:     "admin",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := a.employees.Create(ctx, admin); err != nil {
		return false, err
	}

	a.log.Info("admin account created", zap.String("email", email))
	return true, nil
}
