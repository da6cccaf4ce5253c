package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Credentials is a login attempt. Login is a roll number for students and an
// email address for employees.
type Credentials struct {
	Login    string
	Password string
}

type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
}

type StudentFinder interface {
	GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error)
}

type EmployeeFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.Employee, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

var hashCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type StudentAuthenticator struct {
	students StudentFinder
}

func NewStudentAuthenticator(students StudentFinder) *StudentAuthenticator {
	return &StudentAuthenticator{students: students}
}

func (a *StudentAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	roll := strings.TrimSpace(creds.Login)
	if roll == "" || creds.Password == "" {
		return Identity{}, apperr.Validation("Missing credentials")
	}

	student, err := a.students.GetByRollNumber(ctx, roll)
	if errors.Is(err, repository.ErrNotFound) {
		return Identity{}, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return Identity{}, apperr.Server(err)
	}
	if !checkPassword(student.PasswordHash, creds.Password) {
		return Identity{}, apperr.Unauthorized("Invalid credentials")
	}

	return Identity{
		ID:         student.ID,
		Role:       models.RoleStudent,
		Name:       student.Name,
		RollNumber: student.RollNumber,
	}, nil
}

type EmployeeAuthenticator struct {
	employees EmployeeFinder
	now       func() time.Time
}

func NewEmployeeAuthenticator(employees EmployeeFinder) *EmployeeAuthenticator {
	return &EmployeeAuthenticator{employees: employees, now: time.Now}
}

func (a *EmployeeAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Login))
	if email == "" || creds.Password == "" {
		return Identity{}, apperr.Validation("Email and password are required")
	}

	emp, err := a.employees.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Identity{}, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return Identity{}, apperr.Server(err)
	}
	if !emp.IsActive || !checkPassword(emp.PasswordHash, creds.Password) {
		return Identity{}, apperr.Unauthorized("Invalid credentials")
	}

	if err := a.employees.TouchLastLogin(ctx, emp.ID, a.now()); err != nil {
		return Identity{}, apperr.Server(err)
	}

	return Identity{
		ID:    emp.ID,
		Role:  emp.Role,
		Name:  emp.Username,
		Email: emp.Email,
	}, nil
}
