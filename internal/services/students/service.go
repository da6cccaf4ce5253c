package students

import (
	"context"
	"errors"
	"strings"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	Create(ctx context.Context, s *models.Student) error
	CreateMany(ctx context.Context, students []*models.Student) (int64, error)
	UpdateProfile(ctx context.Context, rollNumber string, p repository.StudentProfile) (*models.Student, error)
	SetPasswordHash(ctx context.Context, rollNumber, hash string) error
}

// Service maintains the student roster. It never writes paid amounts after
// creation; those move only through verified transactions.
type Service struct {
	students Store
	cache    cache.Store
	log      *zap.Logger
}

func NewService(students Store, cacheStore cache.Store, log *zap.Logger) *Service {
	return &Service{students: students, cache: cacheStore, log: log}
}

type RegisterRequest struct {
	Name         string          `json:"name" validate:"required,max=100"`
	RollNumber   string          `json:"rollNumber" validate:"required,max=20"`
	Gender       string          `json:"gender" validate:"max=10"`
	Category     string          `json:"category" validate:"required,max=50"`
	AcademicYear string          `json:"academicYear" validate:"required,max=20"`
	Branch       string          `json:"branch" validate:"required,max=50"`
	FeeType      string          `json:"feeType" validate:"max=50"`
	BillNumber   string          `json:"billNumber" validate:"max=50"`
	TotalAmount  decimal.Decimal `json:"totalAmount" validate:"nonnegative_decimal"`
	// PaidAmount is an opening balance carried over from an earlier system.
	PaidAmount decimal.Decimal `json:"paidAmount" validate:"nonnegative_decimal"`
	Password   string          `json:"password" validate:"omitempty,min=8"`
}

func (s *Service) Register(ctx context.Context, caller auth.Identity, req RegisterRequest) (*models.Student, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can register students")
	}

	student, err := newStudent(req)
	if err != nil {
		return nil, err
	}

	err = s.students.Create(ctx, student)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Validation("Roll number already registered")
	}
	if err != nil {
		s.log.Error("student insert failed", zap.String("roll_number", student.RollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	s.log.Info("student registered",
		zap.String("roll_number", student.RollNumber),
		zap.String("registered_by", caller.ID.String()),
	)
	return student, nil
}

func newStudent(req RegisterRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	req.Gender = strings.TrimSpace(req.Gender)
	req.Category = strings.TrimSpace(req.Category)
	req.AcademicYear = strings.TrimSpace(req.AcademicYear)
	req.Branch = strings.TrimSpace(req.Branch)
	req.FeeType = strings.TrimSpace(req.FeeType)
	req.BillNumber = strings.TrimSpace(req.BillNumber)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	student := &models.Student{
		ID:           uuid.New(),
		Name:         req.Name,
		RollNumber:   req.RollNumber,
		Gender:       req.Gender,
		Category:     req.Category,
		AcademicYear: req.AcademicYear,
		Branch:       req.Branch,
		FeeType:      req.FeeType,
		BillNumber:   req.BillNumber,
		TotalFees:    req.TotalAmount,
		PaidAmount:   req.PaidAmount,
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, apperr.Server(err)
		}
		student.PasswordHash = hash
	}
	return student, nil
}

// UpdateRequest is a partial edit: nil fields keep their stored value.
type UpdateRequest struct {
	Name         *string          `json:"name" validate:"omitnil,required,max=100"`
	Gender       *string          `json:"gender" validate:"omitnil,max=10"`
	Category     *string          `json:"category" validate:"omitnil,required,max=50"`
	AcademicYear *string          `json:"academicYear" validate:"omitnil,required,max=20"`
	Branch       *string          `json:"branch" validate:"omitnil,required,max=50"`
	FeeType      *string          `json:"feeType" validate:"omitnil,max=50"`
	BillNumber   *string          `json:"billNumber" validate:"omitnil,max=50"`
	TotalAmount  *decimal.Decimal `json:"totalAmount"`
	// Password, when set, replaces the login password.
	Password string `json:"password" validate:"omitempty,min=8"`
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// UpdateProfile edits descriptive fields and total fees. The pending amount
// follows from the new total and the paid amount already on record.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Identity, rollNumber string, req UpdateRequest) (*models.Student, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can edit students")
	}

	for _, f := range []**string{&req.Name, &req.Gender, &req.Category, &req.AcademicYear, &req.Branch, &req.FeeType, &req.BillNumber} {
		*f = trimmed(*f)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.TotalAmount != nil && req.TotalAmount.IsNegative() {
		return nil, apperr.Validation("totalAmount must not be negative")
	}

	profile := repository.StudentProfile{
		Name:         req.Name,
		Gender:       req.Gender,
		Category:     req.Category,
		AcademicYear: req.AcademicYear,
		Branch:       req.Branch,
		FeeType:      req.FeeType,
		BillNumber:   req.BillNumber,
		TotalFees:    req.TotalAmount,
	}
	if profile.Empty() && req.Password == "" {
		return nil, apperr.Validation("No fields to update")
	}

	student, err := s.students.UpdateProfile(ctx, rollNumber, profile)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Student not found")
	}
	if err != nil {
		s.log.Error("student update failed", zap.String("roll_number", rollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, apperr.Server(err)
		}
		if err := s.students.SetPasswordHash(ctx, rollNumber, hash); err != nil {
			s.log.Error("student password update failed", zap.String("roll_number", rollNumber), zap.Error(err))
			return nil, apperr.Server(err)
		}
	}

	if err := cache.InvalidatePaymentDetails(ctx, s.cache, rollNumber); err != nil {
		s.log.Warn("payment details cache invalidation failed", zap.String("roll_number", rollNumber), zap.Error(err))
	}
	s.log.Info("student updated", zap.String("roll_number", rollNumber))
	return student, nil
}
