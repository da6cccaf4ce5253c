package repository

import (
	"context"

	"fee-management-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListType string

const (
	ListPaidFee    ListType = "paidFee"
	ListPendingFee ListType = "pendingFee"
)

type StudentFilter struct {
	Branch       string
	AcademicYear string
	Category     string
	ListType     ListType
}

// StudentProfile holds the fields an administrator may edit; nil fields are
// left untouched. paid_amount is absent: it only moves through the ledger.
type StudentProfile struct {
	Name         *string
	Gender       *string
	Category     *string
	AcademicYear *string
	Branch       *string
	FeeType      *string
	BillNumber   *string
	TotalFees    *decimal.Decimal
}

func (p StudentProfile) updates() map[string]interface{} {
	m := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			m[col] = *v
		}
	}
	set("name", p.Name)
	set("gender", p.Gender)
	set("category", p.Category)
	set("academic_year", p.AcademicYear)
	set("branch", p.Branch)
	set("fee_type", p.FeeType)
	set("bill_number", p.BillNumber)
	if p.TotalFees != nil {
		m["total_fees"] = *p.TotalFees
		m["pending_amount"] = gorm.Expr("? - paid_amount", *p.TotalFees)
	}
	return m
}

// Empty reports whether the profile changes nothing.
func (p StudentProfile) Empty() bool {
	return len(p.updates()) == 0
}

type RosterStats struct {
	Total   int64 `json:"total"`
	Paid    int64 `json:"paid"`
	Pending int64 `json:"pending"`
}

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a new student. PendingAmount is derived from the totals
// regardless of what the caller set.
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	s.PendingAmount = s.TotalFees.Sub(s.PaidAmount)
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

// importBatchSize keeps each multi-row INSERT under the driver's bind
// parameter limit (32766 on sqlite, 65535 on postgres).
const importBatchSize = 500

// CreateMany inserts students in batches and skips roll numbers that already
// exist. All batches share one transaction.
func (r *StudentRepository) CreateMany(ctx context.Context, students []*models.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}
	for _, s := range students {
		s.PendingAmount = s.TotalFees.Sub(s.PaidAmount)
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "roll_number"}}, DoNothing: true}).
		CreateInBatches(students, importBatchSize)
	return result.RowsAffected, translate(result.Error)
}

func (r *StudentRepository) GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error) {
	var s models.Student
	if err := r.db.WithContext(ctx).First(&s, "roll_number = ?", rollNumber).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var s models.Student
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StudentRepository) SetPasswordHash(ctx context.Context, rollNumber, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("roll_number = ?", rollNumber).
		Update("password_hash", hash)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile writes the set fields of p. When total fees change, the
// pending amount is recomputed in the same statement from the stored paid
// amount.
func (r *StudentRepository) UpdateProfile(ctx context.Context, rollNumber string, p StudentProfile) (*models.Student, error) {
	updates := p.updates()
	if len(updates) == 0 {
		return r.GetByRollNumber(ctx, rollNumber)
	}
	result := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("roll_number = ?", rollNumber).
		Updates(updates)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByRollNumber(ctx, rollNumber)
}

func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	return r.Filter(ctx, StudentFilter{})
}

func (r *StudentRepository) Filter(ctx context.Context, f StudentFilter) ([]models.Student, error) {
	var students []models.Student

	query := r.db.WithContext(ctx).Model(&models.Student{}).Order("roll_number ASC")

	if f.Branch != "" {
		query = query.Where("branch = ?", f.Branch)
	}
	if f.AcademicYear != "" {
		query = query.Where("academic_year = ?", f.AcademicYear)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	switch f.ListType {
	case ListPaidFee:
		query = query.Where("pending_amount <= 0")
	case ListPendingFee:
		query = query.Where("pending_amount > 0")
	}

	err := query.Find(&students).Error
	return students, translate(err)
}

func (r *StudentRepository) Stats(ctx context.Context) (RosterStats, error) {
	var stats RosterStats
	db := r.db.WithContext(ctx).Model(&models.Student{})

	if err := db.Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("pending_amount <= 0").Count(&stats.Paid).Error; err != nil {
		return stats, err
	}
	stats.Pending = stats.Total - stats.Paid
	return stats, nil
}
