package repository

import (
	"context"
	"time"

	"fee-management-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComplaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *ComplaintRepository) GetByRef(ctx context.Context, ref string) (*models.Complaint, error) {
	var c models.Complaint
	if err := r.db.WithContext(ctx).First(&c, "complaint_ref = ?", ref).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *ComplaintRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&complaints).Error
	return complaints, translate(err)
}

func (r *ComplaintRepository) List(ctx context.Context, status string) ([]models.Complaint, error) {
	var complaints []models.Complaint
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&complaints).Error
	return complaints, translate(err)
}

// Respond records a response on a pending complaint. It returns
// ErrAlreadyDecided when the complaint was answered already.
func (r *ComplaintRepository) Respond(ctx context.Context, ref, response string, responder uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("complaint_ref = ? AND status = ?", ref, models.ComplaintPending).
		Updates(map[string]interface{}{
			"status":       models.ComplaintResponded,
			"response":     response,
			"responded_by": responder,
			"updated_at":   at,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}
