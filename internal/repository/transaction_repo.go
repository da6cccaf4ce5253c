package repository

import (
	"context"

	"fee-management-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a submitted transaction. Balances are not touched.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return translate(r.db.WithContext(ctx).Create(tx).Error)
}

func (r *TransactionRepository) GetByRef(ctx context.Context, ref string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "transaction_ref = ?", ref).Error; err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

func (r *TransactionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("payment_date ASC, created_at ASC").
		Find(&txs).Error
	return txs, translate(err)
}

// List returns one page of transactions ordered by id, starting after cursor.
func (r *TransactionRepository) List(ctx context.Context, status string, cursor string, limit int) ([]models.Transaction, string, bool, error) {
	var txs []models.Transaction
	query := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, translate(err)
	}

	hasMore := false
	var nextCursor string

	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}

	return txs, nextCursor, hasMore, nil
}

type StatusStat struct {
	Status string
	Count  int64
	Sum    float64
}

func (r *TransactionRepository) StatusStats(ctx context.Context) ([]StatusStat, error) {
	var rows []StatusStat
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("status").
		Scan(&rows).Error
	return rows, translate(err)
}

// RecentOthers returns the latest transactions other than exclude, newest
// first. Only the columns needed for reference comparison are loaded.
func (r *TransactionRepository) RecentOthers(ctx context.Context, exclude uuid.UUID, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Select("id", "transaction_ref", "utr_number", "status", "created_at").
		Where("id <> ?", exclude).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, translate(err)
}
