package repository

import (
	"context"
	"time"

	"fee-management-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Decision is the terminal state written onto a pending transaction.
type Decision struct {
	Status     models.TransactionStatus
	Comment    string
	ReviewerID uuid.UUID
	DecidedAt  time.Time
	BillNumber string
}

// Balance is a student's balance as committed by CreditStudent.
type Balance struct {
	StudentID     uuid.UUID
	RollNumber    string
	TotalFees     decimal.Decimal
	PaidAmount    decimal.Decimal
	PendingAmount decimal.Decimal
}

// LedgerTx is the set of writes available inside one ledger transaction.
// All calls share one database transaction; returning an error from the
// WithinTx callback rolls every one of them back.
type LedgerTx interface {
	// LockTransaction loads the transaction and holds its row lock until
	// commit.
	LockTransaction(ref string) (*models.Transaction, error)
	// MarkDecided moves a pending transaction to d.Status. It returns
	// ErrAlreadyDecided when the row is no longer pending.
	MarkDecided(txID uuid.UUID, d Decision) error
	// CreditStudent adds amount to paid_amount and recomputes
	// pending_amount. It is the only write path for both columns.
	CreditStudent(studentID uuid.UUID, amount decimal.Decimal) (before, after Balance, err error)
	AppendAudit(entry *models.VerificationAuditLog) error
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithinTx runs fn in a single database transaction.
func (l *Ledger) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return l.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&ledgerTx{db: gtx})
	})
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) LockTransaction(ref string) (*models.Transaction, error) {
	var tx models.Transaction
	err := t.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tx, "transaction_ref = ?", ref).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

func (t *ledgerTx) MarkDecided(txID uuid.UUID, d Decision) error {
	updates := map[string]interface{}{
		"status":               d.Status,
		"verification_comment": d.Comment,
		"verified_by":          d.ReviewerID,
		"verified_at":          d.DecidedAt,
	}
	if d.BillNumber != "" {
		updates["bill_number"] = d.BillNumber
	}

	result := t.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txID, models.TransactionPending).
		Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (t *ledgerTx) CreditStudent(studentID uuid.UUID, amount decimal.Decimal) (Balance, Balance, error) {
	var s models.Student
	err := t.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", studentID).Error
	if err != nil {
		return Balance{}, Balance{}, translate(err)
	}

	before := balanceOf(&s)

	paid := s.PaidAmount.Add(amount)
	pending := s.TotalFees.Sub(paid)

	err = t.db.Model(&models.Student{}).
		Where("id = ?", studentID).
		Updates(map[string]interface{}{
			"paid_amount":    paid,
			"pending_amount": pending,
		}).Error
	if err != nil {
		return Balance{}, Balance{}, translate(err)
	}

	s.PaidAmount = paid
	s.PendingAmount = pending
	return before, balanceOf(&s), nil
}

func (t *ledgerTx) AppendAudit(entry *models.VerificationAuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return translate(t.db.Create(entry).Error)
}

func balanceOf(s *models.Student) Balance {
	return Balance{
		StudentID:     s.ID,
		RollNumber:    s.RollNumber,
		TotalFees:     s.TotalFees,
		PaidAmount:    s.PaidAmount,
		PendingAmount: s.PendingAmount,
	}
}
