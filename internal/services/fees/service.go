package fees

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/events"
	"fee-management-backend/internal/metrics"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LedgerStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error
}

type StudentLookup interface {
	GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts "verify" as a synonym of "approve".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "verify":
		return ActionApprove, nil
	case "reject":
		return ActionReject, nil
	default:
		return "", apperr.Validation("Invalid action")
	}
}

type SubmitRequest struct {
	RollNumber   string          `json:"rollNumber" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"positive_decimal"`
	FeeType      string          `json:"feeType" validate:"required"`
	AcademicYear string          `json:"academicYear" validate:"required"`
	UTRNumber    string          `json:"utrNumber" validate:"required,max=50"`
	MobileNumber string          `json:"mobileNumber" validate:"max=15"`
	// TransDate is YYYY-MM-DD; empty means today.
	TransDate string `json:"transDate" validate:"omitempty,datetime=2006-01-02"`
}

type DecideRequest struct {
	TransactionRef string
	Action         Action
	Comment        string
	BillNumber     string
}

type DecideResult struct {
	Transaction models.Transaction
	// Balance is set for approvals only.
	Balance *repository.Balance
}

type Service struct {
	ledger       LedgerStore
	students     StudentLookup
	transactions TransactionStore
	cache        cache.Store
	events       events.Publisher
	log          *zap.Logger
	now          func() time.Time
}

func NewService(
	ledger LedgerStore,
	students StudentLookup,
	transactions TransactionStore,
	cacheStore cache.Store,
	publisher events.Publisher,
	log *zap.Logger,
) *Service {
	return &Service{
		ledger:       ledger,
		students:     students,
		transactions: transactions,
		cache:        cacheStore,
		events:       publisher,
		log:          log,
		now:          time.Now,
	}
}

const submitAttempts = 3

// Submit records a claimed payment in pending state. Balances are untouched.
func (s *Service) Submit(ctx context.Context, caller auth.Identity, req SubmitRequest) (*models.Transaction, error) {
	req = trimSubmit(req)
	if caller.IsStudent() && caller.RollNumber != req.RollNumber {
		return nil, apperr.Forbidden("Students can only submit their own transactions")
	}
	if !caller.IsStudent() && !caller.IsReviewer() {
		return nil, apperr.Forbidden("Not allowed to submit transactions")
	}

	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	paidOn := s.now().UTC()
	if req.TransDate != "" {
		d, err := time.Parse("2006-01-02", req.TransDate)
		if err != nil {
			return nil, apperr.Validation("transDate must be YYYY-MM-DD")
		}
		paidOn = d
	}

	student, err := s.students.GetByRollNumber(ctx, req.RollNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Student not found")
	}
	if err != nil {
		s.log.Error("student lookup failed", zap.String("roll_number", req.RollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	tx := &models.Transaction{
		StudentID:    student.ID,
		Amount:       req.Amount,
		FeeType:      req.FeeType,
		AcademicYear: req.AcademicYear,
		UTRNumber:    req.UTRNumber,
		MobileNumber: req.MobileNumber,
		Status:       models.TransactionPending,
		PaymentDate:  paidOn,
	}

	for attempt := 1; ; attempt++ {
		tx.ID = uuid.New()
		tx.TransactionRef = NewRef("TXN")

		err = s.transactions.Create(ctx, tx)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicate) && attempt < submitAttempts {
			continue
		}
		s.log.Error("transaction insert failed", zap.String("roll_number", req.RollNumber), zap.Error(err))
		return nil, apperr.Server(err)
	}

	metrics.TransactionsSubmitted.Inc()
	s.log.Info("transaction submitted",
		zap.String("transaction_ref", tx.TransactionRef),
		zap.String("roll_number", student.RollNumber),
		zap.String("amount", tx.Amount.String()),
	)

	s.invalidate(ctx, student.RollNumber)
	s.publish(ctx, events.TopicTransactionSubmitted, student.RollNumber, events.TransactionSubmitted{
		TransactionRef: tx.TransactionRef,
		RollNumber:     student.RollNumber,
		Amount:         tx.Amount.String(),
		FeeType:        tx.FeeType,
		AcademicYear:   tx.AcademicYear,
		SubmittedAt:    tx.CreatedAt,
	})

	return tx, nil
}

func trimSubmit(req SubmitRequest) SubmitRequest {
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	req.FeeType = strings.TrimSpace(req.FeeType)
	req.AcademicYear = strings.TrimSpace(req.AcademicYear)
	req.UTRNumber = strings.TrimSpace(req.UTRNumber)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.TransDate = strings.TrimSpace(req.TransDate)
	return req
}

// Decide approves or rejects a pending transaction. The status change, the
// balance credit on approval and the audit entry commit together or not at
// all. A transaction that is no longer pending yields InvalidState.
func (s *Service) Decide(ctx context.Context, reviewer auth.Identity, req DecideRequest) (*DecideResult, error) {
	if !reviewer.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can verify transactions")
	}
	if strings.TrimSpace(req.TransactionRef) == "" {
		return nil, apperr.Validation("transactionRef is required")
	}
	if req.Action != ActionApprove && req.Action != ActionReject {
		return nil, apperr.Validation("Invalid action")
	}

	var result DecideResult
	decidedAt := s.now().UTC()

	err := s.ledger.WithinTx(ctx, func(ltx repository.LedgerTx) error {
		txn, err := ltx.LockTransaction(req.TransactionRef)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Transaction not found")
		}
		if err != nil {
			return err
		}
		if !txn.IsPending() {
			return apperr.InvalidState("Transaction already processed")
		}

		previous := txn.Status
		decision := repository.Decision{
			Status:     models.TransactionRejected,
			Comment:    req.Comment,
			ReviewerID: reviewer.ID,
			DecidedAt:  decidedAt,
		}
		if req.Action == ActionApprove {
			decision.Status = models.TransactionVerified
			decision.BillNumber = strings.TrimSpace(req.BillNumber)
		}

		err = ltx.MarkDecided(txn.ID, decision)
		if errors.Is(err, repository.ErrAlreadyDecided) {
			return apperr.InvalidState("Transaction already processed")
		}
		if err != nil {
			return err
		}

		details := map[string]interface{}{
			"transaction_ref": txn.TransactionRef,
			"comment":         req.Comment,
		}

		if req.Action == ActionApprove {
			before, after, err := ltx.CreditStudent(txn.StudentID, txn.Amount)
			if err != nil {
				return err
			}
			result.Balance = &after
			details["paid_before"] = before.PaidAmount.String()
			details["paid_after"] = after.PaidAmount.String()
			details["pending_before"] = before.PendingAmount.String()
			details["pending_after"] = after.PendingAmount.String()
			details["bill_number"] = decision.BillNumber
		}

		detailsJSON, err := json.Marshal(details)
		if err != nil {
			return err
		}
		if err := ltx.AppendAudit(&models.VerificationAuditLog{
			TransactionID:  txn.ID,
			Action:         string(req.Action),
			PreviousStatus: previous,
			NewStatus:      decision.Status,
			Amount:         txn.Amount,
			PerformedBy:    reviewer.ID,
			Details:        detailsJSON,
			CreatedAt:      decidedAt,
		}); err != nil {
			return err
		}

		txn.Status = decision.Status
		txn.VerificationComment = decision.Comment
		txn.VerifiedBy = &decision.ReviewerID
		txn.VerifiedAt = &decidedAt
		if decision.BillNumber != "" {
			txn.BillNumber = decision.BillNumber
		}
		result.Transaction = *txn
		return nil
	})

	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			metrics.TransactionDecisions.WithLabelValues(string(req.Action), outcomeLabel(err)).Inc()
			s.log.Warn("transaction decision refused",
				zap.String("transaction_ref", req.TransactionRef),
				zap.String("action", string(req.Action)),
				zap.String("reason", appErr.Message),
			)
			return nil, err
		}
		metrics.TransactionDecisions.WithLabelValues(string(req.Action), "error").Inc()
		s.log.Error("transaction decision rolled back",
			zap.String("transaction_ref", req.TransactionRef),
			zap.String("action", string(req.Action)),
			zap.Error(err),
		)
		return nil, apperr.Server(err)
	}

	metrics.TransactionDecisions.WithLabelValues(string(req.Action), "ok").Inc()
	if req.Action == ActionApprove {
		metrics.AmountVerified.Add(result.Transaction.Amount.InexactFloat64())
	}

	roll := s.rollNumberFor(ctx, &result)
	s.log.Info("transaction decided",
		zap.String("transaction_ref", result.Transaction.TransactionRef),
		zap.String("status", string(result.Transaction.Status)),
		zap.String("roll_number", roll),
		zap.String("reviewer_id", reviewer.ID.String()),
	)

	if roll != "" {
		s.invalidate(ctx, roll)
	}
	event := events.TransactionDecided{
		TransactionRef: result.Transaction.TransactionRef,
		RollNumber:     roll,
		Status:         string(result.Transaction.Status),
		Amount:         result.Transaction.Amount.String(),
		ReviewerID:     reviewer.ID.String(),
		DecidedAt:      decidedAt,
	}
	if result.Balance != nil {
		event.PaidAmount = result.Balance.PaidAmount.String()
		event.PendingAmount = result.Balance.PendingAmount.String()
	}
	s.publish(ctx, events.TopicTransactionDecided, roll, event)

	return &result, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	default:
		return "rejected"
	}
}

func (s *Service) rollNumberFor(ctx context.Context, r *DecideResult) string {
	if r.Balance != nil {
		return r.Balance.RollNumber
	}
	student, err := s.students.GetByID(ctx, r.Transaction.StudentID)
	if err != nil {
		s.log.Warn("student lookup after decision failed",
			zap.String("transaction_ref", r.Transaction.TransactionRef),
			zap.Error(err),
		)
		return ""
	}
	return student.RollNumber
}

func (s *Service) invalidate(ctx context.Context, rollNumber string) {
	if err := cache.InvalidatePaymentDetails(ctx, s.cache, rollNumber); err != nil {
		s.log.Warn("payment details cache invalidation failed",
			zap.String("roll_number", rollNumber),
			zap.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if err := s.events.Publish(ctx, topic, key, event); err != nil {
		s.log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// NewRef returns prefix followed by eight upper-case hex characters.
func NewRef(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + strings.ToUpper(id[:8])
}
