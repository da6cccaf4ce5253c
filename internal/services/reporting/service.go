package reporting

import (
	"context"
	"errors"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200

	paymentDetailsTTL = 5 * time.Minute
)

type StudentReader interface {
	GetByRollNumber(ctx context.Context, rollNumber string) (*models.Student, error)
	Filter(ctx context.Context, f repository.StudentFilter) ([]models.Student, error)
	Stats(ctx context.Context) (repository.RosterStats, error)
}

type TransactionReader interface {
	GetByRef(ctx context.Context, ref string) (*models.Transaction, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error)
	List(ctx context.Context, status, cursor string, limit int) ([]models.Transaction, string, bool, error)
	StatusStats(ctx context.Context) ([]repository.StatusStat, error)
}

type ComplaintReader interface {
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Complaint, error)
}

// Service answers the read-only questions of students and reviewers.
type Service struct {
	students     StudentReader
	transactions TransactionReader
	complaints   ComplaintReader
	cache        cache.Store
	log          *zap.Logger
}

func NewService(students StudentReader, transactions TransactionReader, complaints ComplaintReader, cacheStore cache.Store, log *zap.Logger) *Service {
	return &Service{
		students:     students,
		transactions: transactions,
		complaints:   complaints,
		cache:        cacheStore,
		log:          log,
	}
}

// PaymentDetails returns the student's balance summary and their
// transactions grouped by academic year. Only verified payments count
// towards a year's paid amount.
func (s *Service) PaymentDetails(ctx context.Context, caller auth.Identity, rollNumber string) (*PaymentDetails, error) {
	if !caller.CanViewStudent(rollNumber) {
		return nil, apperr.Forbidden("Not allowed to view this student")
	}

	key, err := cache.PaymentDetailsKey(ctx, s.cache, rollNumber)
	if err != nil {
		s.log.Warn("payment details cache read failed", zap.String("roll_number", rollNumber), zap.Error(err))
		key = ""
	}
	if key != "" {
		var cached PaymentDetails
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("payment details cache read failed", zap.String("roll_number", rollNumber), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	student, err := s.student(ctx, rollNumber)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, s.serverError("transaction listing failed", rollNumber, err)
	}

	details := buildPaymentDetails(student, txs)

	if key == "" {
		return details, nil
	}
	if err := s.cache.Set(ctx, key, details, paymentDetailsTTL); err != nil {
		s.log.Warn("payment details cache write failed", zap.String("roll_number", rollNumber), zap.Error(err))
	}
	return details, nil
}

func buildPaymentDetails(student *models.Student, txs []models.Transaction) *PaymentDetails {
	type yearAcc struct {
		paid  decimal.Decimal
		lines []PaymentLine
	}

	years := make(map[string]*yearAcc)
	for _, t := range txs {
		acc, ok := years[t.AcademicYear]
		if !ok {
			acc = &yearAcc{paid: decimal.Zero, lines: []PaymentLine{}}
			years[t.AcademicYear] = acc
		}
		if t.Status == models.TransactionVerified {
			acc.paid = acc.paid.Add(t.Amount)
		}
		acc.lines = append(acc.lines, PaymentLine{
			TransactionID: t.TransactionRef,
			Date:          t.PaymentDate.Format("2006-01-02"),
			Amount:        t.Amount.InexactFloat64(),
			FeeType:       t.FeeType,
			Status:        string(t.Status),
			BillNumber:    t.BillNumber,
		})
	}

	details := &PaymentDetails{
		Student:  summaryOf(student),
		YearWise: make(map[string]YearSummary, len(years)),
	}
	for year, acc := range years {
		details.YearWise[year] = YearSummary{
			TotalAmount:   student.TotalFees.InexactFloat64(),
			PaidAmount:    acc.paid.InexactFloat64(),
			PendingAmount: student.TotalFees.Sub(acc.paid).InexactFloat64(),
			Transactions:  acc.lines,
		}
	}
	return details
}

func (s *Service) StudentTransactions(ctx context.Context, caller auth.Identity, rollNumber string) ([]TransactionRow, error) {
	if !caller.CanViewStudent(rollNumber) {
		return nil, apperr.Forbidden("Not allowed to view this student")
	}
	student, err := s.student(ctx, rollNumber)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, s.serverError("transaction listing failed", rollNumber, err)
	}

	rows := make([]TransactionRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, TransactionRow{
			ID:           t.TransactionRef,
			Amount:       t.Amount.InexactFloat64(),
			FeeType:      t.FeeType,
			AcademicYear: t.AcademicYear,
			Status:       string(t.Status),
			BillNumber:   t.BillNumber,
			Date:         t.PaymentDate,
		})
	}
	return rows, nil
}

func (s *Service) StudentComplaints(ctx context.Context, caller auth.Identity, rollNumber string) ([]ComplaintRow, error) {
	if !caller.CanViewStudent(rollNumber) {
		return nil, apperr.Forbidden("Not allowed to view this student")
	}
	student, err := s.student(ctx, rollNumber)
	if err != nil {
		return nil, err
	}

	complaints, err := s.complaints.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, s.serverError("complaint listing failed", rollNumber, err)
	}

	rows := make([]ComplaintRow, 0, len(complaints))
	for _, c := range complaints {
		rows = append(rows, ComplaintRow{
			ID:          c.ComplaintRef,
			Subject:     c.Subject,
			Description: c.Description,
			Status:      string(c.Status),
			Response:    c.Response,
			Date:        c.CreatedAt,
		})
	}
	return rows, nil
}

type FilterRequest struct {
	Branch       string `json:"branch"`
	AcademicYear string `json:"academicYear"`
	Category     string `json:"category"`
	ListType     string `json:"listType"`
}

func (s *Service) FilterStudents(ctx context.Context, caller auth.Identity, req FilterRequest) ([]StudentRow, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can list students")
	}

	f := repository.StudentFilter{
		Branch:       req.Branch,
		AcademicYear: req.AcademicYear,
		Category:     req.Category,
	}
	switch repository.ListType(req.ListType) {
	case "":
	case repository.ListPaidFee, repository.ListPendingFee:
		f.ListType = repository.ListType(req.ListType)
	default:
		return nil, apperr.Validation("listType must be paidFee or pendingFee")
	}

	students, err := s.students.Filter(ctx, f)
	if err != nil {
		s.log.Error("student filter failed", zap.Error(err))
		return nil, apperr.Server(err)
	}
	return rowsOf(students), nil
}

type Roster struct {
	Students   []StudentRow           `json:"students"`
	Statistics repository.RosterStats `json:"statistics"`
}

func (s *Service) ListStudents(ctx context.Context, caller auth.Identity) (*Roster, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can list students")
	}

	students, err := s.students.Filter(ctx, repository.StudentFilter{})
	if err != nil {
		s.log.Error("student listing failed", zap.Error(err))
		return nil, apperr.Server(err)
	}
	stats, err := s.students.Stats(ctx)
	if err != nil {
		s.log.Error("roster stats failed", zap.Error(err))
		return nil, apperr.Server(err)
	}
	return &Roster{Students: rowsOf(students), Statistics: stats}, nil
}

type TransactionPage struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
	Stats      QueueStats           `json:"stats"`
}

// ListTransactions pages through the review queue in id order.
func (s *Service) ListTransactions(ctx context.Context, caller auth.Identity, status, cursor string, limit int) (*TransactionPage, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can review transactions")
	}

	switch models.TransactionStatus(status) {
	case "", "all", models.TransactionPending, models.TransactionVerified, models.TransactionRejected:
	default:
		return nil, apperr.Validation("status must be pending, verified, rejected or all")
	}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, apperr.Validation("invalid cursor")
		}
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	items, next, hasMore, err := s.transactions.List(ctx, status, cursor, limit)
	if err != nil {
		s.log.Error("transaction queue listing failed", zap.Error(err))
		return nil, apperr.Server(err)
	}
	stats, err := s.Stats(ctx, caller)
	if err != nil {
		return nil, err
	}

	return &TransactionPage{Items: items, NextCursor: next, HasMore: hasMore, Stats: *stats}, nil
}

func (s *Service) Transaction(ctx context.Context, caller auth.Identity, ref string) (*models.Transaction, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can review transactions")
	}
	tx, err := s.transactions.GetByRef(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Transaction not found")
	}
	if err != nil {
		s.log.Error("transaction lookup failed", zap.String("transaction_ref", ref), zap.Error(err))
		return nil, apperr.Server(err)
	}
	return tx, nil
}

type QueueStats struct {
	Total       int64   `json:"total"`
	TotalAmount float64 `json:"total_amount"`

	PendingCount int64   `json:"pending_count"`
	PendingSum   float64 `json:"pending_sum"`

	VerifiedCount int64   `json:"verified_count"`
	VerifiedSum   float64 `json:"verified_sum"`

	RejectedCount int64   `json:"rejected_count"`
	RejectedSum   float64 `json:"rejected_sum"`
}

func (s *Service) Stats(ctx context.Context, caller auth.Identity) (*QueueStats, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can review transactions")
	}

	rows, err := s.transactions.StatusStats(ctx)
	if err != nil {
		s.log.Error("transaction stats failed", zap.Error(err))
		return nil, apperr.Server(err)
	}

	var stats QueueStats
	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAmount += r.Sum

		switch models.TransactionStatus(r.Status) {
		case models.TransactionPending:
			stats.PendingCount = r.Count
			stats.PendingSum = r.Sum
		case models.TransactionVerified:
			stats.VerifiedCount = r.Count
			stats.VerifiedSum = r.Sum
		case models.TransactionRejected:
			stats.RejectedCount = r.Count
			stats.RejectedSum = r.Sum
		}
	}
	return &stats, nil
}

func (s *Service) student(ctx context.Context, rollNumber string) (*models.Student, error) {
	student, err := s.students.GetByRollNumber(ctx, rollNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Student not found")
	}
	if err != nil {
		return nil, s.serverError("student lookup failed", rollNumber, err)
	}
	return student, nil
}

func (s *Service) serverError(msg, rollNumber string, err error) error {
	s.log.Error(msg, zap.String("roll_number", rollNumber), zap.Error(err))
	return apperr.Server(err)
}
