// Package matching scores a submitted payment for the reviewer: how unique
// its UTR is among earlier submissions, whether the amount fits the
// student's outstanding balance, and how plausible the payment date is.
package matching

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	VerdictLikelyValid = "likely_valid"
	VerdictNeedsReview = "needs_review"
	VerdictSuspicious  = "suspicious"

	compareWindow    = 500
	similarThreshold = 0.8
	maxCandidates    = 5
)

type TransactionSource interface {
	GetByRef(ctx context.Context, ref string) (*models.Transaction, error)
	RecentOthers(ctx context.Context, exclude uuid.UUID, limit int) ([]models.Transaction, error)
}

type StudentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

// Candidate is an earlier transaction whose UTR resembles the one under
// review.
type Candidate struct {
	TransactionRef string  `json:"transactionRef"`
	UTRNumber      string  `json:"utrNumber"`
	Status         string  `json:"status"`
	Similarity     float64 `json:"similarity"`
}

type Assessment struct {
	TransactionRef string      `json:"transactionRef"`
	Score          float64     `json:"score"`
	Verdict        string      `json:"verdict"`
	UTRScore       float64     `json:"utrScore"`
	AmountScore    float64     `json:"amountScore"`
	DateScore      float64     `json:"dateScore"`
	Candidates     []Candidate `json:"candidates"`
}

type Engine struct {
	transactions TransactionSource
	students     StudentSource
	log          *zap.Logger
}

func NewEngine(transactions TransactionSource, students StudentSource, log *zap.Logger) *Engine {
	return &Engine{transactions: transactions, students: students, log: log}
}

// Assess scores the transaction identified by ref. It reads only.
func (e *Engine) Assess(ctx context.Context, caller auth.Identity, ref string) (*Assessment, error) {
	if !caller.IsReviewer() {
		return nil, apperr.Forbidden("Only employees can review transactions")
	}

	tx, err := e.transactions.GetByRef(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Transaction not found")
	}
	if err != nil {
		return nil, e.fail("transaction lookup failed", ref, err)
	}

	student, err := e.students.GetByID(ctx, tx.StudentID)
	if err != nil {
		return nil, e.fail("student lookup failed", ref, err)
	}

	others, err := e.transactions.RecentOthers(ctx, tx.ID, compareWindow)
	if err != nil {
		return nil, e.fail("transaction window failed", ref, err)
	}

	candidates := similarUTRs(tx.UTRNumber, others)
	a := &Assessment{
		TransactionRef: tx.TransactionRef,
		UTRScore:       utrScore(candidates),
		AmountScore:    amountScore(tx, student),
		DateScore:      dateScore(tx.PaymentDate, tx.CreatedAt),
		Candidates:     candidates,
	}

	a.Score = math.Min(0.6*a.UTRScore+0.3*a.AmountScore+0.1*a.DateScore, 100)
	switch {
	case a.Score >= 90:
		a.Verdict = VerdictLikelyValid
	case a.Score >= 60:
		a.Verdict = VerdictNeedsReview
	default:
		a.Verdict = VerdictSuspicious
	}
	return a, nil
}

func (e *Engine) fail(msg, ref string, err error) error {
	e.log.Error(msg, zap.String("transaction_ref", ref), zap.Error(err))
	return apperr.Server(err)
}

func similarUTRs(utr string, others []models.Transaction) []Candidate {
	target := normalizeUTR(utr)
	if target == "" {
		return []Candidate{}
	}

	candidates := []Candidate{}
	for _, o := range others {
		sim := similarity(target, normalizeUTR(o.UTRNumber))
		if sim < similarThreshold {
			continue
		}
		candidates = append(candidates, Candidate{
			TransactionRef: o.TransactionRef,
			UTRNumber:      o.UTRNumber,
			Status:         string(o.Status),
			Similarity:     math.Round(sim*1000) / 1000,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

// utrScore is 100 for a reference unlike any other. An exact reuse of a
// verified reference scores 0.
func utrScore(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 100
	}
	best := candidates[0]
	if best.Similarity == 1 && best.Status == string(models.TransactionVerified) {
		return 0
	}
	return math.Max(0, (1-best.Similarity)*100*2)
}

func amountScore(tx *models.Transaction, s *models.Student) float64 {
	switch {
	case !s.PendingAmount.IsPositive():
		return 20
	case tx.Amount.LessThanOrEqual(s.PendingAmount):
		return 100
	default:
		return 60
	}
}

func dateScore(paidOn, submittedAt time.Time) float64 {
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	days := submittedAt.Sub(paidOn).Hours() / 24
	if days < -1 {
		// dated after it was submitted
		return 0
	}

	days = math.Abs(days)
	switch {
	case days <= 3:
		return 100
	case days <= 7:
		return 80
	case days <= 15:
		return 60
	case days <= 30:
		return 40
	default:
		return 20
	}
}

func normalizeUTR(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSpace(s)
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	return 1 - float64(levenshtein(a, b))/maxLen
}

// levenshtein is the byte-wise edit distance; UTRs are bank-issued ASCII.
// Only two rows of the table are kept.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
