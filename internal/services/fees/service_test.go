package fees_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/events"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/services/fees"
	"fee-management-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingCache struct {
	cache.NopStore
	mu     sync.Mutex
	bumped []string
}

func (c *recordingCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumped = append(c.bumped, key)
	return int64(len(c.bumped)), nil
}

type fixture struct {
	db        *gorm.DB
	svc       *fees.Service
	publisher *recordingPublisher
	cache     *recordingCache
	reviewer  auth.Identity
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLedger(t, nil)
}

func newFixtureWithLedger(t *testing.T, wrap func(fees.LedgerStore) fees.LedgerStore) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	var ledger fees.LedgerStore = repository.NewLedger(db)
	if wrap != nil {
		ledger = wrap(ledger)
	}

	emp := testutil.SeedEmployee(t, db, "reviewer@college.edu", models.RoleEmployee)
	f := &fixture{
		db:        db,
		publisher: &recordingPublisher{},
		cache:     &recordingCache{},
		reviewer:  auth.Identity{ID: emp.ID, Role: emp.Role, Name: emp.Username},
	}
	f.svc = fees.NewService(
		ledger,
		repository.NewStudentRepository(db),
		repository.NewTransactionRepository(db),
		f.cache,
		f.publisher,
		zap.NewNop(),
	)
	return f
}

func studentIdentity(s *models.Student) auth.Identity {
	return auth.Identity{ID: s.ID, Role: models.RoleStudent, Name: s.Name, RollNumber: s.RollNumber}
}

func submitReq(roll string, amount int64) fees.SubmitRequest {
	return fees.SubmitRequest{
		RollNumber:   roll,
		Amount:       decimal.NewFromInt(amount),
		FeeType:      "Tuition",
		AcademicYear: "2024-25",
		UTRNumber:    "UTR123456789",
		MobileNumber: "9876543210",
		TransDate:    "2024-08-14",
	}
}

func assertInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()

	var students []models.Student
	require.NoError(t, db.Find(&students).Error)
	for _, s := range students {
		assert.True(t, s.TotalFees.Sub(s.PaidAmount).Equal(s.PendingAmount),
			"%s: total %s paid %s pending %s", s.RollNumber, s.TotalFees, s.PaidAmount, s.PendingAmount)
	}
}

func TestScenario_ApproveOnceThenRefuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedStudent(t, f.db, "21A91A0501", 10000, 0)

	txn, err := f.svc.Submit(ctx, studentIdentity(student), submitReq(student.RollNumber, 4000))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, txn.Status)
	assert.Regexp(t, `^TXN[0-9A-F]{8}$`, txn.TransactionRef)
	assert.Equal(t, "2024-08-14", txn.PaymentDate.Format("2006-01-02"))

	untouched := testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 0, untouched.PaidAmount)
	testutil.AssertMoney(t, 10000, untouched.PendingAmount)

	res, err := f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{
		TransactionRef: txn.TransactionRef,
		Action:         fees.ActionApprove,
		Comment:        "UTR matched",
		BillNumber:     "BILL-001",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionVerified, res.Transaction.Status)
	require.NotNil(t, res.Balance)
	testutil.AssertMoney(t, 4000, res.Balance.PaidAmount)
	testutil.AssertMoney(t, 6000, res.Balance.PendingAmount)

	stored := testutil.ReloadTransaction(t, f.db, txn.TransactionRef)
	assert.Equal(t, models.TransactionVerified, stored.Status)
	assert.Equal(t, "BILL-001", stored.BillNumber)
	assert.Equal(t, "UTR matched", stored.VerificationComment)
	require.NotNil(t, stored.VerifiedBy)
	assert.Equal(t, f.reviewer.ID, *stored.VerifiedBy)

	s := testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 4000, s.PaidAmount)
	testutil.AssertMoney(t, 6000, s.PendingAmount)

	_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{
		TransactionRef: txn.TransactionRef,
		Action:         fees.ActionApprove,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	s = testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 4000, s.PaidAmount)
	testutil.AssertMoney(t, 6000, s.PendingAmount)

	var audits []models.VerificationAuditLog
	require.NoError(t, f.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, models.TransactionPending, audits[0].PreviousStatus)
	assert.Equal(t, models.TransactionVerified, audits[0].NewStatus)
	assert.Contains(t, string(audits[0].Details), `"paid_after":"4000"`)

	assert.Equal(t, []string{events.TopicTransactionSubmitted, events.TopicTransactionDecided}, f.publisher.topics)
	decided := f.publisher.events[1].(events.TransactionDecided)
	assert.Equal(t, "21A91A0501", decided.RollNumber)
	assert.Equal(t, "6000", decided.PendingAmount)
	assert.Equal(t, []string{
		cache.PaymentDetailsVersionKey("21A91A0501"),
		cache.PaymentDetailsVersionKey("21A91A0501"),
	}, f.cache.bumped)

	assertInvariant(t, f.db)
}

func TestScenario_RejectLeavesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedStudent(t, f.db, "21A91A0502", 10000, 1500)

	txn, err := f.svc.Submit(ctx, studentIdentity(student), submitReq(student.RollNumber, 2500))
	require.NoError(t, err)

	res, err := f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{
		TransactionRef: txn.TransactionRef,
		Action:         fees.ActionReject,
		Comment:        "UTR not found",
		BillNumber:     "ignored-on-reject",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRejected, res.Transaction.Status)
	assert.Nil(t, res.Balance)

	stored := testutil.ReloadTransaction(t, f.db, txn.TransactionRef)
	assert.Equal(t, models.TransactionRejected, stored.Status)
	assert.Equal(t, "UTR not found", stored.VerificationComment)
	assert.Empty(t, stored.BillNumber)
	assert.NotNil(t, stored.VerifiedAt)

	s := testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 1500, s.PaidAmount)
	testutil.AssertMoney(t, 8500, s.PendingAmount)

	for _, action := range []fees.Action{fees.ActionApprove, fees.ActionReject} {
		_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: action})
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}

	s = testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 1500, s.PaidAmount)

	decided := f.publisher.events[1].(events.TransactionDecided)
	assert.Equal(t, "21A91A0502", decided.RollNumber)
	assert.Equal(t, "rejected", decided.Status)
}

func TestSubmit_UnknownStudentCreatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), f.reviewer, submitReq("NOPE", 1000))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Student not found", apperr.Message(err))

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.publisher.topics)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	student := testutil.SeedStudent(t, f.db, "21A91A0503", 10000, 0)
	caller := studentIdentity(student)

	tests := []struct {
		name   string
		mutate func(*fees.SubmitRequest)
		kind   error
	}{
		{"zero amount", func(r *fees.SubmitRequest) { r.Amount = decimal.Zero }, apperr.ErrValidation},
		{"negative amount", func(r *fees.SubmitRequest) { r.Amount = decimal.NewFromInt(-5) }, apperr.ErrValidation},
		{"missing fee type", func(r *fees.SubmitRequest) { r.FeeType = " " }, apperr.ErrValidation},
		{"missing year", func(r *fees.SubmitRequest) { r.AcademicYear = "" }, apperr.ErrValidation},
		{"missing utr", func(r *fees.SubmitRequest) { r.UTRNumber = "" }, apperr.ErrValidation},
		{"bad date", func(r *fees.SubmitRequest) { r.TransDate = "14/08/2024" }, apperr.ErrValidation},
		{"utr too long", func(r *fees.SubmitRequest) { r.UTRNumber = strings.Repeat("9", 51) }, apperr.ErrValidation},
		{"other student", func(r *fees.SubmitRequest) { r.RollNumber = "21A91A0599" }, apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitReq(student.RollNumber, 1000)
			tt.mutate(&req)
			_, err := f.svc.Submit(context.Background(), caller, req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmit_ValidationMessages(t *testing.T) {
	f := newFixture(t)
	student := testutil.SeedStudent(t, f.db, "21A91A0506", 10000, 0)

	req := submitReq(student.RollNumber, 0)
	_, err := f.svc.Submit(context.Background(), f.reviewer, req)
	assert.Equal(t, "amount must be positive", apperr.Message(err))

	req = submitReq(student.RollNumber, 100)
	req.UTRNumber = "   "
	_, err = f.svc.Submit(context.Background(), f.reviewer, req)
	assert.Equal(t, "utrNumber is required", apperr.Message(err))
}

func TestSubmit_EmptyDateDefaultsToToday(t *testing.T) {
	f := newFixture(t)
	student := testutil.SeedStudent(t, f.db, "21A91A0504", 10000, 0)

	req := submitReq(student.RollNumber, 100)
	req.TransDate = ""
	txn, err := f.svc.Submit(context.Background(), f.reviewer, req)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), txn.PaymentDate, time.Minute)
}

func TestDecide_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedStudent(t, f.db, "21A91A0505", 10000, 0)
	txn := testutil.SeedTransaction(t, f.db, student, "TXN00000001", 500, "2024-25", models.TransactionPending)

	_, err := f.svc.Decide(ctx, studentIdentity(student), fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: fees.ActionApprove})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: "TXNMISSING", Action: fees.ActionApprove})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: "refund"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{Action: fees.ActionApprove})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, models.TransactionPending, testutil.ReloadTransaction(t, f.db, txn.TransactionRef).Status)
}

// failingLedger wraps the real ledger and fails the balance credit after the
// status has already been written inside the same database transaction.
type failingLedger struct {
	inner fees.LedgerStore
}

func (l failingLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return l.inner.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return fn(failingTx{LedgerTx: tx})
	})
}

type failingTx struct {
	repository.LedgerTx
}

func (failingTx) CreditStudent(uuid.UUID, decimal.Decimal) (repository.Balance, repository.Balance, error) {
	return repository.Balance{}, repository.Balance{}, errors.New("disk full")
}

func TestDecide_StorageFailureRollsBackEverything(t *testing.T) {
	f := newFixtureWithLedger(t, func(inner fees.LedgerStore) fees.LedgerStore {
		return failingLedger{inner: inner}
	})
	ctx := context.Background()
	student := testutil.SeedStudent(t, f.db, "21A91A0506", 10000, 0)
	txn := testutil.SeedTransaction(t, f.db, student, "TXN00000002", 4000, "2024-25", models.TransactionPending)

	_, err := f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: fees.ActionApprove})
	require.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, "Server error", apperr.Message(err))
	assert.NotContains(t, err.Error(), "disk full")

	stored := testutil.ReloadTransaction(t, f.db, txn.TransactionRef)
	assert.Equal(t, models.TransactionPending, stored.Status)
	assert.Nil(t, stored.VerifiedBy)

	s := testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 0, s.PaidAmount)
	testutil.AssertMoney(t, 10000, s.PendingAmount)

	var audits int64
	require.NoError(t, f.db.Model(&models.VerificationAuditLog{}).Count(&audits).Error)
	assert.Zero(t, audits)
	assert.Empty(t, f.publisher.topics)

	// the same transaction can still be rejected afterwards
	_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: fees.ActionReject})
	require.NoError(t, err)
}

func TestDecide_ConcurrentApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := testutil.SeedStudent(t, f.db, "21A91A0507", 10000, 0)
	txn := testutil.SeedTransaction(t, f.db, student, "TXN00000003", 3000, "2024-25", models.TransactionPending)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: fees.ActionApprove})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	s := testutil.ReloadStudent(t, f.db, student.ID)
	testutil.AssertMoney(t, 3000, s.PaidAmount)
	testutil.AssertMoney(t, 7000, s.PendingAmount)
}

func TestDecide_InvariantAcrossMixedDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.SeedStudent(t, f.db, "21A91A0508", 20000, 0)
	b := testutil.SeedStudent(t, f.db, "21A91A0509", 15000, 5000)

	plan := []struct {
		student *models.Student
		amount  int64
		action  fees.Action
	}{
		{a, 5000, fees.ActionApprove},
		{a, 2500, fees.ActionReject},
		{b, 4000, fees.ActionApprove},
		{a, 7000, fees.ActionApprove},
		{b, 10000, fees.ActionApprove},
	}

	for _, step := range plan {
		txn, err := f.svc.Submit(ctx, f.reviewer, submitReq(step.student.RollNumber, step.amount))
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, f.reviewer, fees.DecideRequest{TransactionRef: txn.TransactionRef, Action: step.action})
		require.NoError(t, err)
		assertInvariant(t, f.db)
	}

	testutil.AssertMoney(t, 12000, testutil.ReloadStudent(t, f.db, a.ID).PaidAmount)
	overpaid := testutil.ReloadStudent(t, f.db, b.ID)
	testutil.AssertMoney(t, 19000, overpaid.PaidAmount)
	testutil.AssertMoney(t, -4000, overpaid.PendingAmount)
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]fees.Action{
		"approve": fees.ActionApprove,
		"verify":  fees.ActionApprove,
		"Reject":  fees.ActionReject,
	} {
		got, err := fees.ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := fees.ParseAction("refund")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNewRef(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := fees.NewRef("COMP")
		assert.Regexp(t, `^COMP[0-9A-F]{8}$`, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 95)
}
