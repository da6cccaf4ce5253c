package reporting_test

import (
	"context"
	"testing"

	"fee-management-backend/internal/apperr"
	"fee-management-backend/internal/cache"
	"fee-management-backend/internal/models"
	"fee-management-backend/internal/repository"
	"fee-management-backend/internal/services/auth"
	"fee-management-backend/internal/services/reporting"
	"fee-management-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var reviewer = auth.Identity{ID: uuid.New(), Role: models.RoleEmployee, Name: "reviewer"}

func newService(t *testing.T, store cache.Store) (*reporting.Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	if store == nil {
		store = cache.NopStore{}
	}
	svc := reporting.NewService(
		repository.NewStudentRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewComplaintRepository(db),
		store,
		zap.NewNop(),
	)
	return svc, db
}

func TestPaymentDetails_GroupsByYear(t *testing.T) {
	svc, db := newService(t, nil)
	student := testutil.SeedStudent(t, db, "21A91A0501", 50000, 0)
	testutil.SeedTransaction(t, db, student, "TXN00000001", 20000, "2023-24", models.TransactionVerified)
	testutil.SeedTransaction(t, db, student, "TXN00000002", 5000, "2023-24", models.TransactionRejected)
	testutil.SeedTransaction(t, db, student, "TXN00000003", 10000, "2024-25", models.TransactionVerified)
	testutil.SeedTransaction(t, db, student, "TXN00000004", 7000, "2024-25", models.TransactionPending)

	self := auth.Identity{ID: student.ID, Role: models.RoleStudent, RollNumber: student.RollNumber}
	details, err := svc.PaymentDetails(context.Background(), self, student.RollNumber)
	require.NoError(t, err)

	assert.Equal(t, "21A91A0501", details.Student.RollNumber)
	assert.Equal(t, 50000.0, details.Student.TotalFees)
	require.Len(t, details.YearWise, 2)

	y1 := details.YearWise["2023-24"]
	assert.Equal(t, 50000.0, y1.TotalAmount)
	assert.Equal(t, 20000.0, y1.PaidAmount)
	assert.Equal(t, 30000.0, y1.PendingAmount)
	assert.Len(t, y1.Transactions, 2)

	y2 := details.YearWise["2024-25"]
	assert.Equal(t, 10000.0, y2.PaidAmount)
	assert.Equal(t, 40000.0, y2.PendingAmount)
	require.Len(t, y2.Transactions, 2)
}

func TestPaymentDetails_NoTransactions(t *testing.T) {
	svc, db := newService(t, nil)
	testutil.SeedStudent(t, db, "21A91A0502", 10000, 0)

	details, err := svc.PaymentDetails(context.Background(), reviewer, "21A91A0502")
	require.NoError(t, err)
	assert.Empty(t, details.YearWise)
	assert.Equal(t, 10000.0, details.Student.PendingAmount)
}

func TestPaymentDetails_AccessAndLookup(t *testing.T) {
	svc, db := newService(t, nil)
	testutil.SeedStudent(t, db, "21A91A0503", 10000, 0)

	other := auth.Identity{ID: uuid.New(), Role: models.RoleStudent, RollNumber: "21A91A0599"}
	_, err := svc.PaymentDetails(context.Background(), other, "21A91A0503")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.PaymentDetails(context.Background(), reviewer, "MISSING")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Student not found", apperr.Message(err))
}

func TestPaymentDetails_ServedFromCacheUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, db := newService(t, store)
	ctx := context.Background()
	student := testutil.SeedStudent(t, db, "21A91A0504", 10000, 0)
	testutil.SeedTransaction(t, db, student, "TXN00000005", 4000, "2024-25", models.TransactionVerified)

	first, err := svc.PaymentDetails(ctx, reviewer, student.RollNumber)
	require.NoError(t, err)
	key, err := cache.PaymentDetailsKey(ctx, store, student.RollNumber)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	testutil.SeedTransaction(t, db, student, "TXN00000006", 1000, "2024-25", models.TransactionVerified)

	cached, err := svc.PaymentDetails(ctx, reviewer, student.RollNumber)
	require.NoError(t, err)
	assert.Equal(t, first.YearWise["2024-25"].PaidAmount, cached.YearWise["2024-25"].PaidAmount)

	require.NoError(t, cache.InvalidatePaymentDetails(ctx, store, student.RollNumber))

	fresh, err := svc.PaymentDetails(ctx, reviewer, student.RollNumber)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, fresh.YearWise["2024-25"].PaidAmount)
}

// racingTransactions commits a write between the reader's database load and
// its cache fill.
type racingTransactions struct {
	*repository.TransactionRepository
	afterList func()
}

func (r *racingTransactions) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Transaction, error) {
	txs, err := r.TransactionRepository.ListByStudent(ctx, studentID)
	if r.afterList != nil {
		hook := r.afterList
		r.afterList = nil
		hook()
	}
	return txs, err
}

func TestPaymentDetails_WriteDuringReadIsNotServedStale(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	db := testutil.NewDB(t)
	ctx := context.Background()
	student := testutil.SeedStudent(t, db, "21A91A0508", 10000, 0)
	testutil.SeedTransaction(t, db, student, "TXN00000021", 4000, "2024-25", models.TransactionVerified)

	transactions := &racingTransactions{TransactionRepository: repository.NewTransactionRepository(db)}
	transactions.afterList = func() {
		testutil.SeedTransaction(t, db, student, "TXN00000022", 3000, "2024-25", models.TransactionVerified)
		require.NoError(t, cache.InvalidatePaymentDetails(ctx, store, student.RollNumber))
	}
	svc := reporting.NewService(
		repository.NewStudentRepository(db),
		transactions,
		repository.NewComplaintRepository(db),
		store,
		zap.NewNop(),
	)

	raced, err := svc.PaymentDetails(ctx, reviewer, student.RollNumber)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, raced.YearWise["2024-25"].PaidAmount)

	next, err := svc.PaymentDetails(ctx, reviewer, student.RollNumber)
	require.NoError(t, err)
	assert.Equal(t, 7000.0, next.YearWise["2024-25"].PaidAmount)
}

func TestFilterStudents(t *testing.T) {
	svc, db := newService(t, nil)
	testutil.SeedStudent(t, db, "A1", 10000, 10000)
	testutil.SeedStudent(t, db, "A2", 10000, 2000)

	paid, err := svc.FilterStudents(context.Background(), reviewer, reporting.FilterRequest{ListType: "paidFee"})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "A1", paid[0].RollNumber)

	pending, err := svc.FilterStudents(context.Background(), reviewer, reporting.FilterRequest{ListType: "pendingFee", Branch: "CSE"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 8000.0, pending[0].PendingAmount)

	_, err = svc.FilterStudents(context.Background(), reviewer, reporting.FilterRequest{ListType: "overdue"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	student := auth.Identity{Role: models.RoleStudent, RollNumber: "A1"}
	_, err = svc.FilterStudents(context.Background(), student, reporting.FilterRequest{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListStudents_Statistics(t *testing.T) {
	svc, db := newService(t, nil)
	testutil.SeedStudent(t, db, "A1", 10000, 10000)
	testutil.SeedStudent(t, db, "A2", 10000, 0)
	testutil.SeedStudent(t, db, "A3", 10000, 12000)

	roster, err := svc.ListStudents(context.Background(), reviewer)
	require.NoError(t, err)
	assert.Len(t, roster.Students, 3)
	assert.Equal(t, repository.RosterStats{Total: 3, Paid: 2, Pending: 1}, roster.Statistics)
}

func TestListTransactions(t *testing.T) {
	svc, db := newService(t, nil)
	ctx := context.Background()
	student := testutil.SeedStudent(t, db, "A1", 100000, 0)
	testutil.SeedTransaction(t, db, student, "TXN00000001", 1000, "2024-25", models.TransactionPending)
	testutil.SeedTransaction(t, db, student, "TXN00000002", 2000, "2024-25", models.TransactionPending)
	testutil.SeedTransaction(t, db, student, "TXN00000003", 3000, "2024-25", models.TransactionVerified)

	page, err := svc.ListTransactions(ctx, reviewer, "pending", "", 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)

	next, err := svc.ListTransactions(ctx, reviewer, "pending", page.NextCursor, 1)
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.False(t, next.HasMore)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	all, err := svc.ListTransactions(ctx, reviewer, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
	assert.Equal(t, int64(3), all.Stats.Total)
	assert.Equal(t, int64(2), all.Stats.PendingCount)
	assert.Equal(t, 3000.0, all.Stats.PendingSum)
	assert.Equal(t, 3000.0, all.Stats.VerifiedSum)
	assert.Equal(t, 6000.0, all.Stats.TotalAmount)

	_, err = svc.ListTransactions(ctx, reviewer, "matched", "", 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.ListTransactions(ctx, reviewer, "", "not-a-uuid", 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStudentHistory(t *testing.T) {
	svc, db := newService(t, nil)
	ctx := context.Background()
	student := testutil.SeedStudent(t, db, "A1", 10000, 0)
	testutil.SeedTransaction(t, db, student, "TXN00000001", 1000, "2024-25", models.TransactionPending)
	require.NoError(t, db.Create(&models.Complaint{
		ID:           uuid.New(),
		ComplaintRef: "COMP00000001",
		StudentID:    student.ID,
		Subject:      "Receipt missing",
		Description:  "No bill number yet",
		Status:       models.ComplaintPending,
	}).Error)

	txs, err := svc.StudentTransactions(ctx, reviewer, "A1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "TXN00000001", txs[0].ID)
	assert.Equal(t, "pending", txs[0].Status)

	complaints, err := svc.StudentComplaints(ctx, reviewer, "A1")
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	assert.Equal(t, "COMP00000001", complaints[0].ID)

	_, err = svc.StudentTransactions(ctx, reviewer, "MISSING")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
