package services

import (
	"context"
	"testing"
	"time"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingSink captures published events for assertions
type recordingSink struct {
	events []domain.LoanEvent
}

func (s *recordingSink) Publish(_ context.Context, e domain.LoanEvent) {
	s.events = append(s.events, e)
}

func (s *recordingSink) last() domain.LoanEvent {
	return s.events[len(s.events)-1]
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// In-memory sqlite is per connection; keep the pool to one
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// fixture wires a loan service against an in-memory database with one lender
// (who owns a book) and one borrower.
type fixture struct {
	db       *gorm.DB
	svc      *LoanService
	sink     *recordingSink
	lender   models.User
	borrower models.User
	book     models.Book
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)

	f := &fixture{
		db:       db,
		sink:     &recordingSink{},
		lender:   models.User{Username: "alice", Email: "alice@example.com", Password: "x"},
		borrower: models.User{Username: "bob", Email: "bob@example.com", Password: "x"},
	}
	require.NoError(t, db.Create(&f.lender).Error)
	require.NoError(t, db.Create(&f.borrower).Error)

	f.book = models.Book{OwnerID: f.lender.ID, Title: "The Go Programming Language", Status: domain.BookAvailable}
	require.NoError(t, db.Create(&f.book).Error)

	f.svc = NewLoanService(db, repositories.NewLoanRepository(db), repositories.NewBookRepository(db), f.sink)
	return f
}

func (f *fixture) bookStatus(t *testing.T) domain.BookStatus {
	var book models.Book
	require.NoError(t, f.db.First(&book, f.book.ID).Error)
	return book.Status
}

func (f *fixture) loanStatus(t *testing.T, uid string) domain.LoanStatus {
	var loan models.Loan
	require.NoError(t, f.db.Where("loan_uid = ?", uid).First(&loan).Error)
	return loan.Status
}

func (f *fixture) request(t *testing.T) string {
	uid, err := f.svc.RequestLoan(context.Background(), f.book.ID, f.borrower.ID)
	require.NoError(t, err)
	return uid
}

func (f *fixture) approve(t *testing.T, uid string, dueDate *time.Time) domain.LoanStatus {
	status, err := f.svc.ApproveLoan(context.Background(), uid, f.lender.ID, dueDate)
	require.NoError(t, err)
	return status
}

func daysFromNow(d int) *time.Time {
	due := time.Now().AddDate(0, 0, d)
	return &due
}

// ============================================================
// RequestLoan
// ============================================================

func TestRequestLoan(t *testing.T) {
	f := newFixture(t)

	uid := f.request(t)

	assert.NotEmpty(t, uid)
	assert.Equal(t, domain.LoanRequested, f.loanStatus(t, uid))
	// The book does not leave the shelf on a mere request
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, domain.EventLoanRequested, f.sink.last().Type)
	assert.Equal(t, f.borrower.ID, f.sink.last().BorrowerID)
	assert.Equal(t, f.lender.ID, f.sink.last().LenderID)
}

func TestRequestLoanUnknownBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestLoan(context.Background(), 9999, f.borrower.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestLoanOwnBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RequestLoan(context.Background(), f.book.ID, f.lender.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRequestLoanAlreadyRequested(t *testing.T) {
	f := newFixture(t)
	f.request(t)

	other := models.User{Username: "carol", Email: "carol@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&other).Error)

	_, err := f.svc.RequestLoan(context.Background(), f.book.ID, other.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRequestLoanAfterRejectSucceeds(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	_, err := f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	require.NoError(t, err)

	// A rejected request no longer blocks the book
	uid2 := f.request(t)
	assert.NotEqual(t, uid, uid2)
}

// ============================================================
// ApproveLoan
// ============================================================

func TestApproveLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	status := f.approve(t, uid, nil)

	assert.Equal(t, domain.LoanApproved, status)
	assert.Equal(t, domain.BookBorrowed, f.bookStatus(t))
	assert.Equal(t, domain.EventLoanApproved, f.sink.last().Type)

	var loan models.Loan
	require.NoError(t, f.db.Where("loan_uid = ?", uid).First(&loan).Error)
	assert.NotNil(t, loan.ApprovedAt)
	assert.Nil(t, loan.DueDate)
}

func TestApproveLoanWithDueDateActivates(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	status := f.approve(t, uid, daysFromNow(14))

	assert.Equal(t, domain.LoanActive, status)
	assert.Equal(t, domain.BookBorrowed, f.bookStatus(t))
}

func TestApproveLoanWrongCaller(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	// The borrower cannot approve their own request
	_, err := f.svc.ApproveLoan(context.Background(), uid, f.borrower.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))
}

func TestApproveLoanWrongCallerOnTerminalLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	_, err := f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	require.NoError(t, err)

	// The permission check wins over the state check
	_, err = f.svc.ApproveLoan(context.Background(), uid, f.borrower.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApproveLoanTwice(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	_, err := f.svc.ApproveLoan(context.Background(), uid, f.lender.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApproveLoanUnknownUID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApproveLoan(context.Background(), "no-such-loan", f.lender.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ============================================================
// RejectLoan / CancelLoan
// ============================================================

func TestRejectLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	status, err := f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanRejected, status)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))
	assert.Equal(t, domain.EventLoanRejected, f.sink.last().Type)
}

func TestRejectLoanWrongCaller(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	_, err := f.svc.RejectLoan(context.Background(), uid, f.borrower.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCancelLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	status, err := f.svc.CancelLoan(context.Background(), uid, f.borrower.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanCancelled, status)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))
	assert.Equal(t, domain.EventLoanCancelled, f.sink.last().Type)
}

func TestCancelLoanByLender(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	// Only the borrower may cancel; the lender rejects instead
	_, err := f.svc.CancelLoan(context.Background(), uid, f.lender.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCancelApprovedLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	_, err := f.svc.CancelLoan(context.Background(), uid, f.borrower.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

// ============================================================
// SetDueDate
// ============================================================

func TestSetDueDateActivatesApprovedLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	status, err := f.svc.SetDueDate(context.Background(), uid, f.lender.ID, *daysFromNow(7))
	require.NoError(t, err)

	assert.Equal(t, domain.LoanActive, status)
	assert.Equal(t, domain.EventLoanActivated, f.sink.last().Type)
}

func TestSetDueDateMovesExistingDueDate(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, daysFromNow(7))

	newDue := *daysFromNow(21)
	status, err := f.svc.SetDueDate(context.Background(), uid, f.lender.ID, newDue)
	require.NoError(t, err)

	// Already active: the date moves, the state does not
	assert.Equal(t, domain.LoanActive, status)
	assert.Equal(t, domain.EventLoanDueDateSet, f.sink.last().Type)

	var loan models.Loan
	require.NoError(t, f.db.Where("loan_uid = ?", uid).First(&loan).Error)
	assert.WithinDuration(t, newDue, *loan.DueDate, time.Second)
}

func TestSetDueDateWrongCaller(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	_, err := f.svc.SetDueDate(context.Background(), uid, f.borrower.ID, *daysFromNow(7))
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetDueDateOnRequestedLoan(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)

	_, err := f.svc.SetDueDate(context.Background(), uid, f.lender.ID, *daysFromNow(7))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

// ============================================================
// ReturnBook
// ============================================================

func TestReturnBook(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, daysFromNow(14))

	status, err := f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanReturned, status)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))
	assert.Equal(t, domain.EventLoanReturned, f.sink.last().Type)

	var loan models.Loan
	require.NoError(t, f.db.Where("loan_uid = ?", uid).First(&loan).Error)
	assert.NotNil(t, loan.ReturnedAt)
}

func TestReturnBookWithoutActiveLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReturnBook(context.Background(), f.book.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReturnBookTwice(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	_, err := f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	// The first return already closed the loan
	_, err = f.svc.ReturnBook(context.Background(), f.book.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReturnedLoanIsImmutable(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, daysFromNow(7))
	_, err := f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	_, err = f.svc.ApproveLoan(context.Background(), uid, f.lender.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.SetDueDate(context.Background(), uid, f.lender.ID, *daysFromNow(7))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Equal(t, domain.LoanReturned, f.loanStatus(t, uid))
}

// ============================================================
// Queries
// ============================================================

func TestListLoans(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)

	asBorrower, err := f.svc.ListLoans(context.Background(), &ListLoansInput{
		UserID: f.borrower.ID,
		Role:   "borrower",
	})
	require.NoError(t, err)
	require.Len(t, asBorrower.Loans, 1)
	assert.Equal(t, uid, asBorrower.Loans[0].LoanUID)
	assert.Equal(t, domain.LoanApproved, asBorrower.Loans[0].Status)
	assert.True(t, asBorrower.Loans[0].ChatOpen)

	asLender, err := f.svc.ListLoans(context.Background(), &ListLoansInput{
		UserID: f.lender.ID,
		Role:   "lender",
	})
	require.NoError(t, err)
	assert.Len(t, asLender.Loans, 1)

	// The lender never borrowed anything
	empty, err := f.svc.ListLoans(context.Background(), &ListLoansInput{
		UserID: f.lender.ID,
		Role:   "borrower",
	})
	require.NoError(t, err)
	assert.Len(t, empty.Loans, 0)
}

func TestListLoansStatusFilter(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	_, err := f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	require.NoError(t, err)
	f.request(t)

	rejected, err := f.svc.ListLoans(context.Background(), &ListLoansInput{
		UserID: f.borrower.ID,
		Status: domain.LoanRejected,
	})
	require.NoError(t, err)
	require.Len(t, rejected.Loans, 1)
	assert.Equal(t, domain.LoanRejected, rejected.Loans[0].Status)
	assert.False(t, rejected.Loans[0].ChatOpen)
}

func TestGetBookLoanHistory(t *testing.T) {
	f := newFixture(t)

	uid1 := f.request(t)
	_, err := f.svc.CancelLoan(context.Background(), uid1, f.borrower.ID)
	require.NoError(t, err)

	uid2 := f.request(t)
	f.approve(t, uid2, daysFromNow(7))
	_, err = f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	history, err := f.svc.GetBookLoanHistory(context.Background(), f.book.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.LoanReturned, history[0].Status)
	assert.Equal(t, domain.LoanCancelled, history[1].Status)
}

func TestGetBookLoanHistoryUnknownBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetBookLoanHistory(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoanTransitionsRecorded(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	f.approve(t, uid, nil)
	_, err := f.svc.SetDueDate(context.Background(), uid, f.lender.ID, *daysFromNow(7))
	require.NoError(t, err)
	_, err = f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	transitions, err := f.svc.GetLoanTransitions(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, transitions, 4)
	assert.Equal(t, domain.EventLoanRequested, transitions[0].Event)
	assert.Equal(t, domain.EventLoanApproved, transitions[1].Event)
	assert.Equal(t, domain.EventLoanActivated, transitions[2].Event)
	assert.Equal(t, domain.EventLoanReturned, transitions[3].Event)
}

// TestBookStatusMatchesHoldingLoan walks the full lifecycle and checks that
// the book is BORROWED exactly while a loan holds it.
func TestBookStatusMatchesHoldingLoan(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))

	uid := f.request(t)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))

	f.approve(t, uid, nil)
	assert.Equal(t, domain.BookBorrowed, f.bookStatus(t))

	_, err := f.svc.SetDueDate(context.Background(), uid, f.lender.ID, *daysFromNow(7))
	require.NoError(t, err)
	assert.Equal(t, domain.BookBorrowed, f.bookStatus(t))

	_, err = f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookAvailable, f.bookStatus(t))
}

// TestEventsPublishedOncePerTransition checks the full lifecycle emits exactly
// one event per state change, in order.
func TestEventsPublishedOncePerTransition(t *testing.T) {
	f := newFixture(t)

	uid := f.request(t)
	f.approve(t, uid, daysFromNow(14))
	_, err := f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	require.Len(t, f.sink.events, 3)
	assert.Equal(t, domain.EventLoanRequested, f.sink.events[0].Type)
	assert.Equal(t, domain.EventLoanApproved, f.sink.events[1].Type)
	assert.Equal(t, domain.EventLoanReturned, f.sink.events[2].Type)
	for _, e := range f.sink.events {
		assert.Equal(t, uid, e.LoanUID)
	}
}

// TestNoEventOnFailedOperation checks a failed transition publishes nothing.
func TestNoEventOnFailedOperation(t *testing.T) {
	f := newFixture(t)
	uid := f.request(t)
	published := len(f.sink.events)

	_, err := f.svc.ApproveLoan(context.Background(), uid, f.borrower.ID, nil)
	require.Error(t, err)

	assert.Len(t, f.sink.events, published)
}
