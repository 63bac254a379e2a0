package services

import (
	"context"
	"errors"
	"log"
	"time"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultTxTimeout bounds every lifecycle transaction. A transaction that
// cannot commit in time fails with domain.ErrTimeout and leaves no state behind.
const defaultTxTimeout = 5 * time.Second

// LoanService is the loan lifecycle engine. It owns all writes to loan status
// and to book status; callers supply their identity explicitly on every call.
type LoanService struct {
	db        *gorm.DB
	loanRepo  *repositories.LoanRepository
	bookRepo  *repositories.BookRepository
	sink      EventSink
	txTimeout time.Duration
}

// NewLoanService creates a new loan lifecycle service
func NewLoanService(db *gorm.DB, loanRepo *repositories.LoanRepository, bookRepo *repositories.BookRepository, sink EventSink) *LoanService {
	return &LoanService{
		db:        db,
		loanRepo:  loanRepo,
		bookRepo:  bookRepo,
		sink:      sink,
		txTimeout: defaultTxTimeout,
	}
}

// inTx runs fn inside a single bounded transaction. Events appended to the
// returned slice are published only after the commit succeeds.
func (s *LoanService) inTx(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var events []domain.LoanEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx, &events)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.ErrTimeout
		}
		return err
	}

	if s.sink != nil {
		for _, event := range events {
			s.sink.Publish(ctx, event)
		}
	}
	return nil
}

// event builds a LoanEvent for a loan in its current (post-transition) state
func event(t domain.EventType, loan *models.Loan) domain.LoanEvent {
	return domain.LoanEvent{
		Type:       t,
		LoanUID:    loan.LoanUID,
		BookID:     loan.BookID,
		BorrowerID: loan.BorrowerID,
		LenderID:   loan.LenderID,
		Status:     loan.Status,
		DueDate:    loan.DueDate,
		OccurredAt: time.Now(),
	}
}

// RequestLoan creates a loan in REQUESTED state for an available book.
// The book stays AVAILABLE until approval; its version column is still bumped
// so concurrent requests on the same book serialize on the row.
func (s *LoanService) RequestLoan(ctx context.Context, bookID uint, borrowerID uint) (string, error) {
	var loanUID string

	err := s.inTx(ctx, func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error {
		loans := s.loanRepo.WithTx(tx)
		books := s.bookRepo.WithTx(tx)

		book, err := books.GetByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if book.OwnerID == borrowerID {
			return domain.ErrForbidden
		}
		if book.Status != domain.BookAvailable {
			return domain.ErrInvalidState
		}

		open, err := loans.GetOpenForBook(ctx, bookID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrInvalidState
		}

		// Same-status write: serializes concurrent requests via the version CAS.
		if err := books.SetStatus(ctx, bookID, domain.BookAvailable, book.Version); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrInvalidState
			}
			return err
		}

		loan := &models.Loan{
			LoanUID:     uuid.New().String(),
			BookID:      bookID,
			BorrowerID:  borrowerID,
			LenderID:    book.OwnerID,
			Status:      domain.LoanRequested,
			RequestedAt: time.Now(),
		}
		if err := loans.Create(ctx, loan); err != nil {
			return err
		}

		if err := loans.CreateTransition(ctx, &models.LoanTransition{
			LoanID:      loan.ID,
			Event:       domain.EventLoanRequested,
			ToStatus:    domain.LoanRequested,
			PerformedBy: borrowerID,
		}); err != nil {
			return err
		}

		loanUID = loan.LoanUID
		*events = append(*events, event(domain.EventLoanRequested, loan))
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("✅ Loan %s requested (book %d, borrower %d)", loanUID, bookID, borrowerID)
	return loanUID, nil
}

// ApproveLoan moves a REQUESTED loan to APPROVED and the book to BORROWED.
// Supplying a due date activates the loan in the same transition; without one
// it stays APPROVED until the first SetDueDate.
func (s *LoanService) ApproveLoan(ctx context.Context, loanUID string, lenderID uint, dueDate *time.Time) (domain.LoanStatus, error) {
	var status domain.LoanStatus

	err := s.inTx(ctx, func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error {
		loans := s.loanRepo.WithTx(tx)
		books := s.bookRepo.WithTx(tx)

		loan, err := loans.GetByUID(ctx, loanUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		// Role gate comes before the state gate: a wrong caller gets
		// Forbidden regardless of loan state.
		if loan.LenderID != lenderID {
			return domain.ErrForbidden
		}
		if !domain.CanApply(domain.OpApprove, loan.Status) {
			return domain.ErrInvalidState
		}

		held, err := books.ActiveLoanCount(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if held > 0 {
			log.Printf("🔥 Invariant violation: book %d already has %d holding loan(s) at approve", loan.BookID, held)
			return domain.ErrConflict
		}

		book, err := books.GetByID(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if err := books.SetStatus(ctx, loan.BookID, domain.BookBorrowed, book.Version); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Lost the race to a concurrent transition on this book.
				return domain.ErrInvalidState
			}
			return err
		}

		now := time.Now()
		from := loan.Status
		loan.Status = domain.LoanApproved
		loan.ApprovedAt = &now
		if dueDate != nil {
			loan.DueDate = dueDate
			loan.Status = domain.LoanActive
		}
		if err := loans.Update(ctx, loan); err != nil {
			return err
		}

		if err := loans.CreateTransition(ctx, &models.LoanTransition{
			LoanID:      loan.ID,
			Event:       domain.EventLoanApproved,
			FromStatus:  from,
			ToStatus:    loan.Status,
			PerformedBy: lenderID,
		}); err != nil {
			return err
		}

		status = loan.Status
		*events = append(*events, event(domain.EventLoanApproved, loan))
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("✅ Loan %s approved → %s", loanUID, status)
	return status, nil
}

// RejectLoan moves a REQUESTED loan to REJECTED. The book stays AVAILABLE.
func (s *LoanService) RejectLoan(ctx context.Context, loanUID string, lenderID uint) (domain.LoanStatus, error) {
	return s.closeRequested(ctx, loanUID, lenderID, roleLender, domain.LoanRejected, domain.EventLoanRejected)
}

// CancelLoan moves a REQUESTED loan to CANCELLED. Only the borrower may
// cancel, and only while the request is pending.
func (s *LoanService) CancelLoan(ctx context.Context, loanUID string, borrowerID uint) (domain.LoanStatus, error) {
	return s.closeRequested(ctx, loanUID, borrowerID, roleBorrower, domain.LoanCancelled, domain.EventLoanCancelled)
}

type callerRole int

const (
	roleLender callerRole = iota
	roleBorrower
)

// closeRequested is the shared path for reject and cancel: both leave the
// book untouched and terminate a pending request.
func (s *LoanService) closeRequested(ctx context.Context, loanUID string, callerID uint, role callerRole, to domain.LoanStatus, eventType domain.EventType) (domain.LoanStatus, error) {
	op := domain.OpReject
	if to == domain.LoanCancelled {
		op = domain.OpCancel
	}

	var status domain.LoanStatus
	err := s.inTx(ctx, func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error {
		loans := s.loanRepo.WithTx(tx)

		loan, err := loans.GetByUID(ctx, loanUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		expected := loan.LenderID
		if role == roleBorrower {
			expected = loan.BorrowerID
		}
		if callerID != expected {
			return domain.ErrForbidden
		}
		if !domain.CanApply(op, loan.Status) {
			return domain.ErrInvalidState
		}

		from := loan.Status
		loan.Status = to
		if err := loans.Update(ctx, loan); err != nil {
			return err
		}

		if err := loans.CreateTransition(ctx, &models.LoanTransition{
			LoanID:      loan.ID,
			Event:       eventType,
			FromStatus:  from,
			ToStatus:    to,
			PerformedBy: callerID,
		}); err != nil {
			return err
		}

		status = to
		*events = append(*events, event(eventType, loan))
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("✅ Loan %s → %s", loanUID, status)
	return status, nil
}

// SetDueDate sets or moves the due date on an APPROVED or ACTIVE loan. The
// first due date on an APPROVED loan activates it.
func (s *LoanService) SetDueDate(ctx context.Context, loanUID string, lenderID uint, dueDate time.Time) (domain.LoanStatus, error) {
	var status domain.LoanStatus

	err := s.inTx(ctx, func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error {
		loans := s.loanRepo.WithTx(tx)

		loan, err := loans.GetByUID(ctx, loanUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if loan.LenderID != lenderID {
			return domain.ErrForbidden
		}
		if !domain.CanApply(domain.OpSetDueDate, loan.Status) {
			return domain.ErrInvalidState
		}

		from := loan.Status
		eventType := domain.EventLoanDueDateSet
		loan.DueDate = &dueDate
		if loan.Status == domain.LoanApproved {
			loan.Status = domain.LoanActive
			eventType = domain.EventLoanActivated
		}
		if err := loans.Update(ctx, loan); err != nil {
			return err
		}

		if err := loans.CreateTransition(ctx, &models.LoanTransition{
			LoanID:      loan.ID,
			Event:       eventType,
			FromStatus:  from,
			ToStatus:    loan.Status,
			PerformedBy: lenderID,
		}); err != nil {
			return err
		}

		status = loan.Status
		*events = append(*events, event(eventType, loan))
		return nil
	})
	if err != nil {
		return "", err
	}

	return status, nil
}

// ReturnBook closes the single holding loan of a book and makes the book
// AVAILABLE again. Finding more than one holding loan is an invariant
// violation: it is logged and surfaced, never silently repaired.
func (s *LoanService) ReturnBook(ctx context.Context, bookID uint) (domain.LoanStatus, error) {
	var status domain.LoanStatus

	err := s.inTx(ctx, func(ctx context.Context, tx *gorm.DB, events *[]domain.LoanEvent) error {
		loans := s.loanRepo.WithTx(tx)
		books := s.bookRepo.WithTx(tx)

		held, err := loans.GetLentForBook(ctx, bookID)
		if err != nil {
			return err
		}
		if len(held) == 0 {
			return domain.ErrNotFound
		}
		if len(held) > 1 {
			log.Printf("🔥 Invariant violation: book %d has %d holding loans", bookID, len(held))
			return domain.ErrConflict
		}
		loan := held[0]

		book, err := books.GetByID(ctx, bookID)
		if err != nil {
			return err
		}
		if err := books.SetStatus(ctx, bookID, domain.BookAvailable, book.Version); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrInvalidState
			}
			return err
		}

		now := time.Now()
		from := loan.Status
		loan.Status = domain.LoanReturned
		loan.ReturnedAt = &now
		if err := loans.Update(ctx, loan); err != nil {
			return err
		}

		if err := loans.CreateTransition(ctx, &models.LoanTransition{
			LoanID:      loan.ID,
			Event:       domain.EventLoanReturned,
			FromStatus:  from,
			ToStatus:    domain.LoanReturned,
			PerformedBy: loan.LenderID,
		}); err != nil {
			return err
		}

		status = domain.LoanReturned
		*events = append(*events, event(domain.EventLoanReturned, loan))
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("✅ Book %d returned", bookID)
	return status, nil
}

// GetByUID returns a single loan by its public UID
func (s *LoanService) GetByUID(ctx context.Context, loanUID string) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByUID(ctx, loanUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListLoansInput represents list loans filters
type ListLoansInput struct {
	UserID uint
	Role   string // "borrower", "lender" or "" for both
	Status domain.LoanStatus
	Page   int
	Limit  int
}

// ListLoansOutput represents a page of loans
type ListLoansOutput struct {
	Loans      []*models.LoanResponse `json:"loans"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// ListLoans lists loans where the user participates, filtered by role and status
func (s *LoanService) ListLoans(ctx context.Context, input *ListLoansInput) (*ListLoansOutput, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	offset := (input.Page - 1) * input.Limit
	loans, total, err := s.loanRepo.ListByUser(ctx, input.UserID, input.Role, input.Status, offset, input.Limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.LoanResponse, len(loans))
	for i, loan := range loans {
		responses[i] = loan.ToResponse()
	}

	totalPages := int(total) / input.Limit
	if int(total)%input.Limit > 0 {
		totalPages++
	}

	return &ListLoansOutput{
		Loans:      responses,
		Total:      total,
		Page:       input.Page,
		Limit:      input.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetBookLoanHistory lists every loan ever made for a book
func (s *LoanService) GetBookLoanHistory(ctx context.Context, bookID uint) ([]*models.LoanResponse, error) {
	exists, err := s.bookRepo.Exists(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	loans, err := s.loanRepo.HistoryByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.LoanResponse, len(loans))
	for i, loan := range loans {
		responses[i] = loan.ToResponse()
	}
	return responses, nil
}

// GetLoanTransitions lists the transition history of a loan
func (s *LoanService) GetLoanTransitions(ctx context.Context, loanUID string) ([]*models.LoanTransition, error) {
	loan, err := s.GetByUID(ctx, loanUID)
	if err != nil {
		return nil, err
	}
	return s.loanRepo.TransitionsByLoan(ctx, loan.ID)
}
