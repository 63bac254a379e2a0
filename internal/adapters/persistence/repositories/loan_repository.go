package repositories

import (
	"context"
	"errors"
	"time"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/core/domain"

	"gorm.io/gorm"
)

// LoanRepository is the loan record store
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *LoanRepository) WithTx(tx *gorm.DB) *LoanRepository {
	return &LoanRepository{db: tx}
}

// Create creates a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByUID gets a loan by its public UID with relations
func (r *LoanRepository) GetByUID(ctx context.Context, uid string) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Borrower").
		Preload("Lender").
		Where("loan_uid = ?", uid).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// Update persists loan field changes
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

// GetOpenForBook returns the single non-terminal loan for a book, or nil
func (r *LoanRepository) GetOpenForBook(ctx context.Context, bookID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status IN ?", bookID, domain.NonTerminalStatuses).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetLentForBook returns the loans currently holding a book (approved/active).
// More than one element is an invariant violation the caller must treat as fatal.
func (r *LoanRepository) GetLentForBook(ctx context.Context, bookID uint) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status IN ?", bookID, domain.LentStatuses).
		Find(&loans).Error
	return loans, err
}

// ListByUser lists loans where the user is borrower, lender, or either,
// optionally filtered by status, newest first
func (r *LoanRepository) ListByUser(ctx context.Context, userID uint, role string, status domain.LoanStatus, offset, limit int) ([]*models.Loan, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Loan{})

	switch role {
	case "borrower":
		q = q.Where("borrower_id = ?", userID)
	case "lender":
		q = q.Where("lender_id = ?", userID)
	default:
		q = q.Where("borrower_id = ? OR lender_id = ?", userID, userID)
	}

	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var loans []*models.Loan
	err := q.
		Preload("Book").
		Preload("Borrower").
		Preload("Lender").
		Order("requested_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&loans).Error

	return loans, total, err
}

// HistoryByBook lists every loan ever made for a book, newest first
func (r *LoanRepository) HistoryByBook(ctx context.Context, bookID uint) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Preload("Borrower").
		Preload("Lender").
		Where("book_id = ?", bookID).
		Order("requested_at DESC").
		Find(&loans).Error
	return loans, err
}

// ListOverdue returns approved/active loans whose due date has passed and that
// were not yet notified since the given cutoff (start of the current day)
func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time, notifiedBefore time.Time) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?", domain.LentStatuses, now).
		Where("last_overdue_notified_at IS NULL OR last_overdue_notified_at < ?", notifiedBefore).
		Find(&loans).Error
	return loans, err
}

// MarkOverdueNotified records that an overdue event was emitted for the loan
func (r *LoanRepository) MarkOverdueNotified(ctx context.Context, loanID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ?", loanID).
		Update("last_overdue_notified_at", at).Error
}

// CreateTransition appends a history row for a loan mutation
func (r *LoanRepository) CreateTransition(ctx context.Context, t *models.LoanTransition) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// TransitionsByLoan lists the transition history of a loan, oldest first
func (r *LoanRepository) TransitionsByLoan(ctx context.Context, loanID uint) ([]*models.LoanTransition, error) {
	var transitions []*models.LoanTransition
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC").
		Find(&transitions).Error
	return transitions, err
}
