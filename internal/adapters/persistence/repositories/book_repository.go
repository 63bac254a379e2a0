package repositories

import (
	"context"
	"errors"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/core/domain"

	"gorm.io/gorm"
)

// BookRepository is the book availability ledger. Status writes go through
// SetStatus, which only the loan lifecycle engine calls inside its transactions.
type BookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *BookRepository) WithTx(tx *gorm.DB) *BookRepository {
	return &BookRepository{db: tx}
}

// Create creates a new book
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID gets a book by ID with its owner
func (r *BookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).Preload("Owner").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListByOwner lists all books of an owner
func (r *BookRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Book, error) {
	var books []*models.Book
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&books).Error
	return books, err
}

// ListAvailable lists available books not owned by the given user, paginated
func (r *BookRepository) ListAvailable(ctx context.Context, excludeOwnerID uint, offset, limit int) ([]*models.Book, int64, error) {
	var books []*models.Book
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("status = ? AND owner_id <> ?", domain.BookAvailable, excludeOwnerID)

	q.Count(&total)

	err := q.
		Preload("Owner").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error

	return books, total, err
}

// GetStatus returns the current availability status of a book
func (r *BookRepository) GetStatus(ctx context.Context, bookID uint) (domain.BookStatus, error) {
	var book models.Book
	err := r.db.WithContext(ctx).Select("status").First(&book, bookID).Error
	if err != nil {
		return "", err
	}
	return book.Status, nil
}

// SetStatus updates the book status with a compare-and-swap on the version
// column. A concurrent writer that touched the row first makes the swap miss,
// which surfaces as domain.ErrConflict and aborts the caller's transaction.
func (r *BookRepository) SetStatus(ctx context.Context, bookID uint, status domain.BookStatus, expectedVersion uint) error {
	res := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND version = ?", bookID, expectedVersion).
		Updates(map[string]interface{}{
			"status":  status,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ActiveLoanCount returns the number of loans holding the book, used for
// invariant assertions (must be 0 or 1).
func (r *BookRepository) ActiveLoanCount(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("book_id = ? AND status IN ?", bookID, domain.LentStatuses).
		Count(&count).Error
	return count, err
}

// HasOpenLoan reports whether a book has a non-terminal loan
func (r *BookRepository) HasOpenLoan(ctx context.Context, id uint) (bool, error) {
	var open int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("book_id = ? AND status IN ?", id, domain.NonTerminalStatuses).
		Count(&open).Error
	return open > 0, err
}

// UpdateDetails updates the shelf-facing fields of a book. Status and version
// are out of scope here; those belong to SetStatus.
func (r *BookRepository) UpdateDetails(ctx context.Context, id uint, title, author string) error {
	return r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":  title,
			"author": author,
		}).Error
}

// Delete soft deletes a book unless a loan is in progress
func (r *BookRepository) Delete(ctx context.Context, id uint) error {
	open, err := r.HasOpenLoan(ctx, id)
	if err != nil {
		return err
	}
	if open {
		return domain.ErrBookOnLoan
	}
	return r.db.WithContext(ctx).Delete(&models.Book{}, id).Error
}

// Exists reports whether a book exists
func (r *BookRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var book models.Book
	err := r.db.WithContext(ctx).Select("id").First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
