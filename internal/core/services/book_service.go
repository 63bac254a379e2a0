package services

import (
	"context"
	"errors"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"

	"gorm.io/gorm"
)

// BookService is the book catalog collaborator: listing and lookup for the
// shelves. Book status itself belongs to the loan lifecycle engine.
type BookService struct {
	bookRepo *repositories.BookRepository
}

// NewBookService creates a new book service
func NewBookService(bookRepo *repositories.BookRepository) *BookService {
	return &BookService{bookRepo: bookRepo}
}

// AddBookInput represents add book input
type AddBookInput struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author,omitempty"`
}

// Add puts a new book on the owner's shelf, available for lending
func (s *BookService) Add(ctx context.Context, ownerID uint, input *AddBookInput) (*models.Book, error) {
	book := &models.Book{
		OwnerID: ownerID,
		Title:   input.Title,
		Author:  input.Author,
		Status:  domain.BookAvailable,
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetByID returns one book
func (s *BookService) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// ListMine lists the caller's own books
func (s *BookService) ListMine(ctx context.Context, ownerID uint) ([]*models.Book, error) {
	return s.bookRepo.ListByOwner(ctx, ownerID)
}

// BrowseOutput represents a page of borrowable books
type BrowseOutput struct {
	Books      []*models.Book `json:"books"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// Browse lists available books of other owners
func (s *BookService) Browse(ctx context.Context, userID uint, page, limit int) (*BrowseOutput, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := (page - 1) * limit
	books, total, err := s.bookRepo.ListAvailable(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &BrowseOutput{
		Books:      books,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// UpdateBookInput represents update book input
type UpdateBookInput struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author,omitempty"`
}

// Update edits an owner's book details unless a loan is in progress
func (s *BookService) Update(ctx context.Context, ownerID uint, bookID uint, input *UpdateBookInput) (*models.Book, error) {
	book, err := s.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	onLoan, err := s.bookRepo.HasOpenLoan(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if onLoan {
		return nil, domain.ErrBookOnLoan
	}

	if err := s.bookRepo.UpdateDetails(ctx, bookID, input.Title, input.Author); err != nil {
		return nil, err
	}
	book.Title = input.Title
	book.Author = input.Author
	return book, nil
}

// Remove deletes an owner's book unless a loan is in progress
func (s *BookService) Remove(ctx context.Context, ownerID uint, bookID uint) error {
	book, err := s.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if book.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	return s.bookRepo.Delete(ctx, bookID)
}
