package handlers

import (
	"errors"
	"strconv"
	"strings"

	"shelfshare/internal/core/domain"
	"shelfshare/internal/core/services"
	"shelfshare/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles book catalog endpoints
type BookHandler struct {
	bookService *services.BookService
}

// NewBookHandler creates a new book handler
func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{
		bookService: bookService,
	}
}

// Add puts a new book on the caller's shelf
// @Summary Add a book
// @Description Add a book to your shelf, available for lending
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.AddBookInput true "Book data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /books [post]
func (h *BookHandler) Add(c *fiber.Ctx) error {
	var input services.AddBookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return response.BadRequest(c, "Title is required")
	}

	userID, _ := c.Locals("userID").(uint)

	book, err := h.bookService.Add(c.Context(), userID, &input)
	if err != nil {
		return response.InternalServerError(c, "Failed to add book")
	}

	return response.Created(c, "Book added", fiber.Map{"book": book})
}

// Get returns one book
// @Summary Get book
// @Description Get a book by ID
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	book, err := h.bookService.GetByID(c.Context(), uint(bookID))
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return response.NotFound(c, "Book not found")
		}
		return response.InternalServerError(c, "Failed to get book")
	}

	return response.Success(c, "Book retrieved", fiber.Map{"book": book})
}

// ListMine lists the caller's shelf
// @Summary My books
// @Description List the books on your shelf
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /books/mine [get]
func (h *BookHandler) ListMine(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	books, err := h.bookService.ListMine(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	return response.Success(c, "Books retrieved", fiber.Map{"books": books})
}

// Browse lists borrowable books of other users
// @Summary Browse books
// @Description List available books owned by other users
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /books [get]
func (h *BookHandler) Browse(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	userID, _ := c.Locals("userID").(uint)

	result, err := h.bookService.Browse(c.Context(), userID, page, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to browse books")
	}

	return response.Success(c, "Books retrieved", result)
}

// Update edits a book's details
// @Summary Update book
// @Description Edit a book's title or author; fails while a loan is in progress
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.UpdateBookInput true "Book data"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	var input services.UpdateBookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return response.BadRequest(c, "Title is required")
	}

	userID, _ := c.Locals("userID").(uint)

	book, err := h.bookService.Update(c.Context(), userID, uint(bookID), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You do not own this book")
		case errors.Is(err, domain.ErrBookOnLoan):
			return response.InvalidState(c, "Book has a loan in progress")
		default:
			return response.InternalServerError(c, "Failed to update book")
		}
	}

	return response.Success(c, "Book updated", fiber.Map{"book": book})
}

// Remove deletes a book from the caller's shelf
// @Summary Remove book
// @Description Remove a book from your shelf; fails while a loan is in progress
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books/{id} [delete]
func (h *BookHandler) Remove(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	userID, _ := c.Locals("userID").(uint)

	if err := h.bookService.Remove(c.Context(), userID, uint(bookID)); err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return response.NotFound(c, "Book not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You do not own this book")
		case errors.Is(err, domain.ErrBookOnLoan):
			return response.InvalidState(c, "Book has a loan in progress")
		default:
			return response.InternalServerError(c, "Failed to remove book")
		}
	}

	return response.Success(c, "Book removed", nil)
}
