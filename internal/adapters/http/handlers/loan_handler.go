package handlers

import (
	"errors"
	"strconv"
	"time"

	"shelfshare/internal/core/domain"
	"shelfshare/internal/core/services"
	"shelfshare/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan lifecycle endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// loanError maps engine errors to HTTP responses. Forbidden and InvalidState
// carry distinct reasons so the client can choose the right UI feedback.
func loanError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Loan or book not found")
	case errors.Is(err, domain.ErrForbidden):
		return response.Forbidden(c, "You are not allowed to perform this action")
	case errors.Is(err, domain.ErrInvalidState):
		return response.InvalidState(c, "Operation not possible in the current state")
	case errors.Is(err, domain.ErrConflict):
		return response.InternalServerError(c, "Inconsistent loan state detected")
	case errors.Is(err, domain.ErrTimeout):
		return response.Timeout(c, "Operation timed out, please retry")
	default:
		return response.InternalServerError(c, "Operation failed")
	}
}

// RequestLoanRequest represents a loan request body
type RequestLoanRequest struct {
	BookID uint `json:"book_id"`
}

// Request creates a loan request
// @Summary Request a loan
// @Description Request to borrow an available book from another user
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RequestLoanRequest true "Loan request"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Request(c *fiber.Ctx) error {
	var req RequestLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BookID == 0 {
		return response.BadRequest(c, "Book ID is required")
	}

	userID, _ := c.Locals("userID").(uint)

	loanUID, err := h.loanService.RequestLoan(c.Context(), req.BookID, userID)
	if err != nil {
		return loanError(c, err)
	}

	return response.Created(c, "Loan requested", fiber.Map{
		"loan_uid": loanUID,
		"status":   domain.LoanRequested,
	})
}

// ApproveLoanRequest represents an approve body
type ApproveLoanRequest struct {
	DueDate string `json:"due_date,omitempty"` // YYYY-MM-DD, optional
}

// Approve approves a loan request
// @Summary Approve a loan
// @Description Approve a pending loan request for one of your books; an optional due date activates the loan immediately
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Param body body ApproveLoanRequest false "Approval options"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{uid}/approve [post]
func (h *LoanHandler) Approve(c *fiber.Ctx) error {
	var req ApproveLoanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return response.BadRequest(c, "Invalid due date, use YYYY-MM-DD")
		}
		dueDate = &parsed
	}

	userID, _ := c.Locals("userID").(uint)

	status, err := h.loanService.ApproveLoan(c.Context(), c.Params("uid"), userID, dueDate)
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Loan approved", fiber.Map{"status": status})
}

// Reject rejects a loan request
// @Summary Reject a loan
// @Description Reject a pending loan request for one of your books
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{uid}/reject [post]
func (h *LoanHandler) Reject(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	status, err := h.loanService.RejectLoan(c.Context(), c.Params("uid"), userID)
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Loan rejected", fiber.Map{"status": status})
}

// Cancel cancels a pending loan request
// @Summary Cancel a loan request
// @Description Cancel your own pending loan request
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{uid}/cancel [post]
func (h *LoanHandler) Cancel(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	status, err := h.loanService.CancelLoan(c.Context(), c.Params("uid"), userID)
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Loan cancelled", fiber.Map{"status": status})
}

// SetDueDateRequest represents a due date body
type SetDueDateRequest struct {
	DueDate string `json:"due_date"` // YYYY-MM-DD
}

// SetDueDate sets or moves the due date of a loan
// @Summary Set due date
// @Description Set or move the due date on an approved or active loan you lend
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Param body body SetDueDateRequest true "Due date"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{uid}/due-date [patch]
func (h *LoanHandler) SetDueDate(c *fiber.Ctx) error {
	var req SetDueDateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return response.BadRequest(c, "Invalid due date, use YYYY-MM-DD")
	}

	userID, _ := c.Locals("userID").(uint)

	status, err := h.loanService.SetDueDate(c.Context(), c.Params("uid"), userID, dueDate)
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Due date set", fiber.Map{"status": status})
}

// Return marks the holding loan of a book as returned
// @Summary Return a book
// @Description Close the active loan of a book and make it available again
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/return [post]
func (h *LoanHandler) Return(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	status, err := h.loanService.ReturnBook(c.Context(), uint(bookID))
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Book returned", fiber.Map{"status": status})
}

// List lists the caller's loans
// @Summary List loans
// @Description List loans where you are borrower or lender
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role" Enums(borrower, lender)
// @Param status query string false "Filter by status"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	userID, _ := c.Locals("userID").(uint)

	input := &services.ListLoansInput{
		UserID: userID,
		Role:   c.Query("role"),
		Status: domain.LoanStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}

	result, err := h.loanService.ListLoans(c.Context(), input)
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved", result)
}

// GetByUID returns one loan
// @Summary Get loan
// @Description Get a loan by its UID
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{uid} [get]
func (h *LoanHandler) GetByUID(c *fiber.Ctx) error {
	loan, err := h.loanService.GetByUID(c.Context(), c.Params("uid"))
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Loan retrieved", fiber.Map{"loan": loan.ToResponse()})
}

// Transitions returns the transition history of a loan
// @Summary Loan transition history
// @Description List the recorded status transitions of a loan
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param uid path string true "Loan UID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{uid}/history [get]
func (h *LoanHandler) Transitions(c *fiber.Ctx) error {
	transitions, err := h.loanService.GetLoanTransitions(c.Context(), c.Params("uid"))
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Loan history retrieved", fiber.Map{"transitions": transitions})
}

// BookHistory lists every loan ever made for a book
// @Summary Book loan history
// @Description List all loans of a book, newest first
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/loans [get]
func (h *LoanHandler) BookHistory(c *fiber.Ctx) error {
	bookID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	loans, err := h.loanService.GetBookLoanHistory(c.Context(), uint(bookID))
	if err != nil {
		return loanError(c, err)
	}

	return response.Success(c, "Book loan history retrieved", fiber.Map{"loans": loans})
}
