package domain

import "time"

// BookStatus represents the availability of a book
type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookBorrowed  BookStatus = "BORROWED"
	BookReserved  BookStatus = "RESERVED"
)

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanRequested LoanStatus = "REQUESTED"
	LoanApproved  LoanStatus = "APPROVED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanReturned  LoanStatus = "RETURNED"
	LoanRejected  LoanStatus = "REJECTED"
	LoanCancelled LoanStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s LoanStatus) IsTerminal() bool {
	switch s {
	case LoanReturned, LoanRejected, LoanCancelled:
		return true
	}
	return false
}

// IsChatOpen reports whether the loan chat is available for the status.
// Chat is keyed by loan and only open while the loan is non-terminal.
func (s LoanStatus) IsChatOpen() bool {
	return s != "" && !s.IsTerminal()
}

// NonTerminalStatuses are the loan states that block a new loan on the same book.
var NonTerminalStatuses = []LoanStatus{LoanRequested, LoanApproved, LoanActive}

// LentStatuses are the loan states during which the book counts as borrowed.
var LentStatuses = []LoanStatus{LoanApproved, LoanActive}

// LoanOperation identifies a mutating engine operation
type LoanOperation string

const (
	OpApprove    LoanOperation = "APPROVE"
	OpReject     LoanOperation = "REJECT"
	OpCancel     LoanOperation = "CANCEL"
	OpSetDueDate LoanOperation = "SET_DUE_DATE"
	OpReturn     LoanOperation = "RETURN"
)

// allowedTransitions maps operation -> loan states it may be applied to.
// Transition validity is a table lookup, not scattered conditionals.
var allowedTransitions = map[LoanOperation][]LoanStatus{
	OpApprove:    {LoanRequested},
	OpReject:     {LoanRequested},
	OpCancel:     {LoanRequested},
	OpSetDueDate: {LoanApproved, LoanActive},
	OpReturn:     {LoanApproved, LoanActive},
}

// CanApply reports whether op is a valid transition from the given status.
func CanApply(op LoanOperation, from LoanStatus) bool {
	for _, s := range allowedTransitions[op] {
		if s == from {
			return true
		}
	}
	return false
}

// EventType identifies a domain event emitted by the lifecycle engine
type EventType string

const (
	EventLoanRequested  EventType = "LOAN_REQUESTED"
	EventLoanApproved   EventType = "LOAN_APPROVED"
	EventLoanActivated  EventType = "LOAN_ACTIVATED"
	EventLoanRejected   EventType = "LOAN_REJECTED"
	EventLoanCancelled  EventType = "LOAN_CANCELLED"
	EventLoanReturned   EventType = "LOAN_RETURNED"
	EventLoanDueDateSet EventType = "LOAN_DUE_DATE_SET"
	EventLoanOverdue    EventType = "LOAN_OVERDUE"
)

// LoanEvent describes one loan transition. Emitted synchronously with the
// state change; delivery beyond the sink is not the engine's concern.
type LoanEvent struct {
	Type       EventType  `json:"type"`
	LoanUID    string     `json:"loan_uid"`
	BookID     uint       `json:"book_id"`
	BorrowerID uint       `json:"borrower_id"`
	LenderID   uint       `json:"lender_id"`
	Status     LoanStatus `json:"status"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
