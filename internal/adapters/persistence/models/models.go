package models

import (
	"time"

	"shelfshare/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Users
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ============================================================
// Books
// ============================================================

// Book represents books table. Status is derived from loans and is
// mutated only through the loan lifecycle engine.
type Book struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	OwnerID   uint              `gorm:"not null;index" json:"owner_id"`
	Title     string            `gorm:"size:200;not null" json:"title"`
	Author    string            `gorm:"size:100" json:"author"`
	Status    domain.BookStatus `gorm:"size:20;not null;default:'AVAILABLE'" json:"status"`
	Version   uint              `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt    `gorm:"index" json:"-"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Book) TableName() string {
	return "books"
}

// ============================================================
// Loans
// ============================================================

// Loan represents loans table. LenderID is captured from the book owner at
// request time so the record survives later ownership changes.
type Loan struct {
	ID                    uint              `gorm:"primaryKey" json:"id"`
	LoanUID               string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"loan_uid"`
	BookID                uint              `gorm:"not null;index" json:"book_id"`
	BorrowerID            uint              `gorm:"not null;index" json:"borrower_id"`
	LenderID              uint              `gorm:"not null;index" json:"lender_id"`
	Status                domain.LoanStatus `gorm:"size:20;not null;index" json:"status"`
	RequestedAt           time.Time         `gorm:"not null" json:"requested_at"`
	ApprovedAt            *time.Time        `json:"approved_at"`
	DueDate               *time.Time        `json:"due_date"`
	ReturnedAt            *time.Time        `json:"returned_at"`
	LastOverdueNotifiedAt *time.Time        `json:"-"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Book     *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Borrower *User `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Lender   *User `gorm:"foreignKey:LenderID" json:"lender,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// LoanResponse DTO
type LoanResponse struct {
	LoanUID      string            `json:"loan_uid"`
	BookID       uint              `json:"book_id"`
	BookTitle    string            `json:"book_title,omitempty"`
	BorrowerID   uint              `json:"borrower_id"`
	BorrowerName string            `json:"borrower_name,omitempty"`
	LenderID     uint              `json:"lender_id"`
	LenderName   string            `json:"lender_name,omitempty"`
	Status       domain.LoanStatus `json:"status"`
	ChatOpen     bool              `json:"chat_open"`
	RequestedAt  time.Time         `json:"requested_at"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	DueDate      *time.Time        `json:"due_date,omitempty"`
	ReturnedAt   *time.Time        `json:"returned_at,omitempty"`
}

func (l *Loan) ToResponse() *LoanResponse {
	resp := &LoanResponse{
		LoanUID:     l.LoanUID,
		BookID:      l.BookID,
		BorrowerID:  l.BorrowerID,
		LenderID:    l.LenderID,
		Status:      l.Status,
		ChatOpen:    l.Status.IsChatOpen(),
		RequestedAt: l.RequestedAt,
		ApprovedAt:  l.ApprovedAt,
		DueDate:     l.DueDate,
		ReturnedAt:  l.ReturnedAt,
	}

	if l.Book != nil {
		resp.BookTitle = l.Book.Title
	}
	if l.Borrower != nil {
		resp.BorrowerName = l.Borrower.Username
	}
	if l.Lender != nil {
		resp.LenderName = l.Lender.Username
	}

	return resp
}

// LoanTransition is one history row per loan mutation
type LoanTransition struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	LoanID      uint              `gorm:"not null;index" json:"loan_id"`
	Event       domain.EventType  `gorm:"size:30;not null" json:"event"`
	FromStatus  domain.LoanStatus `gorm:"size:20" json:"from_status"`
	ToStatus    domain.LoanStatus `gorm:"size:20;not null" json:"to_status"`
	PerformedBy uint              `json:"performed_by"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`

	Loan *Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}

func (LoanTransition) TableName() string {
	return "loan_transitions"
}

// ============================================================
// Notifications
// ============================================================

// Notification represents notifications table, written by the default event sink
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Event     domain.EventType `gorm:"size:30;not null" json:"event"`
	LoanUID   string           `gorm:"type:varchar(36);index" json:"loan_uid"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Book{},
		&Loan{},
		&LoanTransition{},
		&Notification{},
	)
}
