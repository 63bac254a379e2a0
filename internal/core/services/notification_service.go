package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"
)

// NotificationService is the default EventSink: it turns domain events into
// per-user notification rows and optionally pushes each message through
// LINE Notify when a token is configured.
type NotificationService struct {
	notificationRepo *repositories.NotificationRepository
	lineNotifyToken  string
	pushEnabled      bool
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo *repositories.NotificationRepository) *NotificationService {
	token := os.Getenv("LINE_NOTIFY_TOKEN")
	return &NotificationService{
		notificationRepo: notificationRepo,
		lineNotifyToken:  token,
		pushEnabled:      token != "",
	}
}

// Publish implements EventSink
func (s *NotificationService) Publish(ctx context.Context, event domain.LoanEvent) {
	for _, recipient := range recipients(event) {
		message := messageFor(event, recipient == event.BorrowerID)

		n := &models.Notification{
			UserID:  recipient,
			Event:   event.Type,
			LoanUID: event.LoanUID,
			Message: message,
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			log.Printf("❌ Failed to store notification for user %d: %v", recipient, err)
		}

		s.sendLineNotify(message)
	}
}

// recipients decides who gets told about an event. Requests notify the
// lender, decisions notify the borrower, returns and overdue notices both.
func recipients(event domain.LoanEvent) []uint {
	switch event.Type {
	case domain.EventLoanRequested, domain.EventLoanCancelled:
		return []uint{event.LenderID}
	case domain.EventLoanApproved, domain.EventLoanRejected,
		domain.EventLoanActivated, domain.EventLoanDueDateSet:
		return []uint{event.BorrowerID}
	case domain.EventLoanReturned, domain.EventLoanOverdue:
		return []uint{event.BorrowerID, event.LenderID}
	}
	return nil
}

func messageFor(event domain.LoanEvent, forBorrower bool) string {
	switch event.Type {
	case domain.EventLoanRequested:
		return fmt.Sprintf("📚 New loan request for your book (loan %s)", event.LoanUID)
	case domain.EventLoanApproved:
		return fmt.Sprintf("✅ Your loan request was approved (loan %s)", event.LoanUID)
	case domain.EventLoanRejected:
		return fmt.Sprintf("❌ Your loan request was rejected (loan %s)", event.LoanUID)
	case domain.EventLoanCancelled:
		return fmt.Sprintf("🚫 A loan request for your book was cancelled (loan %s)", event.LoanUID)
	case domain.EventLoanActivated:
		return fmt.Sprintf("📅 Your loan is active, due %s (loan %s)", event.DueDate.Format("2006-01-02"), event.LoanUID)
	case domain.EventLoanDueDateSet:
		return fmt.Sprintf("📅 Due date moved to %s (loan %s)", event.DueDate.Format("2006-01-02"), event.LoanUID)
	case domain.EventLoanReturned:
		if forBorrower {
			return fmt.Sprintf("📦 Return confirmed, thanks for bringing it back (loan %s)", event.LoanUID)
		}
		return fmt.Sprintf("📦 Your book is back on the shelf (loan %s)", event.LoanUID)
	case domain.EventLoanOverdue:
		if forBorrower {
			return fmt.Sprintf("⏰ Your borrowed book is overdue, was due %s (loan %s)", event.DueDate.Format("2006-01-02"), event.LoanUID)
		}
		return fmt.Sprintf("⏰ Your lent book is overdue, was due %s (loan %s)", event.DueDate.Format("2006-01-02"), event.LoanUID)
	}
	return string(event.Type)
}

// sendLineNotify pushes a message via LINE Notify, best effort
func (s *NotificationService) sendLineNotify(message string) {
	if !s.pushEnabled {
		return
	}

	data := url.Values{}
	data.Set("message", message)

	req, err := http.NewRequest("POST", "https://notify-api.line.me/api/notify", bytes.NewBufferString(data.Encode()))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.lineNotifyToken)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("❌ LINE Notify push failed: %v", err)
		return
	}
	defer resp.Body.Close()
}
