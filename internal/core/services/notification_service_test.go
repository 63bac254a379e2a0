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
)

func TestRecipients(t *testing.T) {
	e := domain.LoanEvent{BorrowerID: 1, LenderID: 2}

	e.Type = domain.EventLoanRequested
	assert.Equal(t, []uint{2}, recipients(e))

	e.Type = domain.EventLoanCancelled
	assert.Equal(t, []uint{2}, recipients(e))

	e.Type = domain.EventLoanApproved
	assert.Equal(t, []uint{1}, recipients(e))

	e.Type = domain.EventLoanRejected
	assert.Equal(t, []uint{1}, recipients(e))

	e.Type = domain.EventLoanReturned
	assert.Equal(t, []uint{1, 2}, recipients(e))

	e.Type = domain.EventLoanOverdue
	assert.Equal(t, []uint{1, 2}, recipients(e))
}

func TestPublishStoresNotifications(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewNotificationRepository(db)
	svc := NewNotificationService(repo)

	due := time.Now().AddDate(0, 0, -1)
	svc.Publish(context.Background(), domain.LoanEvent{
		Type:       domain.EventLoanOverdue,
		LoanUID:    "loan-1",
		BorrowerID: 1,
		LenderID:   2,
		Status:     domain.LoanActive,
		DueDate:    &due,
		OccurredAt: time.Now(),
	})

	// Overdue notices go to both sides
	var stored []models.Notification
	require.NoError(t, db.Order("user_id ASC").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, uint(1), stored[0].UserID)
	assert.Equal(t, uint(2), stored[1].UserID)
	assert.Equal(t, "loan-1", stored[0].LoanUID)
	assert.NotEqual(t, stored[0].Message, stored[1].Message)
	assert.False(t, stored[0].IsRead)
}
