package services

import (
	"context"
	"log"
	"time"

	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"

	"github.com/robfig/cron/v3"
)

// OverdueService is the overdue scanner. It runs on a cron schedule, reads
// active loans past their due date and emits LoanOverdue events. It never
// mutates loan status: being overdue is derived, not stored.
type OverdueService struct {
	loanRepo *repositories.LoanRepository
	sink     EventSink
	cron     *cron.Cron
	schedule string
	now      func() time.Time
}

// NewOverdueService creates a new overdue scanner running once per day
func NewOverdueService(loanRepo *repositories.LoanRepository, sink EventSink) *OverdueService {
	return &OverdueService{
		loanRepo: loanRepo,
		sink:     sink,
		cron:     cron.New(),
		schedule: "@daily",
		now:      time.Now,
	}
}

// Start schedules the daily sweep and runs one immediately
func (s *OverdueService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("🚀 Overdue scanner started (daily)")

	go s.Sweep(context.Background())
	return nil
}

// Stop stops the cron scheduler, waiting for a running sweep to finish
func (s *OverdueService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Overdue scanner stopped")
}

// Sweep emits one LoanOverdue event per overdue loan, at most once per loan
// per calendar day. Reads are allowed to be slightly stale; the sweep is
// advisory and never blocks lifecycle writers.
func (s *OverdueService) Sweep(ctx context.Context) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	loans, err := s.loanRepo.ListOverdue(ctx, now, startOfDay)
	if err != nil {
		log.Printf("❌ Overdue sweep query error: %v", err)
		return
	}

	for _, loan := range loans {
		if s.sink != nil {
			s.sink.Publish(ctx, domain.LoanEvent{
				Type:       domain.EventLoanOverdue,
				LoanUID:    loan.LoanUID,
				BookID:     loan.BookID,
				BorrowerID: loan.BorrowerID,
				LenderID:   loan.LenderID,
				Status:     loan.Status,
				DueDate:    loan.DueDate,
				OccurredAt: now,
			})
		}

		if err := s.loanRepo.MarkOverdueNotified(ctx, loan.ID, now); err != nil {
			log.Printf("❌ Overdue mark error for loan %s: %v", loan.LoanUID, err)
		}
	}

	if len(loans) > 0 {
		log.Printf("⏰ Overdue sweep: %d loan(s) past due", len(loans))
	}
}
