package services

import (
	"context"

	"shelfshare/internal/core/domain"
)

// EventSink consumes domain events emitted by the loan lifecycle engine.
// Publish is called synchronously after the emitting transaction commits;
// implementations must not block on delivery.
type EventSink interface {
	Publish(ctx context.Context, event domain.LoanEvent)
}

// EventSinkFunc adapts a function to the EventSink interface
type EventSinkFunc func(ctx context.Context, event domain.LoanEvent)

// Publish implements EventSink
func (f EventSinkFunc) Publish(ctx context.Context, event domain.LoanEvent) {
	f(ctx, event)
}
