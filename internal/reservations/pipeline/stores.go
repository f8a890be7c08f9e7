package pipeline

import (
	"context"
	"fmt"

	"innkeep/pkg/model"
)

// BookingStore is the persistence contract the pipeline consumes. The Mongo
// repository satisfies it in production; tests use a map-backed fake.
// Get returns reservations' errors.ErrNotFound for a missing booking.
// UpdateStatus is a conditional transition: it applies only when the booking
// currently holds the from status and reports whether it did. A status check
// followed by an unconditional write would let the timeout supervisor, which
// runs outside the serialized consumer, overwrite a concurrent confirmation.
type BookingStore interface {
	Get(ctx context.Context, bookingID int64) (*model.Booking, error)
	Save(ctx context.Context, booking *model.Booking) error
	Delete(ctx context.Context, bookingID int64) error
	UpdateStatus(ctx context.Context, bookingID int64, from, to model.BookingStatus, reason string) (bool, error)
}

// EventPublisher receives booking lifecycle notifications after the
// processor has applied a transition. Publishing is fire-and-forget from the
// pipeline's point of view; failures are the publisher's to log.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, bookingID int64, reason string)
}

// NopPublisher is used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) BookingConfirmed(context.Context, *model.Booking) {}
func (NopPublisher) BookingCancelled(context.Context, int64, string)  {}

// DepositKey addresses the payment-staging cache entry for one booking.
func DepositKey(bookingID int64) string {
	return fmt.Sprintf("deposit:%d", bookingID)
}
