// Package events publishes booking lifecycle events to Kafka.
// Publishing is best effort: a broker failure is logged and swallowed so
// it never blocks or retries the command that produced it.
package events

import (
	"context"
	"strconv"
	"time"

	"innkeep/pkg/kafka"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"

	sourceService = "reservations"
)

// BookingConfirmedEvent is emitted once when a booking transitions to confirmed.
type BookingConfirmedEvent struct {
	BookingID        int64     `json:"booking_id"`
	CustomerID       int64     `json:"customer_id"`
	RoomIDs          []int64   `json:"room_ids"`
	CheckIn          time.Time `json:"check_in"`
	CheckOut         time.Time `json:"check_out"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// BookingCancelledEvent is emitted when a booking is cancelled or reclaimed.
type BookingCancelledEvent struct {
	BookingID   int64     `json:"booking_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Publisher writes lifecycle events keyed by booking id so events for the
// same booking land on the same partition in order.
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log.With("component", "events"),
	}
}

func (p *Publisher) BookingConfirmed(ctx context.Context, booking *model.Booking) {
	event := BookingConfirmedEvent{
		BookingID:        booking.ID,
		CustomerID:       booking.CustomerID,
		RoomIDs:          booking.RoomIDs,
		CheckIn:          booking.CheckIn,
		CheckOut:         booking.CheckOut,
		TotalAmountCents: booking.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC(),
	}
	p.publish(ctx, booking.ID, EventBookingConfirmed, event)
}

func (p *Publisher) BookingCancelled(ctx context.Context, bookingID int64, reason string) {
	event := BookingCancelledEvent{
		BookingID:   bookingID,
		Reason:      reason,
		CancelledAt: time.Now().UTC(),
	}
	p.publish(ctx, bookingID, EventBookingCancelled, event)
}

func (p *Publisher) publish(ctx context.Context, bookingID int64, eventType string, payload any) {
	msg := kafka.NewMessage().
		WithKey(strconv.FormatInt(bookingID, 10)).
		WithValue(payload).
		WithEventType(eventType).
		WithSource(sourceService).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish event",
			"event_type", eventType,
			"booking_id", bookingID,
			"error", err,
		)
	}
}
