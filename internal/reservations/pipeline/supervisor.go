package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	reserrors "innkeep/internal/reservations/errors"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

const DefaultPaymentTimeout = 15 * time.Minute

// Supervisor reclaims reservations that were never paid for. Schedule arms
// a one-shot timer per booking; when it fires, the booking is cancelled and
// its locks queued for release only if it is still pending. There is no
// manual cancellation: the timer always fires and the status check makes a
// late firing harmless, which removes the race between "cancel the timer"
// and "timer about to fire".
type Supervisor struct {
	bookings BookingStore
	queue    *Queue
	events   EventPublisher
	clock    Clock
	log      *logger.Logger

	defaultDelay time.Duration

	mu     sync.Mutex
	wg     sync.WaitGroup
	done   chan struct{}
	closed bool
}

func NewSupervisor(bookings BookingStore, queue *Queue, log *logger.Logger, defaultDelay time.Duration, clock Clock, events EventPublisher) *Supervisor {
	if defaultDelay <= 0 {
		defaultDelay = DefaultPaymentTimeout
	}
	if clock == nil {
		clock = SystemClock
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &Supervisor{
		bookings:     bookings,
		queue:        queue,
		events:       events,
		clock:        clock,
		log:          log,
		defaultDelay: defaultDelay,
		done:         make(chan struct{}),
	}
}

// Schedule arms the timeout for a booking. A non-positive delay uses the
// configured default. Safe to call concurrently; calling after Stop is a
// no-op.
func (s *Supervisor) Schedule(bookingID int64, delay time.Duration) {
	if delay <= 0 {
		delay = s.defaultDelay
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		select {
		case <-s.done:
			return
		case <-s.clock.After(delay):
			s.fire(bookingID)
		}
	}()
}

// fire runs the idempotent pending-check. Firing twice for one booking is
// tolerated: the second pass sees a terminal status and does nothing.
func (s *Supervisor) fire(bookingID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	booking, err := s.bookings.Get(ctx, bookingID)
	if errors.Is(err, reserrors.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Error("Timeout check could not load booking", "booking_id", bookingID, "error", err)
		return
	}
	if booking.Status != model.StatusPending {
		return
	}

	// Conditional on the booking still being pending: the supervisor runs
	// outside the serialized consumer, so a payment confirmed after the read
	// above must win. A no-match means the booking was already resolved.
	applied, err := s.bookings.UpdateStatus(ctx, bookingID, model.StatusPending, model.StatusCancelled, model.CancelReasonPaymentTimeout)
	if err != nil {
		s.log.Error("Timeout cancellation failed", "booking_id", bookingID, "error", err)
		return
	}
	if !applied {
		return
	}

	release := model.CommandFromBooking(model.CmdReleaseLocks, booking)
	release.CreatedAt = s.clock.Now()
	if err := s.queue.Enqueue(ctx, release); err != nil {
		s.log.Error("Failed to enqueue lock release after timeout", "booking_id", bookingID, "error", err)
		return
	}

	s.events.BookingCancelled(ctx, bookingID, model.CancelReasonPaymentTimeout)

	s.log.Info("Reservation reclaimed after payment timeout",
		"booking_id", bookingID,
		"customer_id", booking.CustomerID,
		"rooms", len(booking.RoomIDs),
	)
}

// Stop cancels all outstanding timers and waits for in-flight checks.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}
