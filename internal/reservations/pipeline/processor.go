package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	reserrors "innkeep/internal/reservations/errors"
	"innkeep/pkg/cache"
	"innkeep/pkg/lockstore"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
)

// Processor is the single consumer of the reservation queue. One goroutine
// runs the loop; all booking-affecting commands are serialized through it,
// which is what keeps two commands for the same room from racing. A backoff
// wait therefore delays every command behind it, an accepted tradeoff at
// this volume.
type Processor struct {
	queue    *Queue
	bookings BookingStore
	locks    lockstore.LockStore
	deposits cache.Store
	events   EventPublisher
	clock    Clock
	log      *logger.Logger

	maxRetries  int
	backoffBase time.Duration

	processed atomic.Int64
	dropped   atomic.Int64
}

type ProcessorConfig struct {
	MaxRetries  int           // retry ceiling per command, default 3
	BackoffBase time.Duration // backoff unit, delay = base << retryCount, default 1s
	Clock       Clock
	Events      EventPublisher
}

func NewProcessor(
	queue *Queue,
	bookings BookingStore,
	locks lockstore.LockStore,
	deposits cache.Store,
	log *logger.Logger,
	cfg ProcessorConfig,
) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Events == nil {
		cfg.Events = NopPublisher{}
	}

	return &Processor{
		queue:       queue,
		bookings:    bookings,
		locks:       locks,
		deposits:    deposits,
		events:      cfg.Events,
		clock:       cfg.Clock,
		log:         log,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
	}
}

// Run consumes commands until ctx is cancelled. The loop observes
// cancellation at the dequeue wait, during a backoff wait, and between
// dispatches; an in-flight handler finishes its current step.
func (p *Processor) Run(ctx context.Context) {
	p.log.Info("Reservation processor started",
		"queue_capacity", p.queue.Capacity(),
		"max_retries", p.maxRetries,
	)

	for {
		cmd, ok := p.queue.Dequeue(ctx)
		if !ok {
			p.log.Info("Reservation processor stopped", "processed", p.processed.Load())
			return
		}

		if err := p.dispatch(ctx, cmd); err != nil {
			p.handleFailure(ctx, cmd, err)
		}
		p.processed.Add(1)
	}
}

func (p *Processor) dispatch(ctx context.Context, cmd *model.ReservationCommand) error {
	switch cmd.Kind {
	case model.CmdCreateBooking:
		return p.handleCreate(ctx, cmd)
	case model.CmdConfirmPayment:
		return p.handleConfirm(ctx, cmd)
	case model.CmdCancelBooking:
		return p.handleCancel(ctx, cmd)
	case model.CmdReleaseLocks:
		return p.releaseLocks(ctx, cmd)
	default:
		p.log.Error("Unknown command kind dropped", "kind", cmd.Kind, "booking_id", cmd.BookingID)
		return nil
	}
}

// handleCreate re-verifies that this reservation still owns every room lock.
// The booking row itself was persisted on the synchronous request path
// before the command was enqueued; this pass is an integrity check. An
// ownership mismatch means another party resolved the reservation, so the
// attempt is abandoned and a compensating cancel is enqueued instead of a
// retry.
func (p *Processor) handleCreate(ctx context.Context, cmd *model.ReservationCommand) error {
	for _, roomID := range cmd.RoomIDs {
		key := lockstore.RoomKey(roomID, cmd.CheckIn, cmd.CheckOut)
		owner, err := p.locks.OwnerOf(ctx, key)
		if err != nil {
			return fmt.Errorf("verify lock for room %d: %w", roomID, err)
		}
		if owner != cmd.LockToken {
			return fmt.Errorf("room %d owner mismatch: %w", roomID, reserrors.ErrLockInvalid)
		}
	}

	p.log.Debug("Booking locks verified",
		"booking_id", cmd.BookingID,
		"rooms", len(cmd.RoomIDs),
	)
	return nil
}

func (p *Processor) handleConfirm(ctx context.Context, cmd *model.ReservationCommand) error {
	booking, err := p.bookings.Get(ctx, cmd.BookingID)
	if errors.Is(err, reserrors.ErrNotFound) {
		// Already cancelled and removed by a prior attempt; confirming is a no-op.
		p.log.Info("Payment confirmation for missing booking dropped", "booking_id", cmd.BookingID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load booking %d: %w", cmd.BookingID, err)
	}

	transitioned := false
	if booking.Status == model.StatusPending {
		applied, err := p.bookings.UpdateStatus(ctx, cmd.BookingID, model.StatusPending, model.StatusConfirmed, "")
		if err != nil {
			return fmt.Errorf("confirm booking %d: %w", cmd.BookingID, err)
		}
		// Not applied means the timeout supervisor cancelled the booking
		// between the read and the write; the release below is still safe.
		if applied {
			booking.Status = model.StatusConfirmed
			transitioned = true
		}
	}

	if err := p.releaseLocks(ctx, cmd); err != nil {
		return err
	}
	if err := p.deposits.Delete(ctx, DepositKey(cmd.BookingID)); err != nil {
		return fmt.Errorf("clear deposit for booking %d: %w", cmd.BookingID, err)
	}

	if transitioned {
		p.events.BookingConfirmed(ctx, booking)
	}
	p.log.Info("Booking confirmed", "booking_id", cmd.BookingID, "customer_id", cmd.CustomerID)
	return nil
}

// handleCancel is safe to run twice: every step tolerates already-applied
// state (released lock, deleted row, missing deposit entry).
func (p *Processor) handleCancel(ctx context.Context, cmd *model.ReservationCommand) error {
	if err := p.releaseLocks(ctx, cmd); err != nil {
		return err
	}

	booking, err := p.bookings.Get(ctx, cmd.BookingID)
	switch {
	case errors.Is(err, reserrors.ErrNotFound):
		// Already gone.
	case err != nil:
		return fmt.Errorf("load booking %d: %w", cmd.BookingID, err)
	case booking.Status != model.StatusConfirmed:
		if err := p.bookings.Delete(ctx, cmd.BookingID); err != nil && !errors.Is(err, reserrors.ErrNotFound) {
			return fmt.Errorf("delete booking %d: %w", cmd.BookingID, err)
		}
		// The compensating path stamps its reason on the command; a guest
		// cancellation carries none.
		reason := cmd.Reason
		if reason == "" {
			reason = model.CancelReasonGuest
		}
		p.events.BookingCancelled(ctx, cmd.BookingID, reason)
	}

	if err := p.deposits.Delete(ctx, DepositKey(cmd.BookingID)); err != nil {
		return fmt.Errorf("clear deposit for booking %d: %w", cmd.BookingID, err)
	}

	p.log.Info("Booking cancel applied", "booking_id", cmd.BookingID)
	return nil
}

func (p *Processor) releaseLocks(ctx context.Context, cmd *model.ReservationCommand) error {
	for _, roomID := range cmd.RoomIDs {
		key := lockstore.RoomKey(roomID, cmd.CheckIn, cmd.CheckOut)
		released, err := p.locks.Release(ctx, key, cmd.LockToken)
		if err != nil {
			return fmt.Errorf("release lock for room %d: %w", roomID, err)
		}
		if !released {
			// Already released, expired, or taken over; nothing to do.
			p.log.Debug("Lock release was a no-op", "booking_id", cmd.BookingID, "room_id", roomID)
		}
	}
	return nil
}

// handleFailure applies the retry policy. Lock-ownership failures are never
// retried: the reservation is no longer valid, so a compensating cancel is
// enqueued to avoid half-applied state. Anything else is treated as
// transient and re-enqueued with exponential backoff until the ceiling.
// Release commands are exempt from the ceiling because a leaked lock blocks
// a room indefinitely, which is worse than a stale booking row.
// Re-enqueues never block: the consumer is the only drainer, so waiting on
// a full queue here would wedge the loop against itself. A command that
// finds no room is dropped onto the counter; leaked locks expire by TTL.
func (p *Processor) handleFailure(ctx context.Context, cmd *model.ReservationCommand, err error) {
	if errors.Is(err, reserrors.ErrLockInvalid) {
		p.log.Warn("Reservation lost its locks, cancelling",
			"booking_id", cmd.BookingID,
			"kind", cmd.Kind,
			"error", err,
		)
		cancel := &model.ReservationCommand{
			Kind:             model.CmdCancelBooking,
			BookingID:        cmd.BookingID,
			CustomerID:       cmd.CustomerID,
			RoomIDs:          cmd.RoomIDs,
			CheckIn:          cmd.CheckIn,
			CheckOut:         cmd.CheckOut,
			TotalAmountCents: cmd.TotalAmountCents,
			Type:             cmd.Type,
			CreatedAt:        p.clock.Now(),
			LockToken:        cmd.LockToken,
			Reason:           model.CancelReasonLockInvalid,
		}
		if !p.queue.TryEnqueue(cancel) {
			p.dropped.Add(1)
			p.log.Error("Compensating cancel dropped: queue full", "booking_id", cmd.BookingID)
		}
		return
	}

	if cmd.RetryCount >= p.maxRetries && cmd.Kind != model.CmdReleaseLocks {
		// Terminal. No dead-letter store exists; the counter and this log
		// line are the alert surface.
		p.dropped.Add(1)
		p.log.Error("Command dropped after exhausting retries",
			"booking_id", cmd.BookingID,
			"kind", cmd.Kind,
			"attempts", cmd.RetryCount+1,
			"error", err,
		)
		return
	}

	cmd.RetryCount++
	delay := p.backoff(cmd.RetryCount)
	p.log.Warn("Command failed, retrying",
		"booking_id", cmd.BookingID,
		"kind", cmd.Kind,
		"retry", cmd.RetryCount,
		"delay", delay,
		"error", err,
	)

	select {
	case <-ctx.Done():
		// Shutting down; do not retry past shutdown.
		return
	case <-p.clock.After(delay):
	}

	if !p.queue.TryEnqueue(cmd) {
		p.dropped.Add(1)
		p.log.Error("Retry dropped: queue full",
			"booking_id", cmd.BookingID,
			"kind", cmd.Kind,
			"retry", cmd.RetryCount,
		)
	}
}

// backoff returns base << retry, capped so ceiling-exempt release commands
// do not grow unbounded: 2s, 4s, 8s, ... with the default base.
func (p *Processor) backoff(retry int) time.Duration {
	if retry > 6 {
		retry = 6
	}
	return p.backoffBase << uint(retry)
}

// Stats reports counters for the observability surface.
type Stats struct {
	Pending   int   `json:"pending"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
}

func (p *Processor) Stats() Stats {
	return Stats{
		Pending:   p.queue.Pending(),
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
	}
}
