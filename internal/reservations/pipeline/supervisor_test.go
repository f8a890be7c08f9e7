package pipeline

import (
	"context"
	"testing"
	"time"

	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

func TestSupervisorReclaimsPendingBooking(t *testing.T) {
	bookings := newFakeBookings()
	queue := NewQueue(10)
	events := newCapturePublisher()
	clock := &manualClock{}

	sup := NewSupervisor(bookings, queue, logger.Discard(), 15*time.Minute, clock, events)
	t.Cleanup(sup.Stop)

	b := pendingBooking(1, "token-a")
	if err := bookings.Save(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	sup.Schedule(1, 15*time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "timer armed")
	clock.Fire()

	waitFor(t, func() bool {
		row, ok := bookings.get(1)
		return ok && row.Status == model.StatusCancelled
	}, "booking cancelled on timeout")

	row, _ := bookings.get(1)
	if row.CancelReason != model.CancelReasonPaymentTimeout {
		t.Fatalf("expected reason %q, got %q", model.CancelReasonPaymentTimeout, row.CancelReason)
	}

	cmd, ok := queue.Dequeue(context.Background())
	if !ok || cmd.Kind != model.CmdReleaseLocks {
		t.Fatalf("expected release command, got %+v ok=%v", cmd, ok)
	}
	if cmd.BookingID != 1 || cmd.LockToken != "token-a" {
		t.Fatalf("release command carries wrong identity: %+v", cmd)
	}

	if reason, _ := events.cancelReason(1); reason != model.CancelReasonPaymentTimeout {
		t.Fatalf("expected timeout cancelled event, got %q", reason)
	}
}

func TestSupervisorLeavesNonPendingAlone(t *testing.T) {
	for _, status := range []model.BookingStatus{model.StatusConfirmed, model.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			bookings := newFakeBookings()
			queue := NewQueue(10)
			clock := &manualClock{}

			sup := NewSupervisor(bookings, queue, logger.Discard(), time.Minute, clock, nil)
			t.Cleanup(sup.Stop)

			b := pendingBooking(2, "token-a")
			b.Status = status
			if err := bookings.Save(context.Background(), b); err != nil {
				t.Fatal(err)
			}

			sup.Schedule(2, time.Minute)
			waitFor(t, func() bool { return clock.Waiting() == 1 }, "timer armed")
			clock.Fire()

			// The firing is asynchronous; wait for the Get before asserting.
			waitFor(t, func() bool {
				bookings.mu.Lock()
				defer bookings.mu.Unlock()
				return bookings.getCalls >= 1
			}, "timeout check ran")

			row, _ := bookings.get(2)
			if row.Status != status {
				t.Fatalf("status changed from %s to %s", status, row.Status)
			}
			if got := queue.Pending(); got != 0 {
				t.Fatalf("no command expected, queue has %d", got)
			}
		})
	}
}

func TestSupervisorMissingBookingIsNoop(t *testing.T) {
	bookings := newFakeBookings()
	queue := NewQueue(10)
	clock := &manualClock{}

	sup := NewSupervisor(bookings, queue, logger.Discard(), time.Minute, clock, nil)
	t.Cleanup(sup.Stop)

	sup.Schedule(99, time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "timer armed")
	clock.Fire()

	waitFor(t, func() bool {
		bookings.mu.Lock()
		defer bookings.mu.Unlock()
		return bookings.getCalls >= 1
	}, "timeout check ran")

	if got := queue.Pending(); got != 0 {
		t.Fatalf("no command expected, queue has %d", got)
	}
}

// Two timers for one booking may both fire; the pending check makes the
// second a no-op.
func TestSupervisorDoubleFireTolerated(t *testing.T) {
	bookings := newFakeBookings()
	queue := NewQueue(10)
	clock := &manualClock{}

	sup := NewSupervisor(bookings, queue, logger.Discard(), time.Minute, clock, nil)
	t.Cleanup(sup.Stop)

	b := pendingBooking(3, "token-a")
	if err := bookings.Save(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	sup.Schedule(3, time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "first timer armed")
	clock.Fire()
	waitFor(t, func() bool {
		row, ok := bookings.get(3)
		return ok && row.Status == model.StatusCancelled
	}, "first firing cancelled the booking")

	sup.Schedule(3, time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "second timer armed")
	clock.Fire()
	waitFor(t, func() bool {
		bookings.mu.Lock()
		defer bookings.mu.Unlock()
		return bookings.getCalls >= 2
	}, "second firing ran")

	if got := queue.Pending(); got != 1 {
		t.Fatalf("expected exactly one release command, got %d", got)
	}
}

// A payment confirmed between the supervisor's status read and its write
// must win: the conditional update matches nothing and the booking stays
// confirmed.
func TestSupervisorConfirmDuringTimeoutCheckWins(t *testing.T) {
	bookings := newFakeBookings()
	queue := NewQueue(10)
	events := newCapturePublisher()
	clock := &manualClock{}

	sup := NewSupervisor(bookings, queue, logger.Discard(), time.Minute, clock, events)
	t.Cleanup(sup.Stop)

	b := pendingBooking(6, "token-a")
	if err := bookings.Save(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	// Confirm the booking right after the supervisor reads it as pending,
	// inside the window before its cancellation write.
	bookings.mu.Lock()
	bookings.afterGet = func(id int64) {
		bookings.setStatus(id, model.StatusConfirmed)
	}
	bookings.mu.Unlock()

	sup.Schedule(6, time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "timer armed")
	clock.Fire()

	// Stop waits for the in-flight check, so the assertions see its outcome.
	sup.Stop()

	row, _ := bookings.get(6)
	if row.Status != model.StatusConfirmed {
		t.Fatalf("confirmed booking overwritten by the timeout: status=%s reason=%q", row.Status, row.CancelReason)
	}
	if got := queue.Pending(); got != 0 {
		t.Fatalf("no release command expected, queue has %d", got)
	}
	if _, cancelled := events.cancelReason(6); cancelled {
		t.Fatal("no cancelled event expected for a confirmed booking")
	}
}

func TestSupervisorStopCancelsTimers(t *testing.T) {
	bookings := newFakeBookings()
	queue := NewQueue(10)
	clock := &manualClock{}

	sup := NewSupervisor(bookings, queue, logger.Discard(), time.Minute, clock, nil)

	b := pendingBooking(4, "token-a")
	if err := bookings.Save(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	sup.Schedule(4, time.Minute)
	waitFor(t, func() bool { return clock.Waiting() == 1 }, "timer armed")

	sup.Stop()
	clock.Fire()

	time.Sleep(20 * time.Millisecond)
	row, _ := bookings.get(4)
	if row.Status != model.StatusPending {
		t.Fatalf("stopped supervisor must not fire, status = %s", row.Status)
	}

	// Scheduling after Stop is accepted and does nothing.
	sup.Schedule(5, time.Minute)
}
