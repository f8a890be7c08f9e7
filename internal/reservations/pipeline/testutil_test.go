package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"innkeep/pkg/lockstore"
	"innkeep/pkg/model"

	reserrors "innkeep/internal/reservations/errors"
)

// immediateClock records requested delays and fires every wait instantly,
// so retry sequences run without wall-clock time.
type immediateClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *immediateClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *immediateClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *immediateClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// manualClock parks every wait until the test fires it.
type manualClock struct {
	mu      sync.Mutex
	waiters []chan time.Time
}

func (c *manualClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *manualClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

// Fire releases all parked waits.
func (c *manualClock) Fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		ch <- c.Now()
	}
	c.waiters = nil
}

func (c *manualClock) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// fakeBookings is a map-backed BookingStore with injectable failures.
// afterGet, when set, runs after a successful read with the lock dropped;
// tests use it to mutate state inside a read-then-write window.
type fakeBookings struct {
	mu        sync.Mutex
	rows      map[int64]*model.Booking
	getErr    error
	saveErr   error
	deleteErr error
	updateErr error
	getCalls  int
	afterGet  func(id int64)
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{rows: make(map[int64]*model.Booking)}
}

func (f *fakeBookings) Get(_ context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	f.getCalls++
	if f.getErr != nil {
		err := f.getErr
		f.mu.Unlock()
		return nil, err
	}
	b, ok := f.rows[id]
	if !ok {
		f.mu.Unlock()
		return nil, reserrors.ErrNotFound
	}
	cp := *b
	hook := f.afterGet
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeBookings) Save(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeBookings) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return reserrors.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id int64, from, to model.BookingStatus, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	b, ok := f.rows[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if to == model.StatusCancelled {
		b.CancelReason = reason
	}
	return true, nil
}

func (f *fakeBookings) setStatus(id int64, status model.BookingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[id]; ok {
		b.Status = status
	}
}

func (f *fakeBookings) get(id int64) (*model.Booking, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// capturePublisher records lifecycle events.
type capturePublisher struct {
	mu        sync.Mutex
	confirmed []int64
	cancelled map[int64]string
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{cancelled: make(map[int64]string)}
}

func (p *capturePublisher) BookingConfirmed(_ context.Context, b *model.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, b.ID)
}

func (p *capturePublisher) BookingCancelled(_ context.Context, id int64, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled[id] = reason
}

func (p *capturePublisher) confirmedCount(id int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.confirmed {
		if got == id {
			n++
		}
	}
	return n
}

func (p *capturePublisher) cancelReason(id int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reason, ok := p.cancelled[id]
	return reason, ok
}

var errTransient = errors.New("store briefly unreachable")

// flakyLocks fails Release a set number of times before delegating.
type flakyLocks struct {
	lockstore.LockStore
	mu           sync.Mutex
	releaseFails int
}

func (f *flakyLocks) Release(ctx context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	if f.releaseFails > 0 {
		f.releaseFails--
		f.mu.Unlock()
		return false, errTransient
	}
	f.mu.Unlock()
	return f.LockStore.Release(ctx, key, token)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never held: %s", msg)
}
