// Package pipeline is the reservation concurrency core: a bounded command
// queue with a single consumer that serializes all room-inventory mutations,
// plus a delayed-timeout supervisor that reclaims unpaid reservations.
package pipeline

import (
	"context"
	"sync"
	"time"

	"innkeep/pkg/cache"
	"innkeep/pkg/lockstore"
	"innkeep/pkg/logger"
	"innkeep/pkg/model"
)

// Pipeline wires queue, processor and supervisor into one explicitly
// constructed unit with a start/stop lifecycle. Whatever owns the process
// lifetime owns the pipeline; there is no package-level instance.
type Pipeline struct {
	queue      *Queue
	processor  *Processor
	supervisor *Supervisor
	log        *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	running bool
}

type Config struct {
	QueueCapacity  int
	MaxRetries     int
	BackoffBase    time.Duration
	PaymentTimeout time.Duration
	Clock          Clock
	Events         EventPublisher
}

func New(
	bookings BookingStore,
	locks lockstore.LockStore,
	deposits cache.Store,
	log *logger.Logger,
	cfg Config,
) *Pipeline {
	queue := NewQueue(cfg.QueueCapacity)
	processor := NewProcessor(queue, bookings, locks, deposits, log, ProcessorConfig{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		Clock:       cfg.Clock,
		Events:      cfg.Events,
	})
	supervisor := NewSupervisor(bookings, queue, log, cfg.PaymentTimeout, cfg.Clock, cfg.Events)

	return &Pipeline{
		queue:      queue,
		processor:  processor,
		supervisor: supervisor,
		log:        log,
	}
}

// Start launches the consumer loop. Calling Start twice is an error in the
// caller's lifecycle and is ignored with a log line.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.log.Warn("Pipeline start ignored: already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = make(chan struct{})
	p.running = true

	go func() {
		defer close(p.stopped)
		p.processor.Run(runCtx)
	}()
}

// Stop halts the consumer and all outstanding timeout timers, waiting for
// both to wind down. Commands left in the queue stay there; in-flight work
// finishes its current step.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, stopped := p.cancel, p.stopped
	p.mu.Unlock()

	cancel()
	<-stopped
	p.supervisor.Stop()
	p.log.Info("Pipeline stopped", "pending_commands", p.queue.Pending())
}

// Enqueue submits a command to the tail of the queue, blocking under
// backpressure. Fire-and-forget from the producer's perspective: failures
// during processing never propagate back here.
func (p *Pipeline) Enqueue(ctx context.Context, cmd *model.ReservationCommand) error {
	return p.queue.Enqueue(ctx, cmd)
}

// ScheduleTimeout arms the payment-timeout timer for a booking.
func (p *Pipeline) ScheduleTimeout(bookingID int64, delay time.Duration) {
	p.supervisor.Schedule(bookingID, delay)
}

func (p *Pipeline) Stats() Stats {
	return p.processor.Stats()
}
