package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	reserrors "innkeep/internal/reservations/errors"
	"innkeep/internal/reservations/pipeline"
	"innkeep/internal/reservations/repository"
	"innkeep/internal/reservations/validator"
	"innkeep/pkg/cache"
	"innkeep/pkg/config"
	apperrors "innkeep/pkg/errors"
	"innkeep/pkg/idgen"
	"innkeep/pkg/lockstore"
	"innkeep/pkg/model"

	"github.com/google/uuid"
)

type ReservationService interface {
	Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, id int64, amountCents int64) error
	Cancel(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	QueueStats() pipeline.Stats
}

// Deposit is the payment-staging entry written when a reservation is
// accepted and consumed when payment confirms.
type Deposit struct {
	BookingID   int64     `json:"booking_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type reservationService struct {
	repo      repository.BookingRepository
	locks     lockstore.LockStore
	deposits  cache.Store
	pipe      *pipeline.Pipeline
	ids       *idgen.Generator
	validator *validator.ReservationValidator
	cfg       *config.Config
}

func NewReservationService(
	repo repository.BookingRepository,
	locks lockstore.LockStore,
	deposits cache.Store,
	pipe *pipeline.Pipeline,
	ids *idgen.Generator,
	v *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		locks:     locks,
		deposits:  deposits,
		pipe:      pipe,
		ids:       ids,
		validator: v,
		cfg:       cfg,
	}
}

// Reserve runs the synchronous half of reservation creation: acquire every
// room lock under one token, persist the pending booking, stage the deposit,
// then hand off to the queue. Room availability is only final once the
// consumer re-verifies lock ownership.
func (s *reservationService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.Booking, error) {
	if err := s.validator.Validate(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			details := make(map[string]any, len(validationErrs))
			for _, ve := range validationErrs {
				details[ve.Field] = ve.Message
			}
			return nil, apperrors.Validation("Invalid reservation request", details)
		}
		return nil, apperrors.Internal("Failed to validate reservation request", err)
	}

	token := uuid.New().String()

	// Locks are taken in ascending room order so two overlapping requests
	// always collide on the first shared room instead of deadlocking.
	roomIDs := append([]int64(nil), req.RoomIDs...)
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })

	acquired := make([]string, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		key := lockstore.RoomKey(roomID, req.CheckIn, req.CheckOut)
		ok, err := s.locks.TryAcquire(ctx, key, token, s.cfg.RoomLockTTL)
		if err != nil {
			s.releaseLocks(ctx, acquired, token)
			return nil, apperrors.Internal("Failed to acquire room lock", err)
		}
		if !ok {
			s.releaseLocks(ctx, acquired, token)
			s.cfg.Log.Info("Reservation rejected: room already held",
				"room_id", roomID,
				"check_in", req.CheckIn,
				"check_out", req.CheckOut,
			)
			return nil, apperrors.Conflict("One or more rooms are unavailable for the selected dates")
		}
		acquired = append(acquired, key)
	}

	booking := &model.Booking{
		ID:               s.ids.NextID(),
		CustomerID:       req.CustomerID,
		RoomIDs:          roomIDs,
		CheckIn:          req.CheckIn,
		CheckOut:         req.CheckOut,
		TotalAmountCents: req.TotalAmountCents,
		Type:             req.Type,
		Status:           model.StatusPending,
		LockToken:        token,
	}

	if err := s.repo.Save(ctx, booking); err != nil {
		s.releaseLocks(ctx, acquired, token)
		return nil, apperrors.Internal("Failed to persist booking", err)
	}

	if err := s.stageDeposit(ctx, booking); err != nil {
		// The deposit is staging state only; confirmation still verifies the
		// booking row, so log and continue.
		s.cfg.Log.Warn("Failed to stage deposit", "booking_id", booking.ID, "error", err)
	}

	if err := s.pipe.Enqueue(ctx, model.CommandFromBooking(model.CmdCreateBooking, booking)); err != nil {
		s.releaseLocks(ctx, acquired, token)
		if delErr := s.repo.Delete(ctx, booking.ID); delErr != nil && !errors.Is(delErr, reserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to roll back booking after enqueue failure", "booking_id", booking.ID, "error", delErr)
		}
		return nil, apperrors.Unavailable("reservation queue")
	}

	s.pipe.ScheduleTimeout(booking.ID, s.cfg.PaymentTimeout)

	s.cfg.Log.Info("Reservation accepted",
		"booking_id", booking.ID,
		"customer_id", booking.CustomerID,
		"rooms", len(booking.RoomIDs),
		"check_in", booking.CheckIn,
		"check_out", booking.CheckOut,
	)
	return booking, nil
}

// ConfirmPayment verifies the amount against the booking and enqueues the
// confirmation. The status transition itself happens on the consumer.
func (s *reservationService) ConfirmPayment(ctx context.Context, id int64, amountCents int64) error {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return err
	}

	switch booking.Status {
	case model.StatusConfirmed:
		// Replayed confirmation, nothing to do.
		return nil
	case model.StatusCancelled:
		return apperrors.Conflict("Booking has been cancelled")
	}

	if amountCents != booking.TotalAmountCents {
		return apperrors.InvalidInput("Payment amount does not match booking total")
	}

	if err := s.pipe.Enqueue(ctx, model.CommandFromBooking(model.CmdConfirmPayment, booking)); err != nil {
		return apperrors.Unavailable("reservation queue")
	}
	return nil
}

// Cancel enqueues a guest cancellation. Cancelling an already cancelled
// booking is accepted silently.
func (s *reservationService) Cancel(ctx context.Context, id int64) error {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status == model.StatusCancelled {
		return nil
	}

	if err := s.pipe.Enqueue(ctx, model.CommandFromBooking(model.CmdCancelBooking, booking)); err != nil {
		return apperrors.Unavailable("reservation queue")
	}
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	return s.getBooking(ctx, id)
}

func (s *reservationService) QueueStats() pipeline.Stats {
	return s.pipe.Stats()
}

func (s *reservationService) getBooking(ctx context.Context, id int64) (*model.Booking, error) {
	if id <= 0 {
		return nil, apperrors.InvalidInput("Booking ID must be positive")
	}

	booking, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *reservationService) stageDeposit(ctx context.Context, booking *model.Booking) error {
	deposit := Deposit{
		BookingID:   booking.ID,
		AmountCents: booking.TotalAmountCents,
		CreatedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(deposit)
	if err != nil {
		return err
	}
	return s.deposits.Set(ctx, pipeline.DepositKey(booking.ID), payload, s.cfg.DepositTTL)
}

func (s *reservationService) releaseLocks(ctx context.Context, keys []string, token string) {
	for _, key := range keys {
		if _, err := s.locks.Release(ctx, key, token); err != nil {
			s.cfg.Log.Warn("Failed to release room lock", "key", key, "error", err)
		}
	}
}
