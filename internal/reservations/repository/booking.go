package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reserrors "innkeep/internal/reservations/errors"
	"innkeep/pkg/config"
	"innkeep/pkg/model"
)

const CollectionName = "bookings"

// BookingRepository is the persistence surface for bookings. It doubles as
// the store contract the reservation pipeline consumes.
type BookingRepository interface {
	Get(ctx context.Context, bookingID int64) (*model.Booking, error)
	Save(ctx context.Context, booking *model.Booking) error
	Delete(ctx context.Context, bookingID int64) error
	UpdateStatus(ctx context.Context, bookingID int64, from, to model.BookingStatus, reason string) (bool, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout bounds a store call without widening a caller deadline that is
// already tighter.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Get(ctx context.Context, bookingID int64) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) Save(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID}, booking, opts); err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, bookingID int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": bookingID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return reserrors.ErrNotFound
	}
	return nil
}

// UpdateStatus transitions a booking from one status to another with a single
// conditional write. The filter includes the expected current status, so a
// booking resolved by a concurrent writer matches nothing and the call reports
// false instead of overwriting a terminal state.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, bookingID int64, from, to model.BookingStatus, reason string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"status":     to,
		"updated_at": now,
	}
	if to == model.StatusCancelled {
		set["cancel_reason"] = reason
		set["cancelled_at"] = now
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": bookingID, "status": from}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	return result.MatchedCount > 0, nil
}
