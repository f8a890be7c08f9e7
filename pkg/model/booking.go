package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s BookingStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

type BookingType string

const (
	BookingOnline BookingType = "online"
	BookingWalkin BookingType = "walkin"
)

// Cancellation reasons recorded on the booking row. Machine-readable so
// downstream reporting can distinguish guest cancellations from reclaimed
// reservations.
const (
	CancelReasonGuest          = "guest_cancelled"
	CancelReasonPaymentTimeout = "payment_timeout"
	CancelReasonLockInvalid    = "lock_invalid"
)

// Booking is the persisted reservation row. Amounts are integer cents.
// LockToken is the credential that owns the room locks for this attempt;
// it never changes after creation.
type Booking struct {
	ID               int64         `json:"id" bson:"_id"`
	CustomerID       int64         `json:"customer_id" bson:"customer_id"`
	RoomIDs          []int64       `json:"room_ids" bson:"room_ids"`
	CheckIn          time.Time     `json:"check_in" bson:"check_in"`
	CheckOut         time.Time     `json:"check_out" bson:"check_out"`
	TotalAmountCents int64         `json:"total_amount_cents" bson:"total_amount_cents"`
	Type             BookingType   `json:"type" bson:"type"`
	Status           BookingStatus `json:"status" bson:"status"`
	LockToken        string        `json:"-" bson:"lock_token"`
	CancelReason     string        `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

// ReservationRequest is the inbound payload for creating a reservation.
type ReservationRequest struct {
	CustomerID       int64       `json:"customer_id" validate:"required,gt=0"`
	RoomIDs          []int64     `json:"room_ids" validate:"required,min=1,max=10,unique,dive,gt=0"`
	CheckIn          time.Time   `json:"check_in" validate:"required"`
	CheckOut         time.Time   `json:"check_out" validate:"required,gtfield=CheckIn"`
	TotalAmountCents int64       `json:"total_amount_cents" validate:"gte=0"`
	Type             BookingType `json:"type" validate:"required,oneof=online walkin"`
}
