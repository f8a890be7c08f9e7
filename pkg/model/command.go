package model

import (
	"time"
)

type CommandKind string

const (
	CmdCreateBooking  CommandKind = "create_booking"
	CmdConfirmPayment CommandKind = "confirm_payment"
	CmdCancelBooking  CommandKind = "cancel_booking"
	CmdReleaseLocks   CommandKind = "release_room_locks"
)

// ReservationCommand is one unit of work flowing through the reservation
// queue. The enqueuing side fills every field except RetryCount, which only
// the processor increments. Reason is set on cancel commands that carry a
// machine-readable cause. A command is owned by exactly one party at a
// time: the queue while in transit, the processor during an attempt.
type ReservationCommand struct {
	Kind             CommandKind `json:"kind"`
	BookingID        int64       `json:"booking_id"`
	CustomerID       int64       `json:"customer_id"`
	RoomIDs          []int64     `json:"room_ids"`
	CheckIn          time.Time   `json:"check_in"`
	CheckOut         time.Time   `json:"check_out"`
	TotalAmountCents int64       `json:"total_amount_cents"`
	Type             BookingType `json:"type"`
	CreatedAt        time.Time   `json:"created_at"`
	LockToken        string      `json:"lock_token"`
	Reason           string      `json:"reason,omitempty"`
	RetryCount       int         `json:"retry_count"`
}

// CommandFromBooking builds a command of the given kind carrying the
// booking's room set and lock token.
func CommandFromBooking(kind CommandKind, b *Booking) *ReservationCommand {
	return &ReservationCommand{
		Kind:             kind,
		BookingID:        b.ID,
		CustomerID:       b.CustomerID,
		RoomIDs:          append([]int64(nil), b.RoomIDs...),
		CheckIn:          b.CheckIn,
		CheckOut:         b.CheckOut,
		TotalAmountCents: b.TotalAmountCents,
		Type:             b.Type,
		CreatedAt:        time.Now().UTC(),
		LockToken:        b.LockToken,
	}
}
