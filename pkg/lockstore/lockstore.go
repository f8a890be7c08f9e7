// Package lockstore provides token-owned locks over room/date-range keys.
// A lock, once set, is only cleared by presenting the token that set it
// (compare-and-release) or by TTL expiry inside the store.
package lockstore

import (
	"context"
	"fmt"
	"time"
)

type LockStore interface {
	// TryAcquire sets key -> token if the key is free. Returns false when the
	// key is already owned (by anyone, including the same token).
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// OwnerOf returns the current owner token, or "" when the key is free.
	OwnerOf(ctx context.Context, key string) (string, error)

	// Release clears the key only if token matches the current owner.
	// Returns true when a lock was actually removed. Releasing a free key or
	// presenting a stale token is a no-op, not an error.
	Release(ctx context.Context, key, token string) (bool, error)
}

const dateLayout = "2006-01-02"

// RoomKey builds the deterministic lock key for one room over a stay range.
func RoomKey(roomID int64, checkIn, checkOut time.Time) string {
	return fmt.Sprintf("room_lock:%d:%s:%s",
		roomID, checkIn.Format(dateLayout), checkOut.Format(dateLayout))
}
