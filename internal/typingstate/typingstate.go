// Package typingstate keeps the per-ticket typing flags in Redis.
//
// A flag is a key with a short TTL: setting it true refreshes the TTL,
// setting it false deletes the key, and a client that disappears
// mid-thought simply lets the key expire. The TTL equals the client's
// debounce quiet period, so a flag can never outlive its sender by more
// than one poll cycle.
package typingstate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"backend-support/internal/models"
)

// TTL is the server-side staleness bound for a typing flag.
const TTL = 1800 * time.Millisecond

// Key builds the Redis key for one ticket's per-role typing flag.
func Key(ticketID int64, role string) string {
	return fmt.Sprintf("ticket:%d:typing:%s", ticketID, role)
}

// Set raises or clears the typing flag for one role on one ticket.
func Set(ctx context.Context, rdb *redis.Client, ticketID int64, role string, typing bool) error {
	key := Key(ticketID, role)
	if typing {
		return rdb.Set(ctx, key, "1", TTL).Err()
	}
	return rdb.Del(ctx, key).Err()
}

// Snapshot reads both flags for a ticket in one round-trip.
func Snapshot(ctx context.Context, rdb *redis.Client, ticketID int64) (models.TypingSnapshot, error) {
	vals, err := rdb.MGet(ctx, Key(ticketID, models.RoleUser), Key(ticketID, models.RoleAdmin)).Result()
	if err != nil {
		return models.TypingSnapshot{}, err
	}
	return models.TypingSnapshot{
		User:  len(vals) > 0 && vals[0] != nil,
		Admin: len(vals) > 1 && vals[1] != nil,
	}, nil
}
