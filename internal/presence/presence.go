// Package presence keeps online-user keys in redis so sibling services can
// cheaply answer "is this user connected". It is bookkeeping only: fan-out
// stays in-process and the service runs fine without redis (nil Tracker).
package presence

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "presence:user:"
	opTimeout = 2 * time.Second
)

// Tracker mirrors connection lifecycle into redis keys with a TTL slightly
// above the stale cutoff, so a crashed process leaks nothing permanent.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New creates a tracker. ttl should exceed the registry's stale timeout.
func New(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Tracker {
	return &Tracker{rdb: rdb, ttl: ttl, log: log}
}

// Online marks userID online. Safe on a nil tracker.
func (t *Tracker) Online(userID string) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := t.rdb.Set(ctx, keyPrefix+userID, "1", t.ttl).Err(); err != nil {
		t.log.Warn("presence set failed", "userID", userID, "error", err)
	}
}

// Offline clears userID. Called when the user's last connection drops.
func (t *Tracker) Offline(userID string) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := t.rdb.Del(ctx, keyPrefix+userID).Err(); err != nil {
		t.log.Warn("presence delete failed", "userID", userID, "error", err)
	}
}

// OnlineUsers lists user IDs currently marked online.
func (t *Tracker) OnlineUsers(ctx context.Context) ([]string, error) {
	if t == nil {
		return nil, nil
	}
	var users []string
	iter := t.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		users = append(users, iter.Val()[len(keyPrefix):])
	}
	return users, iter.Err()
}

// Run refreshes the keys of currently connected users on an interval so TTLs
// outlive long-lived connections. list returns the union of connected user
// IDs across channels.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, list func() []string) {
	if t == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range list() {
				t.Online(userID)
			}
		}
	}
}

// Ping reports whether redis is reachable; used by the readiness probe.
func (t *Tracker) Ping(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.rdb.Ping(ctx).Err()
}
