package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions is the connection config of the de-duplication store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient builds a client; it does not dial until first use.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// EventDeduper marks submitted capital-return events so a retried submission is not queued
// twice. The ledger's unique (project, event) key remains the final guard.
type EventDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventDeduper creates a deduper; a nil client makes every event look new.
func NewEventDeduper(rdb *redis.Client, ttl time.Duration) *EventDeduper {
	return &EventDeduper{rdb: rdb, ttl: ttl}
}

func eventKey(projectID, eventID string) string {
	return fmt.Sprintf("proforma:event:%s:%s", projectID, eventID)
}

// AcquireOnce returns true the first time it sees an event, false for a repeat.
// When Redis is unavailable the event is let through.
func (d *EventDeduper) AcquireOnce(ctx context.Context, projectID, eventID string) bool {
	if d == nil || d.rdb == nil {
		return true
	}
	ok, err := d.rdb.SetNX(ctx, eventKey(projectID, eventID), 1, d.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release forgets an event, so a submission that failed before it was queued can be retried.
func (d *EventDeduper) Release(ctx context.Context, projectID, eventID string) {
	if d == nil || d.rdb == nil {
		return
	}
	d.rdb.Del(ctx, eventKey(projectID, eventID))
}
