package fittings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "fitting:"

// CachedStore is a read-through Redis cache in front of a Store. Concurrent
// misses for the same identifier share one upstream lookup. Misses are not
// cached, so a newly registered fitting becomes visible immediately.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedStore wraps next. A zero ttl disables caching but keeps request collapsing.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

// Lookup serves from Redis when possible. Cache failures degrade to the
// underlying store instead of failing the lookup.
func (c *CachedStore) Lookup(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrNotFound
	}
	if rec, ok := c.get(ctx, id); ok {
		return rec, nil
	}
	// The shared lookup outlives any single caller: a caller that gives up
	// must not fail the others waiting on the same identifier.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		rec, err := c.next.Lookup(detached, id)
		if err != nil {
			return Record{}, err
		}
		c.put(detached, rec)
		return rec, nil
	})
	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Record{}, res.Err
		}
		return res.Val.(Record), nil
	}
}

// Invalidate drops a cached record, e.g. after a fault report changes its status.
func (c *CachedStore) Invalidate(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+strings.TrimSpace(id)).Err()
}

func (c *CachedStore) get(ctx context.Context, id string) (Record, bool) {
	if c.client == nil || c.ttl <= 0 {
		return Record{}, false
	}
	payload, err := c.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("fitting cache read", slog.String("fitting_id", id), slog.Any("error", err))
		}
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		c.logger.Warn("fitting cache decode", slog.String("fitting_id", id), slog.Any("error", err))
		return Record{}, false
	}
	return rec, true
}

func (c *CachedStore) put(ctx context.Context, rec Record) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+rec.FittingID, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("fitting cache write", slog.String("fitting_id", rec.FittingID), slog.Any("error", err))
	}
}

var _ Store = (*CachedStore)(nil)
