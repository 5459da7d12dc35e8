package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another operation of the same kind is in flight.
var ErrLockHeld = errors.New("operation already in flight")

// DispatchLockKey builds redis keys guarding one in-flight dispatch per session and kind.
func DispatchLockKey(sessionKey, kind string) string {
	return fmt.Sprintf("dispatch:%s:%s:lock", sessionKey, kind)
}

// LockManager hands out short-lived redis locks.
type LockManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockManager constructs a LockManager. Locks expire after ttl even if never released.
func NewLockManager(client *redis.Client, ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LockManager{client: client, ttl: ttl}
}

// Acquire takes the lock for key or returns ErrLockHeld. The returned release
// function only deletes the key while it still holds this owner's token.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, owner, m.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// Background context: release must run even if the request was cancelled.
		_ = releaseScript.Run(context.Background(), m.client, []string{key}, owner).Err()
	}
	return release, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
