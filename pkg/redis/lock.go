package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token, so a
// lock that expired and was re-acquired by another session is never released
// by the original holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-holder lock backed by a Redis key with a TTL. The TTL is
// the auto-expiry guarantee: a holder that dies without releasing never blocks
// future acquisitions forever.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock creates a lock for the given key. Each Lock value carries its own
// random token; two Lock values for the same key never release each other.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryAcquire attempts a non-blocking acquisition. It returns false when
// another session currently holds the lock.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

// Release removes the lock if this session still holds it. Releasing a lock
// that expired or was never acquired is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Token returns the holder token, exposed for logging.
func (l *Lock) Token() string {
	return l.token
}
