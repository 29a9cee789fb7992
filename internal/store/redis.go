package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// ClaimNonce marks a scan nonce as consumed for its remaining TTL.
// SET NX makes the claim atomic across concurrent API workers, so a
// still-fresh code replayed through a second worker is rejected even
// though each scanner only tracks its own last nonce. Returns true when
// this caller won the claim.
func (r *Redis) ClaimNonce(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		// No redis in dev mode: fall back to scanner-local replay
		// protection only.
		return true, nil
	}
	return r.Client.SetNX(ctx, "timeintern:nonce:"+nonce, 1, ttl).Result()
}
