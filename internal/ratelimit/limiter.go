// Package ratelimit throttles the bot's own outbound chatter, such as failure
// notices posted to the debug channel. The Redis limiter uses the INCR +
// EXPIRE fixed window so that every replica shares one budget; the local
// limiter is a token bucket for single-process deployments without Redis.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Rule defines a rate limiting policy: the key prefix, maximum number of
// events allowed in the window, and the window duration.
type Rule struct {
	Key    string        // key prefix (e.g., "rl:notice:")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// RuleDebugNotice allows 10 debug-channel notices per minute per channel.
var RuleDebugNotice = Rule{Key: "rl:notice:", Limit: 10, Window: time.Minute}

// Allower decides whether one more event for identifier fits within rule.
type Allower interface {
	Allow(ctx context.Context, identifier string, rule Rule) (bool, error)
}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the given identifier is within the rate limit defined by
// rule. It increments the counter in Redis and sets the expiry on first access.
//
// Returns true if the event is allowed, false if rate limited. On Redis
// errors the method fails open (returns true) so that a Redis outage does not
// silence notices entirely.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] redis EXPIRE error key=%s: %v (failing open)", key, err)
			// Without a TTL the key would persist and block the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	if int(count) > rule.Limit {
		return false, nil
	}

	return true, nil
}

// Local is an in-process Allower with one token bucket per rule key and
// identifier. Each bucket holds rule.Limit tokens and refills evenly over
// rule.Window.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocal returns an empty Local limiter.
func NewLocal() *Local {
	return &Local{buckets: make(map[string]*rate.Limiter)}
}

// Allow never returns an error.
func (l *Local) Allow(_ context.Context, identifier string, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return false, nil
	}
	key := rule.Key + identifier

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Limit)), rule.Limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow(), nil
}
