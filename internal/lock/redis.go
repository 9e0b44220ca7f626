package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Veraticus/condo-quotas/internal/common"
)

// Default timings of the Redis locker.
const (
	DefaultTTL          = 30 * time.Second
	DefaultWait         = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	Prefix       string
	TTL          time.Duration
	Wait         time.Duration
	PollInterval time.Duration
}

// Redis is a Locker shared by every process using the same Redis server.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedis creates a Redis locker. Zero options take the defaults.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Wait <= 0 {
		opts.Wait = DefaultWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Prefix == "" {
		opts.Prefix = "quota:lock:"
	}
	return &Redis{client: client, opts: opts}
}

// Acquire polls SET NX until the key is free or the wait budget is spent. A held lease is
// renewed every third of its TTL until Release.
func (r *Redis) Acquire(parent context.Context, key string) (Lock, error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(parent, r.opts.Wait)
	defer cancel()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.opts.TTL).Result()
		switch {
		case err == nil && ok:
			slog.Debug("acquired lock", "key", redisKey)
			return r.hold(redisKey, token), nil
		case err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if err := parent.Err(); errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("waiting for lock %s: %w", key, err)
			}
			return nil, fmt.Errorf("%w: %s after %s", common.ErrLockTimeout, key, r.opts.Wait)
		}
	}
}

func (r *Redis) hold(redisKey, token string) *redisLock {
	renewCtx, stop := context.WithCancel(context.Background())
	l := &redisLock{client: r.client, key: redisKey, token: token, stop: stop, done: make(chan struct{})}
	go l.renew(renewCtx, r.opts.TTL)
	return l
}

type redisLock struct {
	client *redis.Client
	stop   context.CancelFunc
	done   chan struct{}
	key    string
	token  string
}

func (l *redisLock) renew(ctx context.Context, ttl time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				slog.Warn("failed to renew lock", "key", l.key, "error", err)
			case renewed == 0:
				slog.Warn("lock lost before renewal", "key", l.key)
				return
			}
		}
	}
}

func (l *redisLock) Release(ctx context.Context) error {
	l.stop()
	<-l.done
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if deleted == 0 {
		slog.Warn("lock expired before release", "key", l.key)
	}
	return nil
}
