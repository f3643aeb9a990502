package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = 5
	attemptWindow    = 15 * time.Minute
)

// LoginLimiter throttles failed login attempts per client IP.
type LoginLimiter interface {
	// RetryAfter returns how long the IP must wait before another attempt,
	// or zero if attempts are still allowed.
	RetryAfter(ctx context.Context, ip string) (time.Duration, error)
	// RecordFailure counts a failed attempt.
	RecordFailure(ctx context.Context, ip string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, ip string) error
}

// RedisLimiter counts failures in Redis with INCR + EXPIRE, so the limit
// holds across processes and restarts.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) RetryAfter(ctx context.Context, ip string) (time.Duration, error) {
	key := "login_attempts:" + ip
	n, err := l.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n < maxLoginAttempts {
		return 0, nil
	}
	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return attemptWindow, err
	}
	return ttl, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, ip string) error {
	key := "login_attempts:" + ip
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return l.rdb.Expire(ctx, key, attemptWindow).Err()
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, ip string) error {
	return l.rdb.Del(ctx, "login_attempts:"+ip).Err()
}

// MemoryLimiter is the in-process LoginLimiter used in tests and
// database-free deployments.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptState
}

type attemptState struct {
	count int
	first time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{attempts: make(map[string]*attemptState)}
}

func (l *MemoryLimiter) RetryAfter(ctx context.Context, ip string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.attempts[ip]
	if !ok {
		return 0, nil
	}
	if time.Since(st.first) > attemptWindow {
		delete(l.attempts, ip)
		return 0, nil
	}
	if st.count < maxLoginAttempts {
		return 0, nil
	}
	return attemptWindow - time.Since(st.first), nil
}

func (l *MemoryLimiter) RecordFailure(ctx context.Context, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.attempts[ip]
	if !ok || time.Since(st.first) > attemptWindow {
		st = &attemptState{first: time.Now()}
		l.attempts[ip] = st
	}
	st.count++
	return nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, ip)
	return nil
}
