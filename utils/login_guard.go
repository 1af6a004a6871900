package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginGuard locks a name out after too many failed logins within an hour.
// State lives in Redis when a client is given, otherwise in process memory.
type LoginGuard struct {
	rc          *redis.Client
	maxFailures int
	lockFor     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	failures map[string]failWindow
	locks    map[string]time.Time
}

type failWindow struct {
	hour  string
	count int
}

func NewLoginGuard(rc *redis.Client, maxFailures int, lockFor time.Duration) *LoginGuard {
	if lockFor <= 0 {
		lockFor = 15 * time.Minute
	}
	return &LoginGuard{
		rc:          rc,
		maxFailures: maxFailures,
		lockFor:     lockFor,
		now:         time.Now,
		failures:    map[string]failWindow{},
		locks:       map[string]time.Time{},
	}
}

func loginKey(parts ...string) string {
	return "queridometro:login:" + strings.Join(parts, ":")
}

// Locked reports whether name is currently locked out.
func (g *LoginGuard) Locked(ctx context.Context, name string) bool {
	if g.maxFailures <= 0 {
		return false
	}
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		n, err := g.rc.Exists(ctx, loginKey("lock", name)).Result()
		if err == nil {
			return n > 0
		}
		// fall through to memory on redis errors
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.locks[name]
	if !ok {
		return false
	}
	if !g.now().Before(until) {
		delete(g.locks, name)
		return false
	}
	return true
}

// Fail records a failed attempt and reports whether name is now locked.
func (g *LoginGuard) Fail(ctx context.Context, name string) bool {
	if g.maxFailures <= 0 {
		return false
	}
	hour := g.now().UTC().Format("2006010215")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		key := loginKey("fail", name, hour)
		n, err := g.rc.Incr(ctx, key).Result()
		if err == nil {
			_ = g.rc.Expire(ctx, key, time.Hour).Err()
			if int(n) >= g.maxFailures {
				_ = g.rc.Set(ctx, loginKey("lock", name), "1", g.lockFor).Err()
				_ = g.rc.Del(ctx, key).Err()
				return true
			}
			return false
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.failures[name]
	if w.hour != hour {
		w = failWindow{hour: hour}
	}
	w.count++
	if w.count >= g.maxFailures {
		g.locks[name] = g.now().Add(g.lockFor)
		delete(g.failures, name)
		return true
	}
	g.failures[name] = w
	return false
}

// Reset forgets failures after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, name string) {
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		_ = g.rc.Del(ctx, loginKey("fail", name, g.now().UTC().Format("2006010215"))).Err()
	}
	g.mu.Lock()
	delete(g.failures, name)
	g.mu.Unlock()
}
