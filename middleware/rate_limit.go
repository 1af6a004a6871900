package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/queridometro/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// ipLimiters holds one token bucket per client IP.
type ipLimiters struct {
	mu      sync.Mutex
	byIP    map[string]*rateLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

// RateLimitMiddleware applies a simple IP based rate limiter using a token bucket.
// Each call gets its own set of buckets.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	l := &ipLimiters{
		byIP:    map[string]*rateLimiter{},
		limit:   rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:   max(perMinute/2, 1),
		idleTTL: 5 * time.Minute,
	}

	return func(ctx *gin.Context) {
		if !l.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, limiter := range l.byIP {
		if now.After(limiter.expires) {
			delete(l.byIP, key)
		}
	}

	limiter, ok := l.byIP[ip]
	if !ok {
		limiter = &rateLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = limiter
	}
	limiter.expires = now.Add(l.idleTTL)
	return limiter.limiter.Allow()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
