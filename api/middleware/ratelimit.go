package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/models"
	"golang.org/x/time/rate"
)

// idleLimiter is how long a caller's bucket survives without new runs.
const idleLimiter = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// runLimiter keeps one token bucket per caller.
type runLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
}

func newRunLimiter(cfg config.RunLimitConfig) *runLimiter {
	return &runLimiter{
		limit:    rate.Limit(cfg.RunsPerMinute / 60),
		burst:    cfg.Burst,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow takes a token for identity at now. When none is available it
// returns how long the caller should wait; zero means never.
func (l *runLimiter) allow(identity string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	entry, ok := l.limiters[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[identity] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *runLimiter) evict(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}

func (l *runLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RunLimit returns middleware for the endpoints that start a search or a
// download. Each such run holds a browser session for minutes, so callers
// (API key, or IP without auth) draw from a token bucket; polling and
// result endpoints are not wrapped.
//
// A rejected request gets 429 with Retry-After in whole seconds.
func RunLimit(cfg config.RunLimitConfig) gin.HandlerFunc {
	l := newRunLimiter(cfg)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			l.evict(now.Add(-idleLimiter))
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(IdentityKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		ok, wait := l.allow(identity, time.Now())
		if ok {
			c.Next()
			return
		}

		msg := "run limit reached: searches and downloads are disabled for this caller"
		if wait > 0 {
			secs := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			msg = fmt.Sprintf("too many searches or downloads started, retry in %ds", secs)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeRateLimited, Message: msg},
		})
	}
}
