package ratelimit

import (
	"context"
	"fmt"
	"time"

	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/logger"
	"kitarekayasa/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keyPrefix = "kr:rate:"

// Counter is the cache capability the limiter needs.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Config holds limiter defaults.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Window       time.Duration `yaml:"window"`
	UserMax      int           `yaml:"userMax"`
	IPMax        int           `yaml:"ipMax"`
	RedisTimeout time.Duration `yaml:"redisTimeout"`
	// FailOpen lets requests through when the counter store is unreachable.
	FailOpen bool `yaml:"failOpen"`
}

// Policy overrides the defaults for one route.
type Policy struct {
	Window  time.Duration
	UserMax int
	IPMax   int
}

// Limiter enforces fixed-window limits using Redis counters.
type Limiter struct {
	counter Counter
	cfg     Config
}

// NewLimiter creates a Limiter. A nil counter disables limiting.
func NewLimiter(counter Counter, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RedisTimeout <= 0 {
		cfg.RedisTimeout = 200 * time.Millisecond
	}
	return &Limiter{counter: counter, cfg: cfg}
}

// Allow increments key and fails with TooManyRequests once max is exceeded within window.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l == nil || l.counter == nil || max <= 0 {
		return nil
	}
	if window <= 0 {
		window = l.cfg.Window
	}

	ctxCache, cancel := context.WithTimeout(ctx, l.cfg.RedisTimeout)
	defer cancel()

	count, err := l.counter.IncrWithTTL(ctxCache, keyPrefix+key, window)
	if err != nil {
		if l.cfg.FailOpen {
			logger.Warn(ctx, "rate limit check skipped", zap.String("key", key), zap.Error(err))
			return nil
		}
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests)
	}
	return nil
}

// Middleware limits a route per client IP and, when authenticated, per user id.
// It must run after the auth middleware for the user limit to apply.
func (l *Limiter) Middleware(routeKey string, policy Policy) gin.HandlerFunc {
	if l == nil || !l.cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	ipMax := policy.IPMax
	if ipMax == 0 {
		ipMax = l.cfg.IPMax
	}
	userMax := policy.UserMax
	if userMax == 0 {
		userMax = l.cfg.UserMax
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := l.Allow(ctx, fmt.Sprintf("ip:%s:%s", c.ClientIP(), routeKey), ipMax, policy.Window); err != nil {
			response.AbortWithError(c, err)
			return
		}
		if userID, ok := c.Get("user_id"); ok {
			if err := l.Allow(ctx, fmt.Sprintf("user:%v:%s", userID, routeKey), userMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}
