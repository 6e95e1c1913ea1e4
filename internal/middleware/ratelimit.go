// Package middleware provides gin middleware for the REST transport:
// rate limiting (per client IP and per entity), CORS and request ids.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/arcs-project/arcs-core/internal/config"
	"github.com/arcs-project/arcs-core/internal/dto"
)

// RateLimiter holds per-key token-bucket limiters.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	config   config.RateLimitConfig
}

// NewRateLimiter constructs a RateLimiter from cfg.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerMinute)/60, rl.config.Burst)
	rl.limiters[key] = limiter

	go func() {
		time.Sleep(10 * time.Minute)
		delete(rl.limiters, key)
	}()

	return limiter
}

func tooManyRequests(c *gin.Context, code, message string) {
	c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
		BaseResponse: dto.BaseResponse{Success: false, Timestamp: time.Now()},
		Error:        &dto.ErrorDetail{Code: code, Message: message},
	})
	c.Abort()
}

// RateLimit applies per-client-IP rate limiting to every request.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	rl := NewRateLimiter(cfg)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := rl.getLimiter(clientIP)

		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.Header("X-Rate-Limit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
			c.Header("X-Rate-Limit-Remaining", "0")
			tooManyRequests(c, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("rate limit exceeded: %d requests per minute", cfg.RequestsPerMinute))
			return
		}

		c.Header("X-Rate-Limit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-Rate-Limit-Remaining", strconv.Itoa(cfg.Burst-1))
		c.Next()
	}
}

// EntityRateLimit applies a separate rate-limit bucket per entity id
// in the request path, so one hot entity's proxy traffic cannot starve
// requests for other entities.
func EntityRateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	rl := NewRateLimiter(cfg)

	return func(c *gin.Context) {
		key := fmt.Sprintf("entity:%s", c.Param("id"))
		limiter := rl.getLimiter(key)

		if !limiter.Allow() {
			tooManyRequests(c, "ENTITY_RATE_LIMIT_EXCEEDED", "rate limit exceeded for this entity")
			return
		}

		c.Next()
	}
}
