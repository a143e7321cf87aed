package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

const (
	defaultRateLimitMax    = 10
	defaultRateLimitWindow = time.Minute
)

// RateLimitPolicy names one limiter bucket. Policies with different names
// never share counters.
type RateLimitPolicy struct {
	Name   string
	Max    int
	Window time.Duration
}

// RateLimit throttles each authenticated user per policy, falling back to the
// client IP for anonymous callers.
func RateLimit(policy RateLimitPolicy) fiber.Handler {
	if policy.Max <= 0 {
		policy.Max = defaultRateLimitMax
	}
	if policy.Window <= 0 {
		policy.Window = defaultRateLimitWindow
	}

	return limiter.New(limiter.Config{
		Max:        policy.Max,
		Expiration: policy.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return policy.Name + ":" + rateLimitSubject(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.RateLimited().WithLabelValues(policy.Name).Inc()
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests, please retry later")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok && id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.IP()
}
