package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const ipLimiterPrefix = "naggery:ip-limit"

// IPRateLimit throttles every request per client IP. Counters are shared
// through Redis when a client is given, otherwise kept in process memory.
// It is a coarse transport guard; per-action budgets live in ratelimit.
func IPRateLimit(cache *redis.Client, perMinute int64) (fiber.Handler, error) {
	if perMinute <= 0 {
		perMinute = 300
	}
	rate := limiter.Rate{Period: time.Minute, Limit: perMinute}

	var store limiter.Store
	if cache != nil {
		s, err := sredis.NewStoreWithOptions(cache, limiter.StoreOptions{Prefix: ipLimiterPrefix})
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: ipLimiterPrefix, CleanUpInterval: time.Minute})
	}
	instance := limiter.New(store, rate)

	return func(c *fiber.Ctx) error {
		lc, err := instance.Get(c.UserContext(), c.IP())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "rate limiter unavailable")
		}
		c.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))
		if lc.Reached {
			retry := lc.Reset - time.Now().Unix()
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retry, 10))
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}, nil
}
