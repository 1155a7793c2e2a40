package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/medgate/config"
)

// CountingMode selects which requests consume rate limit budget. Verification
// endpoints typically count failures only, so a legitimate user retrying a
// mistyped code is not locked out alongside a guessing attacker.
type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)
			now := time.Now()
			resetTime := now.Add(cfg.Period)

			count, existingResetTime, exists := cfg.Store.Get(key)
			if exists {
				resetTime = existingResetTime
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				return cfg.OnLimitReached(c)
			}

			var newCount int
			if cfg.CountMode == CountAll {
				newCount = cfg.Store.Increment(key, resetTime)
			} else {
				newCount = count + 1
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), resetTime)

			err := next(c)

			if cfg.CountMode != CountAll {
				failed := c.Response().Status >= 400 || err != nil

				shouldCount := false
				switch cfg.CountMode {
				case CountFailures:
					shouldCount = failed
				case CountSuccess:
					shouldCount = !failed
				}

				if shouldCount {
					cfg.Store.Increment(key, resetTime)
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

// VerificationKeyGenerator scopes the limit to the endpoint as well as the
// client, so an attacker hammering code verification does not consume the
// budget of unrelated routes.
func VerificationKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return fmt.Sprintf("rate_limit:%s:%s", c.Path(), realIP)
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

func NewStore(rateLimitConfig *config.RateLimitConfig) Store {
	switch rateLimitConfig.Store {
	case "memory":
		fallthrough
	default:
		return NewMemoryStore()
	}
}
