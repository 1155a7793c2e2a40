package twofactor

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/medgate/session"
)

type Config struct {
	// UserIDFunc resolves the authenticated user for the request. Defaults
	// to the session identity.
	UserIDFunc func(c echo.Context) uint

	// OnFailure is invoked when the session has not completed second factor
	// verification for the resolved user.
	OnFailure func(c echo.Context) error
}

// Require blocks requests whose session has not passed a second factor
// check for the authenticated user.
func Require(cfg *Config) echo.MiddlewareFunc {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.UserIDFunc == nil {
		cfg.UserIDFunc = session.GetUserIDAsUint
	}

	if cfg.OnFailure == nil {
		cfg.OnFailure = DefaultOnFailure
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := cfg.UserIDFunc(c)
			if userID == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			if !session.IsTwoFactorVerified(c, userID) {
				return cfg.OnFailure(c)
			}

			return next(c)
		}
	}
}

func DefaultOnFailure(c echo.Context) error {
	return echo.NewHTTPError(http.StatusForbidden, "Two factor verification required")
}
