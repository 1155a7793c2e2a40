package session

import (
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey            = "_user_id"
	AuthenticatedKey     = "_authenticated"
	TwoFactorVerifiedKey = "_twofactor_verified"
	TwoFactorUserIDKey   = "_twofactor_user_id"
)

func Login(c echo.Context, userID uint) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	ctx := c.Request().Context()
	manager.Put(ctx, UserIDKey, userID)
	manager.Put(ctx, AuthenticatedKey, true)
}

func Logout(c echo.Context) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	ctx := c.Request().Context()
	manager.Remove(ctx, UserIDKey)
	manager.Remove(ctx, AuthenticatedKey)
	ClearTwoFactorMark(c)
	_ = manager.Destroy(ctx)
}

func IsAuthenticated(c echo.Context) bool {
	manager := GetManager(c)
	if manager == nil {
		return false
	}
	return manager.GetBool(c.Request().Context(), AuthenticatedKey)
}

func GetUserIDAsUint(c echo.Context) uint {
	manager := GetManager(c)
	if manager == nil {
		return 0
	}

	userID := manager.Get(c.Request().Context(), UserIDKey)
	switch v := userID.(type) {
	case uint:
		return v
	case int:
		return uint(v)
	case int64:
		return uint(v)
	case uint64:
		return uint(v)
	case float64:
		return uint(v)
	default:
		return 0
	}
}

// MarkTwoFactorVerified records a successful second factor check for the
// session. The mark is scoped to the user it was earned for, so a session
// that later authenticates as a different user does not inherit it.
func MarkTwoFactorVerified(c echo.Context, userID uint) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	ctx := c.Request().Context()
	manager.Put(ctx, TwoFactorVerifiedKey, true)
	manager.Put(ctx, TwoFactorUserIDKey, userID)
}

func IsTwoFactorVerified(c echo.Context, userID uint) bool {
	manager := GetManager(c)
	if manager == nil {
		return false
	}
	ctx := c.Request().Context()
	if !manager.GetBool(ctx, TwoFactorVerifiedKey) {
		return false
	}

	markedFor := manager.Get(ctx, TwoFactorUserIDKey)
	switch v := markedFor.(type) {
	case uint:
		return v == userID
	case int:
		return uint(v) == userID
	case int64:
		return uint(v) == userID
	case float64:
		return uint(v) == userID
	default:
		return false
	}
}

func ClearTwoFactorMark(c echo.Context) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	ctx := c.Request().Context()
	manager.Remove(ctx, TwoFactorVerifiedKey)
	manager.Remove(ctx, TwoFactorUserIDKey)
}
