package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomodb/core/user"
)

// adminMiddleware admits tokens carrying an admin role. When roles are given, the token must
// also hold one of them exactly.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !user.IsAdmin(claims.Roles) {
				return errHttpForbidden
			}
			if len(allowed) == 0 {
				return next(ctx)
			}
			for _, role := range claims.Roles {
				if allowed[role] {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
