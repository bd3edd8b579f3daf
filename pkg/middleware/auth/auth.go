package middleware

import (
	"net/http"
	"strings"

	"github.com/Skotchmaster/order_lifecycle/pkg/tokens"
	"github.com/labstack/echo/v4"
)

const AccessCookie = "accessToken"

type AuthMiddleware struct {
	JWTSecret []byte
}

func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{JWTSecret: secret}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AuthMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := accessToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil || claims == nil || claims.Subject == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

// accessToken prefers the cookie set by the auth service and falls back to
// a bearer header for service-to-service callers.
func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set("user_id", claims.Subject)
	c.Set("role", claims.Role)
}
