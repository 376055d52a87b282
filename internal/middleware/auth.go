package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stillpoint-yoga/studio/internal/auth"
)

const claimsKey = "claims"

// JWTAuth enforces bearer JWT tokens signed with HS256.
func JWTAuth(signingKey, issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			claims, err := auth.Parse(strings.TrimSpace(authz[len("bearer "):]), signingKey, issuer)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			SetClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalJWT stores claims when a bearer token is present and lets anonymous
// requests through. A token that fails validation is still rejected.
func OptionalJWT(signingKey, issuer string) echo.MiddlewareFunc {
	required := JWTAuth(signingKey, issuer)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withClaims := required(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return withClaims(c)
		}
	}
}

// RequireRole rejects requests whose claims do not carry role. Must run after JWTAuth.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			if claims.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

func SetClaims(c echo.Context, claims auth.Claims) {
	c.Set(claimsKey, claims)
}

func ClaimsFrom(c echo.Context) (auth.Claims, bool) {
	claims, ok := c.Get(claimsKey).(auth.Claims)
	return claims, ok
}
