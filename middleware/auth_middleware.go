package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"supportdesk/services"
)

// AuthMiddleware resolves the acting user and attendant profile from the
// Bearer token. WebSocket upgrades cannot set headers, so a ?token= query
// parameter is accepted as a fallback.
func AuthMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			var tokenString string
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "invalid authorization header",
					})
				}
				tokenString = parts[1]
			} else {
				tokenString = c.QueryParam("token")
				if tokenString == "" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "missing authorization token",
					})
				}
				tokenString = strings.TrimPrefix(tokenString, "Bearer ")
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}

			user, err := authService.GetUser(c.Request().Context(), claims.UserID)
			if err != nil {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "user not found",
				})
			}

			c.Set("user", user)
			c.Set("tenant_id", user.TenantID)

			if attendant, err := authService.AttendantForUser(c.Request().Context(), user.ID); err == nil {
				c.Set("attendant", attendant)
			}
			return next(c)
		}
	}
}
