package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  This
// middleware wraps every route that needs an authenticated identity so
// handlers can read it via `c.Get("user_id")` and `c.Get("role")` instead of
// any ambient session global.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse the token using the HS256 signing method and our secret.
            // The callback supplies the signing key and rejects tokens whose
            // algorithm differs from what we issue.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            // Store the subject (user ID) and role claims in the context.
            // Handlers and downstream middleware access these values via
            // c.Get().  Type assertions are left to downstream consumers.
            c.Set("user_id", claims["sub"])
            c.Set("role", claims["role"])
            return next(c)
        }
    }
}
