package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/rewearhq/rewear/internal/handler"    // import the handlers that implement business logic
	"github.com/rewearhq/rewear/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/rewearhq/rewear/internal/model"      // role constants
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: register, login
	// and the two refresh variants.  Each handler generates or exchanges
	// tokens itself.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only mints a new
	// access token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a JSON body with a `refresh_token` and invalidates it,
	// so it does not require JWT authentication.
	g.POST("/logout", a.Logout)

	// Protected endpoints live under /v1 and require a valid access token
	// carrying one of the known roles.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleMember, model.RoleAdmin))
	auth.GET("/me", a.Me)

	// Alias kept at the top level so clients can call either
	// /v1/auth/logout or /v1/logout with a refresh token in the body.
	e.POST("/v1/logout", a.Logout)
}
