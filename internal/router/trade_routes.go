package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rewearhq/rewear/internal/handler"
	"github.com/rewearhq/rewear/internal/middleware"
	"github.com/rewearhq/rewear/internal/model"
)

// RegisterTrade registers the swap and redemption endpoints under /v1.
// Every route requires a valid JWT; ownership rules are enforced in the
// handlers because they depend on the rows being traded.
func RegisterTrade(e *echo.Echo, s *handler.SwapHandler, r *handler.RedemptionHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin),
	)

	g.POST("/swaps", s.ProposeSwap)
	g.GET("/swaps", s.ListSwaps)
	g.POST("/swaps/:id/respond", s.RespondToSwap)
	g.POST("/swaps/:id/cancel", s.CancelSwap)

	g.POST("/redemptions", r.RedeemItem)
	g.GET("/redemptions", r.ListRedemptions)
}
