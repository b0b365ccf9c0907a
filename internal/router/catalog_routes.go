package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rewearhq/rewear/internal/handler"
	"github.com/rewearhq/rewear/internal/middleware"
	"github.com/rewearhq/rewear/internal/model"
)

// RegisterCatalog registers the item catalog endpoints.  Browsing is
// public so guests can explore the catalog; listing an item, viewing
// one's own items and the upload-widget config require a JWT.  The
// optional browseCache middleware is applied only to the public GET
// routes so authenticated responses are never served from cache.
func RegisterCatalog(e *echo.Echo, h *handler.ItemHandler, m *handler.MediaHandler, jwtSecret string, browseCache echo.MiddlewareFunc) {
	var public []echo.MiddlewareFunc
	if browseCache != nil {
		public = append(public, browseCache)
	}
	e.GET("/v1/items", h.ListItems, public...)
	e.GET("/v1/items/featured", h.ListFeatured, public...)
	// Static segments win over :id in Echo's router, so /featured and
	// /user never reach GetItem.
	e.GET("/v1/items/:id", h.GetItem, public...)

	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin),
	)
	g.POST("/items", h.CreateItem)
	g.GET("/items/user", h.ListUserItems)
	g.GET("/uploads/config", m.UploadConfig)
}

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.ItemHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/items/:id/feature", h.FeatureItem)
	g.DELETE("/items/:id/feature", h.UnfeatureItem)
}
