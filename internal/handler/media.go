package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rewearhq/rewear/internal/config"
)

// MediaHandler exposes the hosted-CDN upload widget configuration.
// Image bytes never pass through this service; clients upload directly
// to the CDN and submit the resulting URLs with their item listing.
type MediaHandler struct {
	Cfg config.Config
}

// NewMediaHandler constructs a MediaHandler.
func NewMediaHandler(cfg config.Config) *MediaHandler {
	return &MediaHandler{Cfg: cfg}
}

// UploadConfig handles GET /v1/uploads/config.  It returns the public
// widget credentials, or 503 when the deployment has no CDN configured.
// The API secret never leaves the server.
func (h *MediaHandler) UploadConfig(c echo.Context) error {
	if h.Cfg.MediaCloudName == "" || h.Cfg.MediaAPIKey == "" {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "media uploads are not configured"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cloud_name": h.Cfg.MediaCloudName,
		"api_key":    h.Cfg.MediaAPIKey,
	})
}
