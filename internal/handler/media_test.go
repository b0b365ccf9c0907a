package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rewearhq/rewear/internal/config"
)

func TestUploadConfigUnavailableWhenUnset(t *testing.T) {
	h := NewMediaHandler(config.Config{})
	c, rec := newJSONContext(http.MethodGet, "/v1/uploads/config", "")

	if err := h.UploadConfig(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}

func TestUploadConfigReturnsPublicCredentials(t *testing.T) {
	h := NewMediaHandler(config.Config{MediaCloudName: "rewear", MediaAPIKey: "public-key"})
	c, rec := newJSONContext(http.MethodGet, "/v1/uploads/config", "")

	if err := h.UploadConfig(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rewear") || !strings.Contains(body, "public-key") {
		t.Fatalf("unexpected body: %s", body)
	}
}
