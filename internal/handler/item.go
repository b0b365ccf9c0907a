package handler

import (
	"database/sql" // for sentinel errors returned from repository
	"errors"       // for errors.Is comparisons
	"net/http"     // HTTP status codes
	"net/url"      // image URL validation
	"strconv"      // parsing path parameters
	"strings"      // trimming input fields

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/rewearhq/rewear/internal/config"     // point price defaults
	"github.com/rewearhq/rewear/internal/model"      // domain types and enums
	"github.com/rewearhq/rewear/internal/repository" // repository layer
)

// ItemHandler groups the repositories needed to create and browse
// listings.  All methods assume JWT authentication has already run on
// protected routes; public browse endpoints never read the identity.
// Creation runs its DB writes inside a transaction so an item is never
// persisted without its images.
type ItemHandler struct {
	Cfg   config.Config
	Items *repository.ItemRepo
	Users *repository.UserRepo
}

// NewItemHandler constructs a new ItemHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewItemHandler(cfg config.Config, items *repository.ItemRepo, users *repository.UserRepo) *ItemHandler {
	if items == nil || users == nil {
		panic("nil repository passed to NewItemHandler")
	}
	return &ItemHandler{Cfg: cfg, Items: items, Users: users}
}

type createItemReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Size        string   `json:"size"`
	Condition   string   `json:"condition"`
	Tags        []string `json:"tags"`
	PointPrice  int64    `json:"point_price"`
	Images      []struct {
		ImageURL string `json:"image_url"`
	} `json:"images"`
}

// CreateItem handles POST /v1/items.  The payload is validated field by
// field and every failure is reported at once in a 400 response.  On
// success the item and its 1–5 images are inserted in one transaction
// and the full listing is returned with 201.
func (h *ItemHandler) CreateItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	// The JWT can outlive its user record; the listing must reference a
	// live identity row.
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var body createItemReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	fe := fieldErrors{}
	title := fe.requireText("title", body.Title, 3)
	description := fe.requireText("description", body.Description, 10)
	if !model.ValidCategory(body.Category) {
		fe.add("category", "must be one of "+strings.Join(model.ItemCategories, ", "))
	}
	if !model.ValidSize(body.Size) {
		fe.add("size", "must be one of "+strings.Join(model.ItemSizes, ", "))
	}
	if !model.ValidCondition(body.Condition) {
		fe.add("condition", "must be one of "+strings.Join(model.ItemConditions, ", "))
	}
	if len(body.Images) == 0 {
		fe.add("images", "at least one image is required")
	} else if len(body.Images) > model.MaxItemImages {
		fe.add("images", "at most "+strconv.Itoa(model.MaxItemImages)+" images are allowed")
	}
	urls := make([]string, 0, len(body.Images))
	for _, img := range body.Images {
		u, err := url.Parse(strings.TrimSpace(img.ImageURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fe.add("images", "image_url must be an absolute http(s) URL")
			break
		}
		urls = append(urls, u.String())
	}
	price := body.PointPrice
	if price == 0 {
		price = int64(h.Cfg.DefaultPointPrice)
	}
	if price < 0 {
		fe.add("point_price", "must be positive")
	}
	if !fe.ok() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fe})
	}

	item := model.Item{
		UserID:      userID,
		Title:       title,
		Description: description,
		Category:    body.Category,
		Size:        body.Size,
		Condition:   body.Condition,
		Tags:        body.Tags,
		Status:      model.ItemStatusPending,
		PointPrice:  price,
	}

	tx, err := h.Items.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Items.CreateTx(ctx, tx, &item); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create item"})
	}
	if err := h.Items.CreateImagesBulkTx(ctx, tx, item.ID, urls); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save images"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	det, err := h.Items.GetDetail(ctx, item.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load item"})
	}
	return c.JSON(http.StatusCreated, det)
}

// ListItems handles GET /v1/items.  An optional ?category= narrows the
// catalog; "All" or an empty value returns everything browsable.  Items
// already swapped or redeemed never appear.
func (h *ItemHandler) ListItems(c echo.Context) error {
	category := strings.TrimSpace(c.QueryParam("category"))
	items, err := h.Items.ListBrowsable(c.Request().Context(), category)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListFeatured handles GET /v1/items/featured for the home carousel.
func (h *ItemHandler) ListFeatured(c echo.Context) error {
	items, err := h.Items.ListFeatured(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetItem handles GET /v1/items/:id.
func (h *ItemHandler) GetItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	det, err := h.Items.GetDetail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, det)
}

// ListUserItems handles GET /v1/items/user.  It returns the caller's
// active items, the set offered in the swap picker: anything already
// swapped or redeemed is excluded.
func (h *ItemHandler) ListUserItems(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Items.ListByOwner(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// FeatureItem handles POST /v1/admin/items/:id/feature.  Admin only via
// the role middleware.
func (h *ItemHandler) FeatureItem(c echo.Context) error {
	return h.setFeatured(c, true)
}

// UnfeatureItem handles DELETE /v1/admin/items/:id/feature.
func (h *ItemHandler) UnfeatureItem(c echo.Context) error {
	return h.setFeatured(c, false)
}

func (h *ItemHandler) setFeatured(c echo.Context, featured bool) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	if err := h.Items.SetFeatured(c.Request().Context(), id, featured); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_featured": featured})
}
