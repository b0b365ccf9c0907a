package handler

import (
	"context" // detached context for post-commit event publishing
	"errors"  // for errors.Is comparisons
	"fmt"     // price mismatch message
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/rewearhq/rewear/internal/config"                  // owner-credit configuration
	"github.com/rewearhq/rewear/internal/model"                   // domain types and enums
	"github.com/rewearhq/rewear/internal/queue"                   // trade event payloads
	"github.com/rewearhq/rewear/internal/repository"              // repository layer
	queue_publisher "github.com/rewearhq/rewear/internal/service" // event publisher
)

// RedemptionHandler spends points on an item. The redemption transaction
// locks the item row, consumes it with a compare-and-swap status update
// and debits the buyer with a balance-floor condition, so neither a
// double spend nor a negative balance can occur under concurrency.
type RedemptionHandler struct {
	Cfg         config.Config
	Redemptions *repository.RedemptionRepo
	Items       *repository.ItemRepo
	Users       *repository.UserRepo
	Swaps       *repository.SwapRepo
}

// NewRedemptionHandler constructs a new RedemptionHandler with the
// provided repositories. All dependencies must be non-nil.
func NewRedemptionHandler(cfg config.Config, redemptions *repository.RedemptionRepo, items *repository.ItemRepo, users *repository.UserRepo, swaps *repository.SwapRepo) *RedemptionHandler {
	if redemptions == nil || items == nil || users == nil || swaps == nil {
		panic("nil repository passed to NewRedemptionHandler")
	}
	return &RedemptionHandler{Cfg: cfg, Redemptions: redemptions, Items: items, Users: users, Swaps: swaps}
}

// RedeemItem handles POST /v1/redemptions. The body carries the item id
// and the point price the caller saw; a stale price is rejected with 400
// so nobody is silently charged a different amount. On success the item
// is REDEEMED, the caller's balance is reduced, the owner is credited
// when configured, and every pending swap referencing the item is
// auto-rejected.
func (h *RedemptionHandler) RedeemItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ItemID      uint64 `json:"item_id"`
		PointsSpent int64  `json:"points_spent"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ItemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id is required"})
	}

	ctx := c.Request().Context()
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

	item, err := h.Items.GetForUpdateTx(ctx, tx, body.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if item.UserID == userID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot redeem your own item"})
	}
	if body.PointsSpent != item.PointPrice {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("points_spent must equal the item's current price of %d", item.PointPrice),
		})
	}

	if err := h.Items.MarkConsumedTx(ctx, tx, item.ID, model.ItemStatusRedeemed); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update item"})
	}
	if err := h.Users.DebitPointsTx(ctx, tx, userID, item.PointPrice); err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient points"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to debit points"})
	}
	if h.Cfg.CreditOwnerOnRedeem {
		if err := h.Users.CreditPointsTx(ctx, tx, item.UserID, item.PointPrice); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to credit points"})
		}
	}
	red := model.Redemption{UserID: userID, ItemID: item.ID, PointsSpent: item.PointPrice}
	if err := h.Redemptions.CreateTx(ctx, tx, &red); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record redemption"})
	}
	// Deadlock with a concurrent acceptance over the same swap rows
	// surfaces here as ErrConflict; the loser rolls back like any race
	// loser instead of reporting a server fault.
	if _, err := h.Swaps.RejectCompetingTx(ctx, tx, 0, item.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve competing swaps"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	// Publish after commit; delivery failures must not fail the trade.
	go func(ev queue.TradeCompletedEvent) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishTradeCompleted(pubCtx, ev)
	}(queue.TradeCompletedEvent{
		Kind:         queue.TradeKindRedemption,
		RedemptionID: red.ID,
		RedeemerID:   userID,
		ItemID:       item.ID,
		PointsSpent:  red.PointsSpent,
		CompletedAt:  time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":           red.ID,
		"item_id":      red.ItemID,
		"points_spent": red.PointsSpent,
		"created_at":   red.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ListRedemptions handles GET /v1/redemptions and returns the caller's
// redemption history, newest first.
func (h *RedemptionHandler) ListRedemptions(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Redemptions.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load redemptions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}
