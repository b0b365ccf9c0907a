package handler

import (
	"context" // detached context for post-commit event publishing
	"errors"  // for errors.Is comparisons
	"net/http"     // HTTP status codes
	"strconv"      // parsing path parameters
	"strings"      // normalizing the decision value
	"time"         // event timestamps and publish timeout

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/rewearhq/rewear/internal/config"                  // swap bonus configuration
	"github.com/rewearhq/rewear/internal/model"                   // domain types and enums
	"github.com/rewearhq/rewear/internal/queue"                   // trade event payloads
	"github.com/rewearhq/rewear/internal/repository"              // repository layer
	queue_publisher "github.com/rewearhq/rewear/internal/service" // event publisher
)

// SwapHandler implements the swap negotiation state machine.  A pending
// swap does not lock inventory, so acceptance is the critical section:
// it runs inside one transaction that consumes both items with
// compare-and-swap status updates, rejects every competing pending swap
// and credits the completion bonus.  Two concurrent acceptances
// referencing the same item can therefore never both succeed.
type SwapHandler struct {
	Cfg   config.Config
	Swaps *repository.SwapRepo
	Items *repository.ItemRepo
	Users *repository.UserRepo
}

// NewSwapHandler constructs a new SwapHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewSwapHandler(cfg config.Config, swaps *repository.SwapRepo, items *repository.ItemRepo, users *repository.UserRepo) *SwapHandler {
	if swaps == nil || items == nil || users == nil {
		panic("nil repository passed to NewSwapHandler")
	}
	return &SwapHandler{Cfg: cfg, Swaps: swaps, Items: items, Users: users}
}

// ProposeSwap handles POST /v1/swaps.  The body must reference an item
// the caller owns (offered) and a tradeable item of another user
// (requested).  Items stay in their current status while the swap is
// PENDING; competing offers on the same item are legal.
func (h *SwapHandler) ProposeSwap(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		OfferedItemID   uint64 `json:"offered_item_id"`
		RequestedItemID uint64 `json:"requested_item_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OfferedItemID == 0 || body.RequestedItemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offered_item_id and requested_item_id are required"})
	}
	if body.OfferedItemID == body.RequestedItemID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot swap an item for itself"})
	}
	ctx := c.Request().Context()

	offered, err := h.Items.GetByID(ctx, body.OfferedItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "offered item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	requested, err := h.Items.GetByID(ctx, body.RequestedItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "requested item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if offered.UserID != userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offered item does not belong to you"})
	}
	if requested.UserID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot request your own item"})
	}
	if model.ItemConsumed(offered.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offered item is no longer available"})
	}
	if model.ItemConsumed(requested.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "requested item is no longer available"})
	}

	swap := model.SwapRequest{
		ProposerID:      userID,
		OfferedItemID:   body.OfferedItemID,
		RequestedItemID: body.RequestedItemID,
		Status:          model.SwapStatusPending,
	}
	if err := h.Swaps.Create(ctx, &swap); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create swap request"})
	}
	return c.JSON(http.StatusCreated, swapResp(swap))
}

// ListSwaps handles GET /v1/swaps.  It returns every swap the caller
// participates in, as proposer or as owner of the requested item.
func (h *SwapHandler) ListSwaps(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Swaps.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load swaps"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// RespondToSwap handles POST /v1/swaps/:id/respond.  Only the owner of
// the requested item may respond, and only while the swap is PENDING.
// A REJECTED decision is a single status flip.  ACCEPTED consumes both
// items atomically: if either item was consumed by a concurrent trade
// the transaction rolls back and 409 is returned so the caller can
// re-fetch and see the item gone.
func (h *SwapHandler) RespondToSwap(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	swapID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || swapID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid swap id"})
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	decision := strings.ToUpper(strings.TrimSpace(body.Decision))
	if decision != model.SwapStatusAccepted && decision != model.SwapStatusRejected {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "decision must be ACCEPTED or REJECTED"})
	}

	ctx := c.Request().Context()
	tx, err := h.Swaps.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	swap, err := h.Swaps.GetForUpdateTx(ctx, tx, swapID)
	if err != nil {
		if errors.Is(err, repository.ErrSwapNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "swap request not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is being resolved, try again"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	requested, err := h.Items.GetForUpdateTx(ctx, tx, swap.RequestedItemID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if requested.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the requested item's owner can respond"})
	}
	if swap.Status != model.SwapStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is no longer pending"})
	}

	if decision == model.SwapStatusRejected {
		if err := h.Swaps.UpdateStatusTx(ctx, tx, swap.ID, model.SwapStatusPending, model.SwapStatusRejected); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is no longer pending"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update swap"})
		}
		if err := tx.Commit(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
		}
		committed = true
		swap.Status = model.SwapStatusRejected
		return c.JSON(http.StatusOK, swapResp(swap))
	}

	// Acceptance: consume both items first.  The CAS updates fail with
	// ErrConflict when a concurrent acceptance or redemption got there
	// first; that path rolls back everything done here and the losing
	// swap is resolved by the winner's competing-swap rejection.
	if err := h.Items.MarkConsumedTx(ctx, tx, swap.RequestedItemID, model.ItemStatusSwapped); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update item"})
	}
	if err := h.Items.MarkConsumedTx(ctx, tx, swap.OfferedItemID, model.ItemStatusSwapped); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "offered item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update item"})
	}
	if err := h.Swaps.UpdateStatusTx(ctx, tx, swap.ID, model.SwapStatusPending, model.SwapStatusAccepted); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update swap"})
	}
	// A concurrent acceptance locking these rows in the opposite order
	// can deadlock here; InnoDB kills one side and the repository maps
	// that to ErrConflict, which is the same outcome as losing the CAS.
	rejected, err := h.Swaps.RejectCompetingTx(ctx, tx, swap.ID, swap.OfferedItemID, swap.RequestedItemID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve competing swaps"})
	}
	bonus := int64(h.Cfg.SwapBonusPoints)
	if err := h.Users.CreditPointsTx(ctx, tx, swap.ProposerID, bonus); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to credit points"})
	}
	if err := h.Users.CreditPointsTx(ctx, tx, requested.UserID, bonus); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested item is no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to credit points"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	swap.Status = model.SwapStatusAccepted

	// Publish after commit; delivery failures must not fail the trade.
	go func(ev queue.TradeCompletedEvent) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishTradeCompleted(pubCtx, ev)
	}(queue.TradeCompletedEvent{
		Kind:            queue.TradeKindSwap,
		SwapID:          swap.ID,
		ProposerID:      swap.ProposerID,
		ResponderID:     requested.UserID,
		OfferedItemID:   swap.OfferedItemID,
		RequestedItemID: swap.RequestedItemID,
		CompletedAt:     time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"swap":               swapResp(swap),
		"rejected_competing": rejected,
	})
}

// CancelSwap handles POST /v1/swaps/:id/cancel.  Only the proposer may
// cancel, and only while the swap is PENDING.
func (h *SwapHandler) CancelSwap(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	swapID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || swapID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid swap id"})
	}
	ctx := c.Request().Context()
	tx, err := h.Swaps.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	swap, err := h.Swaps.GetForUpdateTx(ctx, tx, swapID)
	if err != nil {
		if errors.Is(err, repository.ErrSwapNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "swap request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if swap.ProposerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the proposer can cancel"})
	}
	if swap.Status != model.SwapStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is no longer pending"})
	}
	if err := h.Swaps.UpdateStatusTx(ctx, tx, swap.ID, model.SwapStatusPending, model.SwapStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "swap request is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update swap"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	swap.Status = model.SwapStatusCancelled
	return c.JSON(http.StatusOK, swapResp(swap))
}

// swapResp renders a swap request for JSON responses.
func swapResp(s model.SwapRequest) echo.Map {
	return echo.Map{
		"id":                s.ID,
		"proposer_id":       s.ProposerID,
		"offered_item_id":   s.OfferedItemID,
		"requested_item_id": s.RequestedItemID,
		"status":            s.Status,
		"created_at":        s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
