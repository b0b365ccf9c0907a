package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rewearhq/rewear/internal/config"
	"github.com/rewearhq/rewear/internal/model"
	"github.com/rewearhq/rewear/internal/repository"
)

func swapRows(id, proposerID, offeredID, requestedID uint64, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "proposer_id", "offered_item_id", "requested_item_id", "status", "created_at", "updated_at",
	}).AddRow(id, proposerID, offeredID, requestedID, status, now, now)
}

func itemRows(id, ownerID uint64, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "description", "category", "size", "item_condition",
		"tags", "status", "point_price", "is_featured", "created_at", "updated_at",
	}).AddRow(id, ownerID, "Wool coat", "Barely worn winter coat", "Outerwear", "M",
		"Like new", "wool", status, 50, false, now, now)
}

func TestProposeSwapRejectsSelfSwap(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps", `{"offered_item_id":3,"requested_item_id":3}`)
	c.Set("user_id", float64(1))

	if err := h.ProposeSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestRespondToSwapForbiddenForNonOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusPending))
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(11)).
		WillReturnRows(itemRows(11, 2, model.ItemStatusAvailable))
	mock.ExpectRollback()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/respond", `{"decision":"ACCEPTED"}`)
	c.Set("user_id", float64(7))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.RespondToSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRespondToSwapConflictWhenItemConsumed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusPending))
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(11)).
		WillReturnRows(itemRows(11, 2, model.ItemStatusAvailable))
	// Another transaction consumed the requested item between the lock
	// and the CAS update.
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(model.ItemStatusSwapped, uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/respond", `{"decision":"ACCEPTED"}`)
	c.Set("user_id", float64(2))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.RespondToSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRespondToSwapNoLongerPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusRejected))
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(11)).
		WillReturnRows(itemRows(11, 2, model.ItemStatusAvailable))
	mock.ExpectRollback()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/respond", `{"decision":"REJECTED"}`)
	c.Set("user_id", float64(2))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.RespondToSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRespondToSwapAcceptCompletesTrade(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusPending))
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(11)).
		WillReturnRows(itemRows(11, 2, model.ItemStatusAvailable))
	// Both items leave the catalog, the swap is accepted, one competing
	// pending swap is auto-rejected and both parties earn the bonus.
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(model.ItemStatusSwapped, uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(model.ItemStatusSwapped, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE swap_requests SET status").
		WithArgs(model.SwapStatusAccepted, uint64(5), model.SwapStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE swap_requests SET status").
		WithArgs(model.SwapStatusRejected, model.SwapStatusPending, uint64(5),
			uint64(10), uint64(10), uint64(11), uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET points = points \+`).
		WithArgs(int64(10), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET points = points \+`).
		WithArgs(int64(10), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	h := NewSwapHandler(config.Config{SwapBonusPoints: 10},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/respond", `{"decision":"ACCEPTED"}`)
	c.Set("user_id", float64(2))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.RespondToSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Swap struct {
			Status string `json:"status"`
		} `json:"swap"`
		RejectedCompeting int64 `json:"rejected_competing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Swap.Status != model.SwapStatusAccepted {
		t.Errorf("swap status = %s", resp.Swap.Status)
	}
	if resp.RejectedCompeting != 1 {
		t.Errorf("rejected_competing = %d", resp.RejectedCompeting)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRespondToSwapDeadlockLoserGetsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusPending))
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(11)).
		WillReturnRows(itemRows(11, 2, model.ItemStatusAvailable))
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(model.ItemStatusSwapped, uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE items SET status").
		WithArgs(model.ItemStatusSwapped, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE swap_requests SET status").
		WithArgs(model.SwapStatusAccepted, uint64(5), model.SwapStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// A concurrent acceptance holds the competing swap's row; InnoDB
	// breaks the cycle by killing this transaction.
	mock.ExpectExec("UPDATE swap_requests SET status").
		WillReturnError(errors.New("Error 1213 (40001): Deadlock found when trying to get lock; try restarting transaction"))
	mock.ExpectRollback()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/respond", `{"decision":"ACCEPTED"}`)
	c.Set("user_id", float64(2))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.RespondToSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCancelSwapOnlyProposer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM swap_requests WHERE id = ").
		WithArgs(uint64(5)).
		WillReturnRows(swapRows(5, 1, 10, 11, model.SwapStatusPending))
	mock.ExpectRollback()

	h := NewSwapHandler(config.Config{},
		repository.NewSwapRepo(db), repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/swaps/5/cancel", `{}`)
	c.Set("user_id", float64(9))
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.CancelSwap(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
