package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/rewearhq/rewear/internal/config"
	"github.com/rewearhq/rewear/internal/repository"
)

func newJSONContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "name", "password_hash", "role", "avatar_url",
		"points", "is_active", "created_at", "updated_at",
	}).AddRow(1, "ada@example.com", "Ada", "$2a$04$hash", "MEMBER", nil, 100, true, now, now)
}

func TestCreateItemRequiresAuth(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	h := NewItemHandler(config.Config{}, repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodPost, "/v1/items", `{}`)

	if err := h.CreateItem(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestCreateItemReportsAllValidationFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(1)).
		WillReturnRows(userRows())

	h := NewItemHandler(config.Config{DefaultPointPrice: 50}, repository.NewItemRepo(db), repository.NewUserRepo(db))
	body := `{"title":"ab","description":"too short","category":"Hats","size":"M","condition":"Like new","images":[]}`
	c, rec := newJSONContext(http.MethodPost, "/v1/items", body)
	c.Set("user_id", float64(1))

	if err := h.CreateItem(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, field := range []string{"title", "description", "category", "images"} {
		if _, ok := resp.Fields[field]; !ok {
			t.Errorf("missing validation message for %q: %v", field, resp.Fields)
		}
	}
	if _, ok := resp.Fields["size"]; ok {
		t.Errorf("size was valid but got flagged: %v", resp.Fields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateItemRejectsRelativeImageURL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(1)).
		WillReturnRows(userRows())

	h := NewItemHandler(config.Config{DefaultPointPrice: 50}, repository.NewItemRepo(db), repository.NewUserRepo(db))
	body := `{"title":"Wool coat","description":"Barely worn winter coat","category":"Outerwear",` +
		`"size":"M","condition":"Like new","images":[{"image_url":"/uploads/coat.jpg"}]}`
	c, rec := newJSONContext(http.MethodPost, "/v1/items", body)
	c.Set("user_id", float64(1))

	if err := h.CreateItem(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "images") {
		t.Fatalf("expected image validation message, got %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetItemNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM items i").
		WithArgs(uint64(5)).
		WillReturnError(sql.ErrNoRows)

	h := NewItemHandler(config.Config{}, repository.NewItemRepo(db), repository.NewUserRepo(db))
	c, rec := newJSONContext(http.MethodGet, "/v1/items/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")

	if err := h.GetItem(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
