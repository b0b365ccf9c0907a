package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMarkConsumedTxConflictWhenAlreadyConsumed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE items SET status").
		WithArgs("SWAPPED", uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewItemRepo(db)
	err = repo.MarkConsumedTx(context.Background(), tx, 7, "SWAPPED")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkConsumedTxSucceedsWhileTradeable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE items SET status").
		WithArgs("REDEEMED", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewItemRepo(db)
	if err := repo.MarkConsumedTx(context.Background(), tx, 3, "REDEEMED"); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetForUpdateTxMapsLockWaitToConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM items WHERE id = ").
		WithArgs(uint64(7)).
		WillReturnError(errors.New("Error 1205 (HY000): Lock wait timeout exceeded; try restarting transaction"))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewItemRepo(db)
	_, err = repo.GetForUpdateTx(context.Background(), tx, 7)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetFeaturedNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE items SET is_featured").
		WithArgs(true, uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewItemRepo(db)
	err = repo.SetFeatured(context.Background(), 99, true)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("want ErrItemNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListBrowsableAppliesCategoryFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now()
	itemRows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "title", "description", "category", "size",
		"item_condition", "tags", "status", "point_price", "is_featured", "created_at",
	}).AddRow(1, 2, "Dana", "Wool coat", "Barely worn winter coat", "Outerwear", "M",
		"Like new", "wool,winter", "AVAILABLE", 120, false, now)

	mock.ExpectQuery("AND i.category = ").
		WithArgs("Outerwear").
		WillReturnRows(itemRows)
	mock.ExpectQuery("FROM item_images").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "image_url", "position"}).
			AddRow(1, "https://cdn.example.com/coat.jpg", 0))

	repo := NewItemRepo(db)
	details, err := repo.ListBrowsable(context.Background(), "Outerwear")
	if err != nil {
		t.Fatalf("list browsable: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("want 1 item, got %d", len(details))
	}
	got := details[0]
	if got.OwnerName != "Dana" || got.Category != "Outerwear" {
		t.Fatalf("unexpected detail: %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"wool", "winter"}) {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if len(got.Images) != 1 || got.Images[0].ImageURL != "https://cdn.example.com/coat.jpg" {
		t.Fatalf("unexpected images: %v", got.Images)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	joined := joinTags([]string{" vintage ", "", "denim"})
	if joined != "vintage,denim" {
		t.Fatalf("joinTags: %q", joined)
	}
	if got := splitTags(joined); !reflect.DeepEqual(got, []string{"vintage", "denim"}) {
		t.Fatalf("splitTags: %v", got)
	}
	if got := splitTags(""); len(got) != 0 {
		t.Fatalf("splitTags empty: %v", got)
	}
}
