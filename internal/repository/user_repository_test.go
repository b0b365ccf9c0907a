package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestDebitPointsTxInsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	// The floor predicate matches no row when the balance is short.
	mock.ExpectExec("UPDATE users SET points = points -").
		WithArgs(int64(50), uint64(3), int64(50)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewUserRepo(db)
	err = repo.DebitPointsTx(context.Background(), tx, 3, 50)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("want ErrInsufficientPoints, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDebitPointsTxSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET points = points -").
		WithArgs(int64(20), uint64(3), int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewUserRepo(db)
	if err := repo.DebitPointsTx(context.Background(), tx, 3, 20); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreditPointsTxZeroIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewUserRepo(db)
	if err := repo.CreditPointsTx(context.Background(), tx, 3, 0); err != nil {
		t.Fatalf("credit zero: %v", err)
	}
	// No UPDATE expectation registered; any statement would fail the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateMapsDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'dana@example.com'"))

	repo := NewUserRepo(db)
	_, err = repo.Create(context.Background(), "Dana@Example.com", "Dana", "s3cret-pass", 4, 0)
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
