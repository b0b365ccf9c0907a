package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rewearhq/rewear/internal/model"
	"github.com/rewearhq/rewear/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user with the signup point grant and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, name, password string, cost, signupPoints int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, role, points) VALUES (?,?,?,?,?)",
		email, name, hash, model.RoleMember, signupPoints)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	var avatar sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,name,password_hash,role,avatar_url,points,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &avatar, &u.Points, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if avatar.Valid {
		a := avatar.String
		u.AvatarURL = &a
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	var avatar sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,name,password_hash,role,avatar_url,points,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &avatar, &u.Points, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if avatar.Valid {
		a := avatar.String
		u.AvatarURL = &a
	}
	return u, err
}

// DebitPointsTx subtracts amount from a user's balance inside the given
// transaction. The UPDATE carries a floor predicate so a concurrent debit
// can never push the balance negative; zero affected rows means the user
// no longer has enough points and ErrInsufficientPoints is returned.
func (r *UserRepo) DebitPointsTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET points = points - ? WHERE id = ? AND points >= ?",
		amount, userID, amount)
	if err != nil {
		if lockConflict(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientPoints
	}
	return nil
}

// CreditPointsTx adds amount to a user's balance inside the given
// transaction. Crediting zero is a no-op so callers can pass configured
// bonus amounts without checking them first.
func (r *UserRepo) CreditPointsTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64) error {
	if amount == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET points = points + ? WHERE id = ?",
		amount, userID)
	if lockConflict(err) {
		return ErrConflict
	}
	return err
}
