package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/rewearhq/rewear/internal/model"
)

// RedemptionRepo provides persistence for redemption records.  A
// redemption row is only ever written inside the same transaction that
// consumes the item and debits the redeemer, so creation is Tx-only.
type RedemptionRepo struct {
    db *sql.DB
}

// NewRedemptionRepo returns a new RedemptionRepo bound to the given database.
func NewRedemptionRepo(db *sql.DB) *RedemptionRepo { return &RedemptionRepo{db: db} }

// CreateTx inserts a redemption record within the caller's transaction
// and populates the generated ID and timestamp on the provided model.
func (r *RedemptionRepo) CreateTx(ctx context.Context, tx *sql.Tx, red *model.Redemption) error {
    const q = `INSERT INTO redemptions (user_id, item_id, points_spent) VALUES (?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, red.UserID, red.ItemID, red.PointsSpent)
    if err != nil {
        if lockConflict(err) {
            return ErrConflict
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    red.ID = uint64(id)
    const sel = `SELECT created_at FROM redemptions WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, red.ID).Scan(&red.CreatedAt)
}

// RedemptionDetail is a redemption enriched with the redeemed item's
// title for the profile history view.
type RedemptionDetail struct {
    ID          uint64    `json:"id"`
    ItemID      uint64    `json:"item_id"`
    ItemTitle   string    `json:"item_title"`
    PointsSpent int64     `json:"points_spent"`
    CreatedAt   time.Time `json:"created_at"`
}

// ListByUser returns the user's redemptions, newest first.
func (r *RedemptionRepo) ListByUser(ctx context.Context, userID uint64) ([]RedemptionDetail, error) {
    const q = `SELECT r.id, r.item_id, i.title, r.points_spent, r.created_at
               FROM redemptions r
               JOIN items i ON i.id = r.item_id
               WHERE r.user_id = ?
               ORDER BY r.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]RedemptionDetail, 0)
    for rows.Next() {
        var d RedemptionDetail
        if err := rows.Scan(&d.ID, &d.ItemID, &d.ItemTitle, &d.PointsSpent, &d.CreatedAt); err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    return details, rows.Err()
}
