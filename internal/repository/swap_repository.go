package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/rewearhq/rewear/internal/model"
)

// ErrSwapNotFound is returned when a swap request lookup matches no row.
var ErrSwapNotFound = errors.New("swap request not found")

// SwapRepo provides persistence for swap requests.  A swap links an
// offered item (the proposer's) to a requested item (the responder's).
// Pending swaps never lock inventory; acceptance is the point where both
// items are consumed, so the acceptance path runs entirely inside a
// caller-owned transaction using the Tx methods below.
type SwapRepo struct {
    db *sql.DB
}

// NewSwapRepo returns a new SwapRepo bound to the given database.
func NewSwapRepo(db *sql.DB) *SwapRepo { return &SwapRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *SwapRepo) DB() *sql.DB { return r.db }

// Create inserts a new PENDING swap request and populates the generated
// ID and timestamps on the provided model.
func (r *SwapRepo) Create(ctx context.Context, s *model.SwapRequest) error {
    const q = `INSERT INTO swap_requests (proposer_id, offered_item_id, requested_item_id, status)
               VALUES (?, ?, ?, ?)`
    result, err := r.db.ExecContext(ctx, q, s.ProposerID, s.OfferedItemID, s.RequestedItemID, s.Status)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    const sel = `SELECT created_at, updated_at FROM swap_requests WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetForUpdateTx fetches a swap request inside a transaction with a row
// lock, serializing concurrent responses and cancellations on the same
// swap.  Returns ErrSwapNotFound when the id does not exist.
func (r *SwapRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.SwapRequest, error) {
    const q = `SELECT id, proposer_id, offered_item_id, requested_item_id, status, created_at, updated_at
               FROM swap_requests WHERE id = ? FOR UPDATE`
    var s model.SwapRequest
    err := tx.QueryRowContext(ctx, q, id).Scan(
        &s.ID, &s.ProposerID, &s.OfferedItemID, &s.RequestedItemID,
        &s.Status, &s.CreatedAt, &s.UpdatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return model.SwapRequest{}, ErrSwapNotFound
        }
        if lockConflict(err) {
            return model.SwapRequest{}, ErrConflict
        }
        return model.SwapRequest{}, err
    }
    return s, nil
}

// UpdateStatusTx transitions a swap from one status to another inside a
// transaction.  The UPDATE carries the previous status as a predicate so
// the transition is compare-and-swap; zero affected rows means the swap
// moved concurrently and ErrConflict is returned.
func (r *SwapRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE swap_requests SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`,
        to, id, from)
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
        return ErrConflict
    }
    return nil
}

// RejectCompetingTx moves every other PENDING swap that references either
// of the two consumed items to REJECTED.  Called inside the acceptance
// (and redemption) transaction so losers of the race are resolved
// explicitly rather than dangling forever against items that no longer
// exist in the catalog.  Returns the number of swaps rejected.
func (r *SwapRepo) RejectCompetingTx(ctx context.Context, tx *sql.Tx, excludeSwapID uint64, itemIDs ...uint64) (int64, error) {
    if len(itemIDs) == 0 {
        return 0, nil
    }
    q := `UPDATE swap_requests SET status = ?, updated_at = NOW()
          WHERE status = ? AND id <> ? AND (`
    args := []interface{}{model.SwapStatusRejected, model.SwapStatusPending, excludeSwapID}
    for i, id := range itemIDs {
        if i > 0 {
            q += ` OR `
        }
        q += `offered_item_id = ? OR requested_item_id = ?`
        args = append(args, id, id)
    }
    q += `)`
    res, err := tx.ExecContext(ctx, q, args...)
    if err != nil {
        if lockConflict(err) {
            return 0, ErrConflict
        }
        return 0, err
    }
    return res.RowsAffected()
}

// SwapDetail is a swap request enriched with both item titles and the
// counterparty's display name, as shown on the profile "My Swap
// Requests" view.
type SwapDetail struct {
    ID                 uint64    `json:"id"`
    Status             string    `json:"status"`
    ProposerID         uint64    `json:"proposer_id"`
    ProposerName       string    `json:"proposer_name"`
    OfferedItemID      uint64    `json:"offered_item_id"`
    OfferedItemTitle   string    `json:"offered_item_title"`
    RequestedItemID    uint64    `json:"requested_item_id"`
    RequestedItemTitle string    `json:"requested_item_title"`
    ResponderID        uint64    `json:"responder_id"`
    ResponderName      string    `json:"responder_name"`
    CreatedAt          time.Time `json:"created_at"`
}

// ListForUser returns every swap in which the user participates, as
// proposer or as owner of the requested item, newest first.
func (r *SwapRepo) ListForUser(ctx context.Context, userID uint64) ([]SwapDetail, error) {
    const q = `SELECT s.id, s.status, s.proposer_id, pu.name,
                      s.offered_item_id, oi.title,
                      s.requested_item_id, ri.title,
                      ri.user_id, ru.name,
                      s.created_at
               FROM swap_requests s
               JOIN items oi ON oi.id = s.offered_item_id
               JOIN items ri ON ri.id = s.requested_item_id
               JOIN users pu ON pu.id = s.proposer_id
               JOIN users ru ON ru.id = ri.user_id
               WHERE s.proposer_id = ? OR ri.user_id = ?
               ORDER BY s.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]SwapDetail, 0)
    for rows.Next() {
        var d SwapDetail
        if err := rows.Scan(
            &d.ID, &d.Status, &d.ProposerID, &d.ProposerName,
            &d.OfferedItemID, &d.OfferedItemTitle,
            &d.RequestedItemID, &d.RequestedItemTitle,
            &d.ResponderID, &d.ResponderName,
            &d.CreatedAt,
        ); err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    return details, rows.Err()
}
