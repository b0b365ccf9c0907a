package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/rewearhq/rewear/internal/model"
)

// ErrItemNotFound is returned when an item lookup matches no row.
var ErrItemNotFound = errors.New("item not found")

// ItemRepo provides persistence for items and their images.  Listing
// queries exclude consumed items (status SWAPPED or REDEEMED) because a
// consumed item has permanently left the catalog.  Tags are stored
// comma-joined in a single column.  All timestamp fields are assumed to
// be stored in UTC.
type ItemRepo struct {
    db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the given database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span items, swaps, redemptions and balances.
func (r *ItemRepo) DB() *sql.DB { return r.db }

// browsable is the status predicate shared by every catalog listing.
const browsable = "status NOT IN ('SWAPPED','REDEEMED')"

// CreateTx inserts a new item within the scope of an existing
// transaction.  It populates the generated ID and timestamps on the
// provided model and returns any error from the database.  The caller
// must commit or rollback the transaction.  Status should already be
// set to a valid enumeration value (new listings use PENDING).
func (r *ItemRepo) CreateTx(ctx context.Context, tx *sql.Tx, it *model.Item) error {
    const q = `INSERT INTO items (user_id, title, description, category, size, item_condition, tags, status, point_price, is_featured)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        it.UserID, it.Title, it.Description, it.Category, it.Size, it.Condition,
        joinTags(it.Tags), it.Status, it.PointPrice, it.IsFeatured)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    it.ID = uint64(id)
    // Query back the row to populate timestamps and defaults
    const sel = `SELECT created_at, updated_at FROM items WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, it.ID).Scan(&it.CreatedAt, &it.UpdatedAt)
}

// CreateImagesBulkTx inserts the item's image URLs in a single statement,
// preserving their submitted order in the position column.  Passing an
// empty slice has no effect and returns nil.
func (r *ItemRepo) CreateImagesBulkTx(ctx context.Context, tx *sql.Tx, itemID uint64, urls []string) error {
    if len(urls) == 0 {
        return nil
    }
    query := `INSERT INTO item_images (item_id, image_url, position) VALUES `
    args := make([]interface{}, 0, len(urls)*3)
    for i, u := range urls {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?)"
        args = append(args, itemID, u, i)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// ItemImageDetail is the image shape embedded in listing responses.
type ItemImageDetail struct {
    ImageURL string `json:"image_url"`
    Position int    `json:"position"`
}

// ItemDetail encapsulates an item along with its owner's display name and
// ordered images.  It is returned by the catalog queries for display to
// browsing users.
type ItemDetail struct {
    ID          uint64            `json:"id"`
    OwnerID     uint64            `json:"owner_id"`
    OwnerName   string            `json:"owner_name"`
    Title       string            `json:"title"`
    Description string            `json:"description"`
    Category    string            `json:"category"`
    Size        string            `json:"size"`
    Condition   string            `json:"condition"`
    Tags        []string          `json:"tags"`
    Status      string            `json:"status"`
    PointPrice  int64             `json:"point_price"`
    IsFeatured  bool              `json:"is_featured"`
    CreatedAt   time.Time         `json:"created_at"`
    Images      []ItemImageDetail `json:"images"`
}

const itemDetailColumns = `i.id, i.user_id, u.name, i.title, i.description, i.category, i.size,
                      i.item_condition, i.tags, i.status, i.point_price, i.is_featured, i.created_at`

// GetDetail returns a single item with owner name and images.  It returns
// ErrItemNotFound when the id does not exist.  Consumed items are still
// returned here so trade partners can view what they received.
func (r *ItemRepo) GetDetail(ctx context.Context, id uint64) (*ItemDetail, error) {
    q := `SELECT ` + itemDetailColumns + `
          FROM items i
          JOIN users u ON u.id = i.user_id
          WHERE i.id = ?`
    row := r.db.QueryRowContext(ctx, q, id)
    det, err := scanItemDetail(row)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, ErrItemNotFound
        }
        return nil, err
    }
    if err := r.attachImages(ctx, []*ItemDetail{det}); err != nil {
        return nil, err
    }
    return det, nil
}

// ListBrowsable returns the browsable catalog ordered by creation time
// descending.  When category is empty or "All" the whole catalog is
// returned; otherwise results are restricted to the given category.
func (r *ItemRepo) ListBrowsable(ctx context.Context, category string) ([]*ItemDetail, error) {
    q := `SELECT ` + itemDetailColumns + `
          FROM items i
          JOIN users u ON u.id = i.user_id
          WHERE i.` + browsable
    args := []interface{}{}
    if category != "" && category != "All" {
        q += ` AND i.category = ?`
        args = append(args, category)
    }
    q += ` ORDER BY i.created_at DESC`
    return r.queryDetails(ctx, q, args...)
}

// ListFeatured returns browsable items flagged for the home carousel,
// newest first.
func (r *ItemRepo) ListFeatured(ctx context.Context) ([]*ItemDetail, error) {
    q := `SELECT ` + itemDetailColumns + `
          FROM items i
          JOIN users u ON u.id = i.user_id
          WHERE i.is_featured = 1 AND i.` + browsable + `
          ORDER BY i.created_at DESC`
    return r.queryDetails(ctx, q)
}

// ListByOwner returns the owner's active items (status neither SWAPPED
// nor REDEEMED), newest first.  This feeds both the profile view and the
// "pick an item to offer" list in the swap flow.
func (r *ItemRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]*ItemDetail, error) {
    q := `SELECT ` + itemDetailColumns + `
          FROM items i
          JOIN users u ON u.id = i.user_id
          WHERE i.user_id = ? AND i.` + browsable + `
          ORDER BY i.created_at DESC`
    return r.queryDetails(ctx, q, ownerID)
}

// GetByID fetches a bare item row without images.  It returns
// ErrItemNotFound when the id does not exist.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
    return r.get(ctx, r.db.QueryRowContext, id, false)
}

// GetForUpdateTx fetches an item row inside a transaction with a row lock
// so compound trade transitions serialize on the item.
func (r *ItemRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Item, error) {
    return r.get(ctx, tx.QueryRowContext, id, true)
}

type rowQuerier func(ctx context.Context, query string, args ...interface{}) *sql.Row

func (r *ItemRepo) get(ctx context.Context, queryRow rowQuerier, id uint64, forUpdate bool) (model.Item, error) {
    q := `SELECT id, user_id, title, description, category, size, item_condition, tags,
                 status, point_price, is_featured, created_at, updated_at
          FROM items WHERE id = ?`
    if forUpdate {
        q += ` FOR UPDATE`
    }
    var it model.Item
    var tags string
    err := queryRow(ctx, q, id).Scan(
        &it.ID, &it.UserID, &it.Title, &it.Description, &it.Category, &it.Size,
        &it.Condition, &tags, &it.Status, &it.PointPrice, &it.IsFeatured,
        &it.CreatedAt, &it.UpdatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return model.Item{}, ErrItemNotFound
        }
        if lockConflict(err) {
            return model.Item{}, ErrConflict
        }
        return model.Item{}, err
    }
    it.Tags = splitTags(tags)
    return it, nil
}

// MarkConsumedTx transitions an item to SWAPPED or REDEEMED inside a
// transaction.  The UPDATE only matches while the item is still
// tradeable, giving compare-and-swap semantics on the status column:
// zero affected rows means another transaction consumed the item first
// and ErrConflict is returned so the caller can roll back and surface
// "no longer available" to the user.
func (r *ItemRepo) MarkConsumedTx(ctx context.Context, tx *sql.Tx, itemID uint64, newStatus string) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE items SET status = ?, updated_at = NOW() WHERE id = ? AND `+browsable,
        newStatus, itemID)
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

// SetFeatured flips the home carousel flag.  Returns ErrItemNotFound when
// the id does not exist.
func (r *ItemRepo) SetFeatured(ctx context.Context, id uint64, featured bool) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE items SET is_featured = ?, updated_at = NOW() WHERE id = ?`,
        featured, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrItemNotFound
    }
    return nil
}

func (r *ItemRepo) queryDetails(ctx context.Context, q string, args ...interface{}) ([]*ItemDetail, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]*ItemDetail, 0)
    for rows.Next() {
        det, err := scanItemDetail(rows)
        if err != nil {
            return nil, err
        }
        details = append(details, det)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if err := r.attachImages(ctx, details); err != nil {
        return nil, err
    }
    return details, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...interface{}) error }

func scanItemDetail(s scanner) (*ItemDetail, error) {
    var det ItemDetail
    var tags string
    if err := s.Scan(
        &det.ID, &det.OwnerID, &det.OwnerName, &det.Title, &det.Description,
        &det.Category, &det.Size, &det.Condition, &tags, &det.Status,
        &det.PointPrice, &det.IsFeatured, &det.CreatedAt,
    ); err != nil {
        return nil, err
    }
    det.Tags = splitTags(tags)
    det.Images = []ItemImageDetail{}
    return &det, nil
}

// attachImages populates the Images slice for all details in a single
// IN query, keyed back to their item by an index map.
func (r *ItemRepo) attachImages(ctx context.Context, details []*ItemDetail) error {
    if len(details) == 0 {
        return nil
    }
    ids := make([]interface{}, 0, len(details))
    placeholders := make([]string, 0, len(details))
    index := make(map[uint64]*ItemDetail, len(details))
    for _, d := range details {
        ids = append(ids, d.ID)
        placeholders = append(placeholders, "?")
        index[d.ID] = d
    }
    q := `SELECT item_id, image_url, position
          FROM item_images
          WHERE item_id IN (` + strings.Join(placeholders, ",") + `)
          ORDER BY item_id, position`
    rows, err := r.db.QueryContext(ctx, q, ids...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var itemID uint64
        var img ItemImageDetail
        if err := rows.Scan(&itemID, &img.ImageURL, &img.Position); err != nil {
            return err
        }
        if d, ok := index[itemID]; ok {
            d.Images = append(d.Images, img)
        }
    }
    return rows.Err()
}

func joinTags(tags []string) string {
    cleaned := make([]string, 0, len(tags))
    for _, t := range tags {
        t = strings.TrimSpace(t)
        if t != "" {
            cleaned = append(cleaned, t)
        }
    }
    return strings.Join(cleaned, ",")
}

func splitTags(s string) []string {
    if s == "" {
        return []string{}
    }
    parts := strings.Split(s, ",")
    tags := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" {
            tags = append(tags, p)
        }
    }
    return tags
}
