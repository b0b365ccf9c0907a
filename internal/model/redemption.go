package model

import "time"

// Redemption records a unilateral point purchase of an item, as stored in
// the `redemptions` table.  A row is only ever written together with the
// item's transition to REDEEMED and the debit of the redeemer's balance.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – the redeeming user.
//  ItemID      – the redeemed item.
//  PointsSpent – points debited from the redeemer.
//  CreatedAt   – creation timestamp.
type Redemption struct {
    ID          uint64    // redemptions.id
    UserID      uint64    // redemptions.user_id
    ItemID      uint64    // redemptions.item_id
    PointsSpent int64     // redemptions.points_spent
    CreatedAt   time.Time // redemptions.created_at
}
