package model

import "time"

// Swap request states stored in swap_requests.status.  PENDING is the only
// non-terminal state: the requested item's owner may move a pending swap to
// ACCEPTED or REJECTED, and the proposer may move it to CANCELLED.  A
// pending swap does not lock either item, so several competing offers on
// the same item can be PENDING at once; the first acceptance wins and the
// rest are rejected in the same transaction.
const (
    SwapStatusPending   = "PENDING"
    SwapStatusAccepted  = "ACCEPTED"
    SwapStatusRejected  = "REJECTED"
    SwapStatusCancelled = "CANCELLED"
)

// SwapRequest represents a proposed item-for-item exchange as stored in
// the `swap_requests` table.
//
// Fields:
//  ID              – primary key identifier.
//  ProposerID      – user offering one of their items.
//  OfferedItemID   – the proposer's item put up for exchange.
//  RequestedItemID – the other user's item being asked for.
//  Status          – state of the request, see constants above.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type SwapRequest struct {
    ID              uint64    // swap_requests.id
    ProposerID      uint64    // swap_requests.proposer_id
    OfferedItemID   uint64    // swap_requests.offered_item_id
    RequestedItemID uint64    // swap_requests.requested_item_id
    Status          string    // swap_requests.status
    CreatedAt       time.Time // swap_requests.created_at
    UpdatedAt       time.Time // swap_requests.updated_at
}
