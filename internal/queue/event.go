// Package queue defines message payloads exchanged over the message broker.
package queue

// Trade kinds carried in TradeCompletedEvent.Kind.
const (
	TradeKindSwap       = "SWAP"
	TradeKindRedemption = "REDEMPTION"
)

// TradeCompletedEvent is published whenever an item changes hands, either
// through an accepted swap or a point redemption. It contains enough
// information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database. Swap-only and
// redemption-only fields are zero for the other kind.
type TradeCompletedEvent struct {
	Kind            string `json:"kind"`
	SwapID          uint64 `json:"swap_id,omitempty"`
	ProposerID      uint64 `json:"proposer_id,omitempty"`
	ResponderID     uint64 `json:"responder_id,omitempty"`
	OfferedItemID   uint64 `json:"offered_item_id,omitempty"`
	RequestedItemID uint64 `json:"requested_item_id,omitempty"`
	RedemptionID    uint64 `json:"redemption_id,omitempty"`
	RedeemerID      uint64 `json:"redeemer_id,omitempty"`
	ItemID          uint64 `json:"item_id,omitempty"`
	PointsSpent     int64  `json:"points_spent,omitempty"`
	CompletedAt     string `json:"completed_at"`
}
