package model

import "time"

// Bid is one append-only row in the `bids` table.  Bids are immutable
// once created; there are no edits or retractions.  The current bid on
// a listing is MAX(amount) over its bids.
type Bid struct {
	ID        uint64    // bids.id
	ListingID uint64    // bids.listing_id
	BidderID  uint64    // bids.bidder_id
	Amount    float64   // bids.amount
	CreatedAt time.Time // bids.created_at
}
