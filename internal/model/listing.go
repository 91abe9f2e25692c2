package model

import "time"

// Listing status values.  A listing starts out available, moves to
// pending once a buyer is attached (purchase request or auction close),
// and ends sold.  Closing an auction with no bids, or a seller pulling
// an item, ends in closed.
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusSold      = "sold"
	StatusClosed    = "closed"
)

// Pricing modes.  Fixed-price listings are bought directly; auction
// listings accept bids until the seller closes bidding.
const (
	PricingFixed   = "fixed"
	PricingAuction = "auction"
)

// transitions is the explicit state machine for listing status.  Any
// transition not listed here is illegal and must be rejected rather
// than applied.
var transitions = map[string][]string{
	StatusAvailable: {StatusPending, StatusClosed},
	StatusPending:   {StatusSold},
	StatusSold:      {},
	StatusClosed:    {},
}

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a listing may move from one status to
// another.  Self-transitions are not allowed.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Listing mirrors the `listings` table.  Price and StartingPrice are
// kept in DECIMAL(10,2) columns and scanned into float64s the way the
// HTTP surface reports them.  The current highest bid is always derived
// from the bids table, never stored here.
//
// Invariant: BuyerID is nil while Status is available; setting a buyer
// moves the listing to pending.
type Listing struct {
	ID            uint64     // listings.id
	SellerID      uint64     // listings.seller_id
	BuyerID       *uint64    // listings.buyer_id (nullable)
	Title         string     // listings.title
	Description   string     // listings.description
	Price         float64    // listings.price
	Category      string     // listings.category
	Condition     string     // listings.item_condition
	Status        string     // listings.status
	PricingMode   string     // listings.pricing_mode
	StartingPrice *float64   // listings.starting_price (auction only)
	BiddingEndsAt *time.Time // listings.bidding_ends_at (auction only)
	BuyerMessage  *string    // listings.buyer_message
	BuyerContact  *string    // listings.buyer_contact
	CreatedAt     time.Time  // listings.created_at
	UpdatedAt     time.Time  // listings.updated_at

	Images []ListingImage // listing_images rows, ordinal order
}

// ListingImage is one hosted image attached to a listing.  Rows are
// cascade-deleted with their listing.
type ListingImage struct {
	ID        uint64    // listing_images.id
	ListingID uint64    // listing_images.listing_id
	URL       string    // listing_images.url
	Ordinal   uint32    // listing_images.ordinal
	CreatedAt time.Time // listing_images.created_at
}

// MinimumBid returns the exclusive lower bound for the next acceptable
// bid: the current highest bid when one exists, otherwise the starting
// price (falling back to the listing price when no starting price was
// set).  A new bid must be strictly greater than this value, so equal
// bids lose to the earlier one.
func (l *Listing) MinimumBid(currentHighest float64, hasBids bool) float64 {
	if hasBids {
		return currentHighest
	}
	if l.StartingPrice != nil {
		return *l.StartingPrice
	}
	return l.Price
}

// BiddingOpen reports whether the listing accepts bids at the given
// instant.  Only available auction listings whose end date has not
// passed accept bids; a nil end date means the auction runs until the
// seller closes it.
func (l *Listing) BiddingOpen(now time.Time) bool {
	if l.PricingMode != PricingAuction || l.Status != StatusAvailable {
		return false
	}
	if l.BiddingEndsAt != nil && !now.Before(*l.BiddingEndsAt) {
		return false
	}
	return true
}
