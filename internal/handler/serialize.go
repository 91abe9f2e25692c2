package handler

import (
	"time"

	"github.com/tigerpop/marketplace/internal/repository"
)

// listingResponse is the single wire shape for a listing.  Every
// endpoint that returns listings goes through toListingResponse so the
// shape cannot drift between browse, detail, hearts and hot items.
type listingResponse struct {
	ID            uint64     `json:"id"`
	SellerID      uint64     `json:"seller_id"`
	BuyerID       *uint64    `json:"buyer_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	Category      string     `json:"category"`
	Condition     string     `json:"condition"`
	Status        string     `json:"status"`
	PricingMode   string     `json:"pricing_mode"`
	StartingPrice *float64   `json:"starting_price,omitempty"`
	CurrentBid    *float64   `json:"current_bid,omitempty"`
	BiddingEndsAt *time.Time `json:"bidding_ends_at,omitempty"`
	Images        []string   `json:"images"`
	HeartCount    *int64     `json:"heart_count,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toListingResponse(row repository.ListingRow) listingResponse {
	l := row.Listing
	imgs := make([]string, 0, len(l.Images))
	for _, im := range l.Images {
		imgs = append(imgs, im.URL)
	}
	return listingResponse{
		ID:            l.ID,
		SellerID:      l.SellerID,
		BuyerID:       l.BuyerID,
		Title:         l.Title,
		Description:   l.Description,
		Price:         l.Price,
		Category:      l.Category,
		Condition:     l.Condition,
		Status:        l.Status,
		PricingMode:   l.PricingMode,
		StartingPrice: l.StartingPrice,
		CurrentBid:    row.CurrentBid,
		BiddingEndsAt: l.BiddingEndsAt,
		Images:        imgs,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

// withHearts is used by the hot-items endpoint, the only place a heart
// count is part of the payload.
func withHearts(row repository.ListingRow) listingResponse {
	resp := toListingResponse(row)
	hc := row.HeartCount
	resp.HeartCount = &hc
	return resp
}

func toListingResponses(rows []repository.ListingRow) []listingResponse {
	out := make([]listingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toListingResponse(r))
	}
	return out
}
