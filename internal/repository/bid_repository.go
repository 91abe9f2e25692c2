package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/tigerpop/marketplace/internal/model"
)

// BidRepo provides access to the append-only bids table and owns the
// two contended auction mutations: placing a bid and closing bidding.
// Both run their read-validate-write sequence inside one transaction
// with a SELECT ... FOR UPDATE on the listing row, so two concurrent
// bidders validating against the same "current highest" serialize on
// the lock and exactly one wins.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a new BidRepo bound to the given database.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

// PlacedBid is the outcome of Place: the stored bid plus everything the
// notifications need (seller and previous leader) without re-querying.
type PlacedBid struct {
	Bid          model.Bid
	ListingTitle string
	SellerID     uint64
	PrevBidderID *uint64 // previous highest bidder, nil on the first bid
}

// Place validates and records a bid.  Failure modes map onto sentinel
// errors: ErrNotAuction for fixed-price listings, ErrBiddingClosed when
// the listing left the available state or its end date passed,
// ErrSelfBid when the seller bids, and ErrBidTooLow when the amount
// does not strictly exceed max(current highest, starting price).
func (r *BidRepo) Place(ctx context.Context, listingID, bidderID uint64, amount float64) (PlacedBid, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return PlacedBid{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the listing row for the duration of validation.
	var (
		l          model.Listing
		startPrice sql.NullFloat64
		endsAt     sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, seller_id, title, price, status, pricing_mode, starting_price, bidding_ends_at
		 FROM listings WHERE id=? FOR UPDATE`, listingID).Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Price, &l.Status, &l.PricingMode, &startPrice, &endsAt)
	if err != nil {
		return PlacedBid{}, err
	}
	if startPrice.Valid {
		v := startPrice.Float64
		l.StartingPrice = &v
	}
	if endsAt.Valid {
		v := endsAt.Time.UTC()
		l.BiddingEndsAt = &v
	}

	if l.PricingMode != model.PricingAuction {
		return PlacedBid{}, ErrNotAuction
	}
	if !l.BiddingOpen(time.Now().UTC()) {
		return PlacedBid{}, ErrBiddingClosed
	}
	if bidderID == l.SellerID {
		return PlacedBid{}, ErrSelfBid
	}

	highest, prevBidder, hasBids, err := highestBidTx(ctx, tx, listingID)
	if err != nil {
		return PlacedBid{}, err
	}
	if amount <= l.MinimumBid(highest, hasBids) {
		return PlacedBid{}, ErrBidTooLow
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO bids (listing_id, bidder_id, amount) VALUES (?,?,?)",
		listingID, bidderID, amount)
	if err != nil {
		return PlacedBid{}, err
	}
	bidID, err := res.LastInsertId()
	if err != nil {
		return PlacedBid{}, err
	}
	var created time.Time
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at FROM bids WHERE id=?", bidID).Scan(&created); err != nil {
		return PlacedBid{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlacedBid{}, err
	}
	committed = true

	out := PlacedBid{
		Bid: model.Bid{
			ID:        uint64(bidID),
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: created.UTC(),
		},
		ListingTitle: l.Title,
		SellerID:     l.SellerID,
	}
	if hasBids && prevBidder != bidderID {
		pb := prevBidder
		out.PrevBidderID = &pb
	}
	return out, nil
}

// highestBidTx returns the current highest amount and its bidder within
// the transaction.  Ties by amount resolve to the earliest bid, which
// matters when close_bidding picks the winner.
func highestBidTx(ctx context.Context, tx *sql.Tx, listingID uint64) (amount float64, bidderID uint64, hasBids bool, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT amount, bidder_id FROM bids
		 WHERE listing_id=?
		 ORDER BY amount DESC, created_at ASC, id ASC
		 LIMIT 1`, listingID).Scan(&amount, &bidderID)
	if err == sql.ErrNoRows {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return amount, bidderID, true, nil
}

// ListByListing returns all bids for a listing sorted by amount
// descending.  The listing must exist; callers check that separately.
func (r *BidRepo) ListByListing(ctx context.Context, listingID uint64) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, bidder_id, amount, created_at
		 FROM bids WHERE listing_id=? ORDER BY amount DESC, created_at ASC`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ClosedAuction is the outcome of Close.  Winner fields are zero when
// the auction ended without bids.
type ClosedAuction struct {
	ListingID     uint64
	ListingTitle  string
	Status        string  // pending with a winner, closed without
	WinnerID      uint64  // zero when no bids were placed
	WinningAmount float64 // zero when no bids were placed
}

// Close ends bidding on an auction listing.  Only the seller may close
// (ErrForbidden), the listing must be an auction (ErrNotAuction) and
// still available (ErrConflict).  With bids, the highest bidder —
// earliest on ties — becomes the buyer and the listing moves to
// pending; without bids the listing moves straight to closed.
func (r *BidRepo) Close(ctx context.Context, listingID, sellerID uint64) (ClosedAuction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ClosedAuction{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	var title, status, mode string
	err = tx.QueryRowContext(ctx,
		"SELECT seller_id, title, status, pricing_mode FROM listings WHERE id=? FOR UPDATE",
		listingID).Scan(&owner, &title, &status, &mode)
	if err != nil {
		return ClosedAuction{}, err
	}
	if owner != sellerID {
		return ClosedAuction{}, ErrForbidden
	}
	if mode != model.PricingAuction {
		return ClosedAuction{}, ErrNotAuction
	}
	if status != model.StatusAvailable {
		return ClosedAuction{}, ErrConflict
	}

	amount, winner, hasBids, err := highestBidTx(ctx, tx, listingID)
	if err != nil {
		return ClosedAuction{}, err
	}

	out := ClosedAuction{ListingID: listingID, ListingTitle: title}
	if hasBids {
		out.Status = model.StatusPending
		out.WinnerID = winner
		out.WinningAmount = amount
		_, err = tx.ExecContext(ctx,
			"UPDATE listings SET status=?, buyer_id=? WHERE id=?",
			model.StatusPending, winner, listingID)
	} else {
		out.Status = model.StatusClosed
		_, err = tx.ExecContext(ctx,
			"UPDATE listings SET status=? WHERE id=?",
			model.StatusClosed, listingID)
	}
	if err != nil {
		return ClosedAuction{}, err
	}
	if err := tx.Commit(); err != nil {
		return ClosedAuction{}, err
	}
	committed = true
	return out, nil
}
