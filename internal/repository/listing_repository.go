package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tigerpop/marketplace/internal/model"
)

// ListingRepo provides CRUD operations for listings and their images.
// All timestamp columns are stored in UTC.  The current highest bid is
// derived from the bids table in every query that reports it; it is
// never written back onto the listing row, so the reported value cannot
// drift from the ledger.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// ListingRow pairs a listing with its derived current bid.  CurrentBid
// is nil when no bids exist.  HeartCount is only populated by HotItems.
type ListingRow struct {
	Listing    model.Listing
	CurrentBid *float64
	HeartCount int64
}

// listingColumns is the shared select list for listing queries.  The
// correlated subquery derives the current bid so every endpoint reports
// the same value.
const listingColumns = `l.id, l.seller_id, l.buyer_id, l.title, l.description, l.price,
       l.category, l.item_condition, l.status, l.pricing_mode,
       l.starting_price, l.bidding_ends_at, l.buyer_message, l.buyer_contact,
       l.created_at, l.updated_at,
       (SELECT MAX(b.amount) FROM bids b WHERE b.listing_id = l.id) AS current_bid`

// scanListing scans one row produced with listingColumns.
func scanListing(scan func(dest ...any) error) (ListingRow, error) {
	var (
		row        ListingRow
		buyerID    sql.NullInt64
		startPrice sql.NullFloat64
		endsAt     sql.NullTime
		buyerMsg   sql.NullString
		buyerCtc   sql.NullString
		currentBid sql.NullFloat64
	)
	err := scan(
		&row.Listing.ID, &row.Listing.SellerID, &buyerID,
		&row.Listing.Title, &row.Listing.Description, &row.Listing.Price,
		&row.Listing.Category, &row.Listing.Condition,
		&row.Listing.Status, &row.Listing.PricingMode,
		&startPrice, &endsAt, &buyerMsg, &buyerCtc,
		&row.Listing.CreatedAt, &row.Listing.UpdatedAt,
		&currentBid,
	)
	if err != nil {
		return ListingRow{}, err
	}
	if buyerID.Valid {
		v := uint64(buyerID.Int64)
		row.Listing.BuyerID = &v
	}
	if startPrice.Valid {
		v := startPrice.Float64
		row.Listing.StartingPrice = &v
	}
	if endsAt.Valid {
		v := endsAt.Time.UTC()
		row.Listing.BiddingEndsAt = &v
	}
	if buyerMsg.Valid {
		v := buyerMsg.String
		row.Listing.BuyerMessage = &v
	}
	if buyerCtc.Valid {
		v := buyerCtc.String
		row.Listing.BuyerContact = &v
	}
	if currentBid.Valid {
		v := currentBid.Float64
		row.CurrentBid = &v
	}
	return row, nil
}

// Create inserts a listing together with its images in one transaction
// and returns the stored row.  Input validation (price > 0, required
// fields, known pricing mode) has already happened at the handler.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) (ListingRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ListingRow{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO listings
		   (seller_id, title, description, price, category, item_condition,
		    status, pricing_mode, starting_price, bidding_ends_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.SellerID, l.Title, l.Description, l.Price, l.Category, l.Condition,
		model.StatusAvailable, l.PricingMode, l.StartingPrice, l.BiddingEndsAt)
	if err != nil {
		return ListingRow{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ListingRow{}, err
	}
	l.ID = uint64(id)

	if err := r.insertImagesTx(ctx, tx, l.ID, l.Images); err != nil {
		return ListingRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return ListingRow{}, err
	}
	committed = true
	return r.GetByID(ctx, l.ID)
}

// insertImagesTx bulk-inserts image rows for a listing, preserving the
// order the client supplied as the ordinal.  An empty slice is a no-op.
func (r *ListingRepo) insertImagesTx(ctx context.Context, tx *sql.Tx, listingID uint64, images []model.ListingImage) error {
	if len(images) == 0 {
		return nil
	}
	query := `INSERT INTO listing_images (listing_id, url, ordinal) VALUES `
	args := make([]any, 0, len(images)*3)
	for i, img := range images {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?)"
		args = append(args, listingID, img.URL, i)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a single listing with its images and derived current
// bid.  sql.ErrNoRows is returned when the listing does not exist.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (ListingRow, error) {
	q := `SELECT ` + listingColumns + ` FROM listings l WHERE l.id = ?`
	row, err := scanListingRow(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return ListingRow{}, err
	}
	images, err := r.imagesFor(ctx, []uint64{id})
	if err != nil {
		return ListingRow{}, err
	}
	row.Listing.Images = images[id]
	return row, nil
}

func scanListingRow(qr *sql.Row) (ListingRow, error) {
	return scanListing(qr.Scan)
}

// ListingFilter describes the browse filters.  All supplied filters are
// ANDed together.  Search is whitespace-split; every term must match
// the title or description case-insensitively.
type ListingFilter struct {
	MaxPrice   *float64
	Category   string
	Status     string
	Conditions []string
	Search     string
	SellerID   uint64 // non-zero restricts to one seller's listings
}

// List returns listings matching the filter, newest first, with their
// images attached.  There is no pagination; the marketplace inventory
// is small enough to return whole.
func (r *ListingRepo) List(ctx context.Context, f ListingFilter) ([]ListingRow, error) {
	where := []string{}
	args := []any{}

	if f.MaxPrice != nil {
		where = append(where, "l.price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.Category != "" {
		where = append(where, "l.category = ?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, f.Status)
	}
	if f.SellerID != 0 {
		where = append(where, "l.seller_id = ?")
		args = append(args, f.SellerID)
	}
	if len(f.Conditions) > 0 {
		ph := make([]string, len(f.Conditions))
		for i, c := range f.Conditions {
			ph[i] = "?"
			args = append(args, c)
		}
		where = append(where, "l.item_condition IN ("+strings.Join(ph, ",")+")")
	}
	for _, term := range strings.Fields(f.Search) {
		where = append(where, "(LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)")
		pat := "%" + strings.ToLower(term) + "%"
		args = append(args, pat, pat)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	q := `SELECT ` + listingColumns + `
	      FROM listings l
	      WHERE ` + cond + `
	      ORDER BY l.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ListingRow, 0)
	for rows.Next() {
		row, err := scanListing(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachImages(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePatch carries the fields a seller may change on their listing.
// Nil pointers leave the column untouched.  Images, when non-nil,
// replaces the image set wholesale.
type UpdatePatch struct {
	Title         *string
	Description   *string
	Price         *float64
	Category      *string
	Condition     *string
	PricingMode   *string
	StartingPrice *float64
	BiddingEndsAt *time.Time
	ClearBidEnd   bool // set bidding_ends_at back to NULL
	Images        []model.ListingImage
	ReplaceImages bool
}

// Update applies a patch to a listing after verifying ownership.  It
// returns ErrForbidden when sellerID does not own the listing and
// sql.ErrNoRows when the listing does not exist.
func (r *ListingRepo) Update(ctx context.Context, id, sellerID uint64, p UpdatePatch) (ListingRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ListingRow{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT seller_id FROM listings WHERE id=? FOR UPDATE", id).Scan(&owner); err != nil {
		return ListingRow{}, err
	}
	if owner != sellerID {
		return ListingRow{}, ErrForbidden
	}

	set := []string{}
	args := []any{}
	appendSet := func(col string, v any) {
		set = append(set, col+"=?")
		args = append(args, v)
	}
	if p.Title != nil {
		appendSet("title", *p.Title)
	}
	if p.Description != nil {
		appendSet("description", *p.Description)
	}
	if p.Price != nil {
		appendSet("price", *p.Price)
	}
	if p.Category != nil {
		appendSet("category", *p.Category)
	}
	if p.Condition != nil {
		appendSet("item_condition", *p.Condition)
	}
	if p.PricingMode != nil {
		appendSet("pricing_mode", *p.PricingMode)
	}
	if p.StartingPrice != nil {
		appendSet("starting_price", *p.StartingPrice)
	}
	if p.ClearBidEnd {
		set = append(set, "bidding_ends_at=NULL")
	} else if p.BiddingEndsAt != nil {
		appendSet("bidding_ends_at", p.BiddingEndsAt.UTC())
	}
	if len(set) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx,
			"UPDATE listings SET "+strings.Join(set, ", ")+" WHERE id=?", args...); err != nil {
			return ListingRow{}, err
		}
	}
	if p.ReplaceImages {
		if _, err := tx.ExecContext(ctx, "DELETE FROM listing_images WHERE listing_id=?", id); err != nil {
			return ListingRow{}, err
		}
		if err := r.insertImagesTx(ctx, tx, id, p.Images); err != nil {
			return ListingRow{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return ListingRow{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// UpdateStatus moves a listing through the status state machine.  The
// row is locked for the duration of the check so concurrent transitions
// serialize.  Illegal transitions return ErrInvalidTransition; a
// non-owner caller gets ErrForbidden.
func (r *ListingRepo) UpdateStatus(ctx context.Context, id, sellerID uint64, newStatus string) (ListingRow, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ListingRow{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var owner uint64
	var current string
	if err := tx.QueryRowContext(ctx,
		"SELECT seller_id, status FROM listings WHERE id=? FOR UPDATE", id).Scan(&owner, &current); err != nil {
		return ListingRow{}, err
	}
	if owner != sellerID {
		return ListingRow{}, ErrForbidden
	}
	if !model.CanTransition(current, newStatus) {
		return ListingRow{}, ErrInvalidTransition
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE listings SET status=? WHERE id=?", newStatus, id); err != nil {
		return ListingRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return ListingRow{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Delete removes a listing after verifying ownership.  Images, bids and
// hearts are removed by the cascading foreign keys.
func (r *ListingRepo) Delete(ctx context.Context, id, sellerID uint64) error {
	var owner uint64
	if err := r.db.QueryRowContext(ctx,
		"SELECT seller_id FROM listings WHERE id=?", id).Scan(&owner); err != nil {
		return err
	}
	if owner != sellerID {
		return ErrForbidden
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM listings WHERE id=?", id)
	return err
}

// PurchaseRequest is the outcome of RequestToBuy, carrying what the
// notification needs without a second round trip.
type PurchaseRequest struct {
	Listing     ListingRow
	SellerID    uint64
	SellerEmail string
	BuyerNetID  string
}

// RequestToBuy attaches a buyer to an available listing and moves it to
// pending, all under a row lock so two simultaneous buyers cannot both
// win.  The buyer must differ from the seller (ErrSelfBid) and the
// listing must still be available (ErrConflict).
func (r *ListingRepo) RequestToBuy(ctx context.Context, listingID uint64, buyer model.User, message, contact string) (PurchaseRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return PurchaseRequest{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var sellerID uint64
	var status string
	if err := tx.QueryRowContext(ctx,
		"SELECT seller_id, status FROM listings WHERE id=? FOR UPDATE",
		listingID).Scan(&sellerID, &status); err != nil {
		return PurchaseRequest{}, err
	}
	if buyer.ID == sellerID {
		return PurchaseRequest{}, ErrSelfBid
	}
	if status != model.StatusAvailable {
		return PurchaseRequest{}, ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET buyer_id=?, status=?, buyer_message=?, buyer_contact=? WHERE id=?`,
		buyer.ID, model.StatusPending, message, contact, listingID); err != nil {
		return PurchaseRequest{}, err
	}
	var sellerEmail string
	if err := tx.QueryRowContext(ctx,
		"SELECT email FROM users WHERE id=?", sellerID).Scan(&sellerEmail); err != nil {
		return PurchaseRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return PurchaseRequest{}, err
	}
	committed = true

	row, err := r.GetByID(ctx, listingID)
	if err != nil {
		return PurchaseRequest{}, err
	}
	return PurchaseRequest{
		Listing:     row,
		SellerID:    sellerID,
		SellerEmail: sellerEmail,
		BuyerNetID:  buyer.NetID,
	}, nil
}

// attachImages loads the images for every listing in rows with a single
// query and fills them in ordinal order.
func (r *ListingRepo) attachImages(ctx context.Context, rows []ListingRow) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Listing.ID)
	}
	byListing, err := r.imagesFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].Listing.Images = byListing[rows[i].Listing.ID]
	}
	return nil
}

func (r *ListingRepo) imagesFor(ctx context.Context, listingIDs []uint64) (map[uint64][]model.ListingImage, error) {
	if len(listingIDs) == 0 {
		return map[uint64][]model.ListingImage{}, nil
	}
	ph := make([]string, len(listingIDs))
	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		ph[i] = "?"
		args[i] = id
	}
	q := `SELECT id, listing_id, url, ordinal, created_at
	      FROM listing_images
	      WHERE listing_id IN (` + strings.Join(ph, ",") + `)
	      ORDER BY listing_id, ordinal`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64][]model.ListingImage)
	for rows.Next() {
		var img model.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.Ordinal, &img.CreatedAt); err != nil {
			return nil, err
		}
		out[img.ListingID] = append(out[img.ListingID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
