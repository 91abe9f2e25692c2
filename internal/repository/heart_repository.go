package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tigerpop/marketplace/internal/model"
)

// HeartRepo provides access to the hearted_listings join table and the
// hot-items ranking derived from it.
type HeartRepo struct {
	db *sql.DB
}

// NewHeartRepo returns a new HeartRepo bound to the given database.
func NewHeartRepo(db *sql.DB) *HeartRepo { return &HeartRepo{db: db} }

// Heart records that a user hearted a listing.  The operation is
// idempotent: when a row for the pair already exists it succeeds
// without inserting.  The existence check and insert run in one
// transaction so the at-most-one invariant holds even without relying
// on the unique key.  The listing must exist (sql.ErrNoRows otherwise).
func (r *HeartRepo) Heart(ctx context.Context, userID, listingID uint64) (created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM listings WHERE id=?", listingID).Scan(&exists); err != nil {
		return false, err
	}
	var heartID uint64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM hearted_listings WHERE user_id=? AND listing_id=? FOR UPDATE",
		userID, listingID).Scan(&heartID)
	if err == nil {
		// Already hearted; nothing to do.
		if err := tx.Commit(); err != nil {
			return false, err
		}
		committed = true
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO hearted_listings (user_id, listing_id) VALUES (?,?)",
		userID, listingID); err != nil {
		// A concurrent heart of the same pair can still beat us to the
		// unique key; treat that as the idempotent no-op it is.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return false, nil
		}
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// Unheart removes the heart for a (user, listing) pair.  sql.ErrNoRows
// is returned when no such heart exists.
func (r *HeartRepo) Unheart(ctx context.Context, userID, listingID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM hearted_listings WHERE user_id=? AND listing_id=?",
		userID, listingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListHearted returns the listings a user has hearted, most recently
// hearted first, with derived current bids.
func (r *HeartRepo) ListHearted(ctx context.Context, userID uint64) ([]ListingRow, error) {
	q := `SELECT ` + listingColumns + `
	      FROM hearted_listings h
	      JOIN listings l ON l.id = h.listing_id
	      WHERE h.user_id = ?
	      ORDER BY h.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
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
	return out, nil
}

// HotItems ranks available listings by the number of hearts received in
// the trailing window, descending, ties broken by listing creation time
// descending.  The LEFT JOIN keeps zero-heart listings in the result so
// the response pads up to limit whenever enough available listings
// exist.
func (r *HeartRepo) HotItems(ctx context.Context, window time.Duration, limit int) ([]ListingRow, error) {
	since := time.Now().UTC().Add(-window)
	q := `SELECT ` + listingColumns + `, COUNT(h.id) AS hearts
	      FROM listings l
	      LEFT JOIN hearted_listings h
	        ON h.listing_id = l.id AND h.created_at >= ?
	      WHERE l.status = ?
	      GROUP BY l.id
	      ORDER BY hearts DESC, l.created_at DESC
	      LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, since, model.StatusAvailable, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ListingRow, 0, limit)
	for rows.Next() {
		row, err := scanHotListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanHotListing scans a listingColumns row with the trailing hearts
// count HotItems appends.
func scanHotListing(rows *sql.Rows) (ListingRow, error) {
	var hearts int64
	row, err := scanListing(func(dest ...any) error {
		dest = append(dest, &hearts)
		return rows.Scan(dest...)
	})
	if err != nil {
		return ListingRow{}, err
	}
	row.HeartCount = hearts
	return row, nil
}
