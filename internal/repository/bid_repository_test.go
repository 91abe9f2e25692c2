package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bidListingCols = []string{
	"id", "seller_id", "title", "price", "status", "pricing_mode", "starting_price", "bidding_ends_at",
}

func newMockBidRepo(t *testing.T) (*BidRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBidRepo(db), mock
}

func expectBidListingLock(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(1)).
		WillReturnRows(rows)
}

func TestPlaceFirstBidAcceptsAboveStartingPrice(t *testing.T) {
	repo, mock := newMockBidRepo(t)
	created := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Dorm lamp", 20.0, "available", "auction", 10.0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount DESC, created_at ASC, id ASC")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "bidder_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bids")).
		WithArgs(uint64(1), uint64(2), 12.0).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM bids WHERE id=?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	placed, err := repo.Place(context.Background(), 1, 2, 12.0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), placed.Bid.ID)
	assert.Equal(t, 12.0, placed.Bid.Amount)
	assert.Equal(t, uint64(7), placed.SellerID)
	assert.Equal(t, "Dorm lamp", placed.ListingTitle)
	assert.Nil(t, placed.PrevBidderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceRejectsAmountEqualToHighest(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Dorm lamp", 20.0, "available", "auction", 10.0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount DESC, created_at ASC, id ASC")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "bidder_id"}).AddRow(20.0, uint64(3)))
	mock.ExpectRollback()

	_, err := repo.Place(context.Background(), 1, 2, 20.0)
	assert.ErrorIs(t, err, ErrBidTooLow)
}

func TestPlaceReportsPreviousLeader(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Dorm lamp", 20.0, "available", "auction", 10.0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount DESC, created_at ASC, id ASC")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "bidder_id"}).AddRow(20.0, uint64(3)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bids")).
		WithArgs(uint64(1), uint64(2), 25.0).
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM bids WHERE id=?")).
		WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	mock.ExpectCommit()

	placed, err := repo.Place(context.Background(), 1, 2, 25.0)
	require.NoError(t, err)
	require.NotNil(t, placed.PrevBidderID)
	assert.Equal(t, uint64(3), *placed.PrevBidderID)
}

func TestPlaceRejectsFixedPriceListing(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Textbook", 20.0, "available", "fixed", nil, nil))
	mock.ExpectRollback()

	_, err := repo.Place(context.Background(), 1, 2, 25.0)
	assert.ErrorIs(t, err, ErrNotAuction)
}

func TestPlaceRejectsSellerBid(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Dorm lamp", 20.0, "available", "auction", 10.0, nil))
	mock.ExpectRollback()

	_, err := repo.Place(context.Background(), 1, 7, 25.0)
	assert.ErrorIs(t, err, ErrSelfBid)
}

func TestPlaceRejectsExpiredAuction(t *testing.T) {
	repo, mock := newMockBidRepo(t)
	past := time.Now().UTC().Add(-time.Hour)

	mock.ExpectBegin()
	expectBidListingLock(mock, sqlmock.NewRows(bidListingCols).
		AddRow(uint64(1), uint64(7), "Dorm lamp", 20.0, "available", "auction", 10.0, past))
	mock.ExpectRollback()

	_, err := repo.Place(context.Background(), 1, 2, 25.0)
	assert.ErrorIs(t, err, ErrBiddingClosed)
}

func TestCloseWithBidsPicksWinner(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seller_id, title, status, pricing_mode FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seller_id", "title", "status", "pricing_mode"}).
			AddRow(uint64(7), "Dorm lamp", "available", "auction"))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount DESC, created_at ASC, id ASC")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "bidder_id"}).AddRow(30.0, uint64(4)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings SET status=?, buyer_id=? WHERE id=?")).
		WithArgs("pending", uint64(4), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	closed, err := repo.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "pending", closed.Status)
	assert.Equal(t, uint64(4), closed.WinnerID)
	assert.Equal(t, 30.0, closed.WinningAmount)
}

func TestCloseWithoutBidsClosesListing(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seller_id, title, status, pricing_mode FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seller_id", "title", "status", "pricing_mode"}).
			AddRow(uint64(7), "Dorm lamp", "available", "auction"))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY amount DESC, created_at ASC, id ASC")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "bidder_id"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings SET status=? WHERE id=?")).
		WithArgs("closed", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	closed, err := repo.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "closed", closed.Status)
	assert.Zero(t, closed.WinnerID)
}

func TestCloseRejectsNonOwner(t *testing.T) {
	repo, mock := newMockBidRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seller_id, title, status, pricing_mode FROM listings WHERE id=? FOR UPDATE")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"seller_id", "title", "status", "pricing_mode"}).
			AddRow(uint64(7), "Dorm lamp", "available", "auction"))
	mock.ExpectRollback()

	_, err := repo.Close(context.Background(), 1, 9)
	assert.ErrorIs(t, err, ErrForbidden)
}
