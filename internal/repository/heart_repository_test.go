package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockHeartRepo(t *testing.T) (*HeartRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHeartRepo(db), mock
}

func TestHeartInsertsOnFirstHeart(t *testing.T) {
	repo, mock := newMockHeartRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM listings WHERE id=?")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM hearted_listings WHERE user_id=? AND listing_id=? FOR UPDATE")).
		WithArgs(uint64(2), uint64(3)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hearted_listings")).
		WithArgs(uint64(2), uint64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.Heart(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeartIsIdempotent(t *testing.T) {
	repo, mock := newMockHeartRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM listings WHERE id=?")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM hearted_listings WHERE user_id=? AND listing_id=? FOR UPDATE")).
		WithArgs(uint64(2), uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(11)))
	mock.ExpectCommit()

	created, err := repo.Heart(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeartMissingListing(t *testing.T) {
	repo, mock := newMockHeartRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM listings WHERE id=?")).
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Heart(context.Background(), 2, 99)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUnheartMissingReturnsNotFound(t *testing.T) {
	repo, mock := newMockHeartRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM hearted_listings WHERE user_id=? AND listing_id=?")).
		WithArgs(uint64(2), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Unheart(context.Background(), 2, 3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestHotItemsScansHeartCount(t *testing.T) {
	repo, mock := newMockHeartRepo(t)

	cols := append(append([]string{}, listingCols...), "hearts")
	rows := sqlmock.NewRows(cols).
		AddRow(append(listingRowValues(5, "Mini fridge", nil), int64(4))...).
		AddRow(append(listingRowValues(6, "Desk chair", nil), int64(0))...)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY hearts DESC, l.created_at DESC")).
		WithArgs(sqlmock.AnyArg(), "available", 4).
		WillReturnRows(rows)

	out, err := repo.HotItems(context.Background(), 72*time.Hour, 4)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(4), out[0].HeartCount)
	assert.Equal(t, "Mini fridge", out[0].Listing.Title)
	assert.Equal(t, int64(0), out[1].HeartCount)
}
