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

	"github.com/tigerpop/marketplace/internal/model"
)

func newMockUserRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db, "princeton.edu"), mock
}

func userRow(id uint64, netid string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "netid", "email", "created_at"}).
		AddRow(id, netid, netid+"@princeton.edu", time.Now().UTC())
}

func TestResolveByNetIDCreatesMissingUser(t *testing.T) {
	repo, mock := newMockUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, netid, email, created_at FROM users WHERE netid=?")).
		WithArgs("tg1234").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (netid, email) VALUES (?,?)")).
		WithArgs("tg1234", "tg1234@princeton.edu").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, netid, email, created_at FROM users WHERE id=?")).
		WithArgs(uint64(8)).
		WillReturnRows(userRow(8, "tg1234"))

	u, err := repo.Resolve(context.Background(), model.ByNetID("  TG1234 "))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), u.ID)
	assert.Equal(t, "tg1234", u.NetID)
	assert.Equal(t, "tg1234@princeton.edu", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveByNetIDReturnsExistingUser(t *testing.T) {
	repo, mock := newMockUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, netid, email, created_at FROM users WHERE netid=?")).
		WithArgs("tg1234").
		WillReturnRows(userRow(8, "tg1234"))

	u, err := repo.Resolve(context.Background(), model.ByNetID("tg1234"))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), u.ID)
}

func TestResolveByIDDoesNotCreate(t *testing.T) {
	repo, mock := newMockUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, netid, email, created_at FROM users WHERE id=?")).
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Resolve(context.Background(), model.ByID(99))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveEmptyRefFails(t *testing.T) {
	repo, _ := newMockUserRepo(t)

	_, err := repo.Resolve(context.Background(), model.UserRef{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteRefusedWhileHistoryExists(t *testing.T) {
	repo, mock := newMockUserRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .*COUNT.*").
		WithArgs(uint64(8), uint64(8), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"active"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 8)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteRemovesQuietAccount(t *testing.T) {
	repo, mock := newMockUserRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .*COUNT.*").
		WithArgs(uint64(8), uint64(8), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"active"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM hearted_listings WHERE user_id=?")).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
